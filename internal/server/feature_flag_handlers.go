package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(uint)

	if s.featureFlags == nil {
		return c.JSON(fiber.Map{
			"raw":       map[string]string{},
			"evaluated": map[string]bool{},
		})
	}

	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}

// featureEnabled reports whether a rollout flag is on for the user. A nil
// manager means flags were never configured; everything defaults off except
// through config defaults.
func (s *Server) featureEnabled(name string, userID uint) bool {
	if s.featureFlags == nil {
		return false
	}
	return s.featureFlags.Enabled(name, userID)
}
