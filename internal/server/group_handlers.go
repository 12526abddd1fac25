package server

import (
	"huddle/internal/models"
	"huddle/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// CreateGroup handles POST /api/groups
func (s *Server) CreateGroup(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	group, err := s.groupService.CreateGroup(ctx, userID, req.Name, req.Description)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(group)
}

// GetJoinedGroups handles GET /api/groups
func (s *Server) GetJoinedGroups(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	groups, err := s.groupService.ListJoinedGroups(ctx, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(groups)
}

// GetAllGroups handles GET /api/groups/all
func (s *Server) GetAllGroups(c *fiber.Ctx) error {
	ctx := c.UserContext()
	p := parsePagination(c, 50)

	groups, err := s.groupService.ListAllGroups(ctx, p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(groups)
}

// GetGroup handles GET /api/groups/:id
func (s *Server) GetGroup(c *fiber.Ctx) error {
	ctx := c.UserContext()
	groupID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	group, err := s.groupService.GetGroup(ctx, groupID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(group)
}

// JoinGroup handles POST /api/groups/:id/join
func (s *Server) JoinGroup(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	groupID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	firstJoin, err := s.groupService.JoinGroup(ctx, groupID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	// Announce only genuine joins; re-joining is idempotent.
	if firstJoin {
		username := s.usernameOf(c, userID)
		s.fanOutGroup(ctx, groupID, notifications.UserJoinedEvent(groupID, userID, username))
	}

	return c.JSON(fiber.Map{
		"message": "Joined group",
		"joined":  firstJoin,
	})
}

// LeaveGroup handles POST /api/groups/:id/leave
func (s *Server) LeaveGroup(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	groupID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	left, err := s.groupService.LeaveGroup(ctx, groupID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	if left {
		username := s.usernameOf(c, userID)
		s.fanOutGroup(ctx, groupID, notifications.UserLeftEvent(groupID, userID, username))
		// A member who leaves stops receiving the group's realtime stream.
		s.hub.UnsubscribeUser(userID, groupID)
	}

	return c.JSON(fiber.Map{
		"message": "Left group",
		"left":    left,
	})
}

// GetGroupMembers handles GET /api/groups/:id/members
func (s *Server) GetGroupMembers(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	groupID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	members, err := s.groupService.ListMembers(ctx, groupID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(members)
}

// DeleteGroup handles DELETE /api/groups/:id
func (s *Server) DeleteGroup(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	groupID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.groupService.DeleteGroup(ctx, groupID, userID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Group deleted",
	})
}

// usernameOf resolves a username for event payloads, falling back to empty on
// lookup failure rather than failing the request.
func (s *Server) usernameOf(c *fiber.Ctx, userID uint) string {
	user, err := s.userRepo.GetByID(c.UserContext(), userID)
	if err != nil || user == nil {
		return ""
	}
	return user.Username
}
