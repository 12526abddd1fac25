package server

import (
	"huddle/internal/models"
	"huddle/internal/push"
	"huddle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/profile
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	user, err := s.userService.GetUserByID(ctx, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/profile
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	var req struct {
		Username string `json:"username,omitempty"`
		Bio      string `json:"bio,omitempty"`
		Avatar   string `json:"avatar,omitempty"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(ctx, service.UpdateProfileInput{
		UserID:   userID,
		Username: req.Username,
		Bio:      req.Bio,
		Avatar:   req.Avatar,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetOnlineUsers handles GET /api/users/presence
func (s *Server) GetOnlineUsers(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var online []uint
	if s.presence != nil {
		online = s.presence.GetOnlineUserIDs(ctx)
	}
	if online == nil {
		online = []uint{}
	}
	return c.JSON(fiber.Map{
		"online_user_ids": online,
	})
}

// GetGroupPresence handles GET /api/users/groups/:groupId/presence.
// Returns per-member online state for a group the caller belongs to.
func (s *Server) GetGroupPresence(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	groupID, err := s.parseID(c, "groupId")
	if err != nil {
		return nil
	}

	isMember, err := s.groupService.IsMember(ctx, groupID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if !isMember {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("You are not a member of this group"))
	}

	memberIDs, err := s.groupService.ListMemberIDs(ctx, groupID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	type memberPresence struct {
		UserID uint `json:"user_id"`
		Online bool `json:"online"`
	}
	presence := make([]memberPresence, 0, len(memberIDs))
	for _, id := range memberIDs {
		presence = append(presence, memberPresence{
			UserID: id,
			Online: s.hub.IsOnline(id),
		})
	}

	return c.JSON(fiber.Map{
		"group_id": groupID,
		"members":  presence,
	})
}

// RegisterPushToken handles POST /api/users/push-token
func (s *Server) RegisterPushToken(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	// The mobile client sends pushToken; token is accepted as an alias.
	var req struct {
		PushToken string `json:"pushToken"`
		Token     string `json:"token"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	token := req.PushToken
	if token == "" {
		token = req.Token
	}

	if err := s.userService.RegisterPushToken(ctx, userID, token); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Push token registered",
	})
}

// SendTestNotification handles POST /api/users/test-notification. Delivers a
// test push to the caller's own registered device.
func (s *Server) SendTestNotification(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)

	user, err := s.userService.GetUserByID(ctx, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if user.PushToken == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No push token registered"))
	}
	if s.pushSink == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewTransientError(nil))
	}

	if err := s.pushSink.Send(ctx, push.Notification{
		Token: user.PushToken,
		Title: "Test notification",
		Body:  "Push notifications are working",
	}); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"message": "Test notification sent",
	})
}
