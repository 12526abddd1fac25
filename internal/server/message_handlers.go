package server

import (
	"io"

	"huddle/internal/models"
	"huddle/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// SendMessage handles POST /api/messages/:groupId/send
func (s *Server) SendMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	groupID, err := s.parseID(c, "groupId")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, err := s.messageService.SendMessage(ctx, groupID, userID, req.Content)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.fanOutGroup(ctx, groupID, notifications.NewMessageEvent(message))
	s.notifyAboutMessage(c, groupID, message)

	return c.Status(fiber.StatusCreated).JSON(message)
}

// SendImage handles POST /api/messages/:groupId/send-image. Expects a
// multipart form with a "file" field and an optional "caption" field.
func (s *Server) SendImage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	groupID, err := s.parseID(c, "groupId")
	if err != nil {
		return nil
	}

	if !s.featureEnabled("image_uploads", userID) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Image uploads are not enabled for your account"))
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Image file is required"))
	}

	f, err := fileHeader.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Could not read uploaded file"))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Could not read uploaded file"))
	}

	contentType := fileHeader.Header.Get("Content-Type")
	caption := c.FormValue("caption")

	message, err := s.messageService.SendImage(ctx, groupID, userID, fileHeader.Filename, contentType, data, caption)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.fanOutGroup(ctx, groupID, notifications.NewMessageEvent(message))
	s.notifyAboutMessage(c, groupID, message)

	return c.Status(fiber.StatusCreated).JSON(message)
}

// GetMessages handles GET /api/messages/:groupId
func (s *Server) GetMessages(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	groupID, err := s.parseID(c, "groupId")
	if err != nil {
		return nil
	}
	p := parsePagination(c, 50)

	messages, err := s.messageService.GetHistory(ctx, groupID, userID, p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(messages)
}

// SearchMessages handles GET /api/messages/:groupId/search?q=term
func (s *Server) SearchMessages(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	groupID, err := s.parseID(c, "groupId")
	if err != nil {
		return nil
	}
	if !s.featureEnabled("message_search", userID) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Search is not enabled for your account"))
	}
	p := parsePagination(c, 25)

	messages, err := s.messageService.Search(ctx, groupID, userID, c.Query("q"), p.Limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(messages)
}

// DeleteMessage handles DELETE /api/messages/:id
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	message, err := s.messageService.DeleteMessage(ctx, messageID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.fanOutGroup(ctx, message.GroupID, notifications.MessageDeletedEvent(message.GroupID, message.ID))

	return c.JSON(fiber.Map{
		"message": "Message deleted",
	})
}

// MarkMessageRead handles POST /api/messages/:id/read
func (s *Server) MarkMessageRead(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.messageService.MarkRead(ctx, messageID, userID); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Marked as read",
	})
}

// GetMessageReaders handles GET /api/messages/:id/readers
func (s *Server) GetMessageReaders(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	readers, err := s.messageService.ListReaders(ctx, messageID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(readers)
}

// reactionRequest accepts the client's camelCase field alongside the
// snake_case spelling used in responses.
type reactionRequest struct {
	ReactionType      string `json:"reactionType"`
	ReactionTypeSnake string `json:"reaction_type"`
}

func (r reactionRequest) value() string {
	if r.ReactionType != "" {
		return r.ReactionType
	}
	return r.ReactionTypeSnake
}

// AddReaction handles POST /api/messages/:id/react
func (s *Server) AddReaction(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req reactionRequest
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, reactions, err := s.messageService.AddReaction(ctx, messageID, userID, req.value())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.fanOutGroup(ctx, message.GroupID, notifications.ReactionUpdateEvent(message.GroupID, messageID, reactions))

	return c.JSON(fiber.Map{
		"message_id": messageID,
		"reactions":  reactions,
	})
}

// RemoveReaction handles DELETE /api/messages/:id/react
func (s *Server) RemoveReaction(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req reactionRequest
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	message, reactions, err := s.messageService.RemoveReaction(ctx, messageID, userID, req.value())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.fanOutGroup(ctx, message.GroupID, notifications.ReactionUpdateEvent(message.GroupID, messageID, reactions))

	return c.JSON(fiber.Map{
		"message_id": messageID,
		"reactions":  reactions,
	})
}

// GetReactions handles GET /api/messages/:id/reactions
func (s *Server) GetReactions(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := currentUserID(c)
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	reactions, err := s.messageService.ListReactions(ctx, messageID, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"message_id": messageID,
		"reactions":  reactions,
	})
}

// notifyAboutMessage kicks off push notifications for a new message without
// blocking the request.
func (s *Server) notifyAboutMessage(c *fiber.Ctx, groupID uint, message *models.Message) {
	group, err := s.groupService.GetGroup(c.UserContext(), groupID)
	if err != nil {
		return
	}
	senderName := ""
	if message.Sender != nil {
		senderName = message.Sender.Username
	}
	go s.notifyGroupMembers(s.backgroundCtx(), group, message, senderName)
}
