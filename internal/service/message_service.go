package service

import (
	"context"
	"strings"

	"huddle/internal/models"
	"huddle/internal/repository"
	"huddle/internal/storage"
)

const maxMessageLen = 4000

// MessageService handles message persistence, reactions, and read receipts.
// Membership is enforced here so every entry point (HTTP or WebSocket) gets
// the same checks.
type MessageService struct {
	messageRepo repository.MessageRepository
	groupRepo   repository.GroupRepository
	blobs       storage.BlobStore
}

// NewMessageService returns a new MessageService.
func NewMessageService(messageRepo repository.MessageRepository, groupRepo repository.GroupRepository, blobs storage.BlobStore) *MessageService {
	return &MessageService{messageRepo: messageRepo, groupRepo: groupRepo, blobs: blobs}
}

// SendMessage validates, persists, and sequences a text message.
func (s *MessageService) SendMessage(ctx context.Context, groupID, senderID uint, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("Message content is required")
	}
	if len(content) > maxMessageLen {
		return nil, models.NewValidationError("Message too long (max 4000 characters)")
	}
	if err := s.requireMember(ctx, groupID, senderID); err != nil {
		return nil, err
	}

	msg := &models.Message{GroupID: groupID, SenderID: senderID, Content: content}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	return s.messageRepo.GetByID(ctx, msg.ID)
}

// SendImage uploads the file to blob storage and persists a message carrying
// its URL. Caption is optional.
func (s *MessageService) SendImage(ctx context.Context, groupID, senderID uint, filename, contentType string, data []byte, caption string) (*models.Message, error) {
	if len(data) == 0 {
		return nil, models.NewValidationError("File is empty")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, models.NewValidationError("Only image uploads are supported")
	}
	if err := s.requireMember(ctx, groupID, senderID); err != nil {
		return nil, err
	}

	url, err := s.blobs.Store(ctx, filename, contentType, data)
	if err != nil {
		return nil, models.NewTransientError(err)
	}

	msg := &models.Message{
		GroupID:  groupID,
		SenderID: senderID,
		Content:  strings.TrimSpace(caption),
		FileURL:  &url,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	return s.messageRepo.GetByID(ctx, msg.ID)
}

// GetHistory returns a page of messages in sequence order, reactions
// included.
func (s *MessageService) GetHistory(ctx context.Context, groupID, userID uint, limit, offset int) ([]models.Message, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.messageRepo.List(ctx, groupID, limit, offset)
}

// Search finds messages in a group matching the query string.
func (s *MessageService) Search(ctx context.Context, groupID, userID uint, query string, limit int) ([]models.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.messageRepo.Search(ctx, groupID, query, limit)
}

// DeleteMessage soft-deletes a message. Only the sender may delete it.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID, userID uint) (*models.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, models.NewForbiddenError("Only the sender can delete a message")
	}
	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		return nil, err
	}
	return msg, nil
}

// AddReaction records a reaction. Re-adding an existing reaction is a no-op;
// the returned summaries always reflect current state.
func (s *MessageService) AddReaction(ctx context.Context, messageID, userID uint, reactionType string) (*models.Message, []models.ReactionSummary, error) {
	reactionType = strings.TrimSpace(reactionType)
	if reactionType == "" {
		return nil, nil, models.NewValidationError("Reaction type is required")
	}
	if len(reactionType) > 32 {
		return nil, nil, models.NewValidationError("Reaction type too long")
	}

	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireMember(ctx, msg.GroupID, userID); err != nil {
		return nil, nil, err
	}

	if _, err := s.messageRepo.AddReaction(ctx, &models.Reaction{
		MessageID:    messageID,
		UserID:       userID,
		ReactionType: reactionType,
	}); err != nil {
		return nil, nil, err
	}

	summaries, err := s.messageRepo.ListReactions(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	return msg, summaries, nil
}

// RemoveReaction removes a reaction if present and returns current state.
func (s *MessageService) RemoveReaction(ctx context.Context, messageID, userID uint, reactionType string) (*models.Message, []models.ReactionSummary, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireMember(ctx, msg.GroupID, userID); err != nil {
		return nil, nil, err
	}

	if _, err := s.messageRepo.RemoveReaction(ctx, messageID, userID, reactionType); err != nil {
		return nil, nil, err
	}

	summaries, err := s.messageRepo.ListReactions(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	return msg, summaries, nil
}

// ListReactions returns reaction summaries for a message.
func (s *MessageService) ListReactions(ctx context.Context, messageID, userID uint) ([]models.ReactionSummary, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, msg.GroupID, userID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListReactions(ctx, messageID)
}

// MarkRead records a read receipt. Idempotent; the first read timestamp wins.
func (s *MessageService) MarkRead(ctx context.Context, messageID, userID uint) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if err := s.requireMember(ctx, msg.GroupID, userID); err != nil {
		return err
	}
	_, err = s.messageRepo.MarkRead(ctx, messageID, userID)
	return err
}

// ListReaders returns who has read a message.
func (s *MessageService) ListReaders(ctx context.Context, messageID, userID uint) ([]models.ReadReceipt, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, msg.GroupID, userID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListReaders(ctx, messageID)
}

func (s *MessageService) requireMember(ctx context.Context, groupID, userID uint) error {
	isMember, err := s.groupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return models.NewForbiddenError("You are not a member of this group")
	}
	return nil
}
