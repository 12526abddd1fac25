package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"huddle/internal/models"
	"huddle/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository defines persistence operations for messages, reactions,
// and read receipts.
type MessageRepository interface {
	// Create persists the message and assigns its group-scoped sequence
	// number. The sequence is allocated inside the insert transaction, so
	// concurrent sends to the same group get strictly increasing, gap-free
	// numbers in commit order.
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	List(ctx context.Context, groupID uint, limit, offset int) ([]models.Message, error)
	Search(ctx context.Context, groupID uint, query string, limit int) ([]models.Message, error)
	Delete(ctx context.Context, id uint) error

	AddReaction(ctx context.Context, reaction *models.Reaction) (bool, error)
	RemoveReaction(ctx context.Context, messageID, userID uint, reactionType string) (bool, error)
	ListReactions(ctx context.Context, messageID uint) ([]models.ReactionSummary, error)

	MarkRead(ctx context.Context, messageID, userID uint) (bool, error)
	ListReaders(ctx context.Context, messageID uint) ([]models.ReadReceipt, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The UPDATE takes a row lock on the group, serializing concurrent
		// sends to the same group for the rest of the transaction.
		res := tx.Model(&models.Group{}).
			Where("id = ?", msg.GroupID).
			UpdateColumn("last_seq", gorm.Expr("last_seq + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Group", msg.GroupID)
		}

		var group models.Group
		if err := tx.Select("last_seq").First(&group, msg.GroupID).Error; err != nil {
			return err
		}
		msg.Seq = group.LastSeq

		return tx.Create(msg).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}

	kind := "text"
	if msg.FileURL != nil {
		kind = "image"
	}
	observability.MessageThroughput.WithLabelValues(kind).Inc()
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).Preload("Sender").First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &msg, nil
}

// List returns messages for a group in sequence order, oldest first within
// the requested window. Offset counts back from the newest message so page 0
// is always the most recent history.
func (r *messageRepository) List(ctx context.Context, groupID uint, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Preload("Sender").
		Order("seq DESC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	// Reverse into ascending sequence order for delivery.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	if err := r.fillReactions(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) Search(ctx context.Context, groupID uint, query string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	// LOWER on both sides keeps matching case-insensitive on postgres too,
	// where plain LIKE is case-sensitive.
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND LOWER(content) LIKE LOWER(?)", groupID, "%"+query+"%").
		Preload("Sender").
		Order("seq DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

func (r *messageRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Message{}, id)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Message", id)
	}
	return nil
}

func (r *messageRepository) AddReaction(ctx context.Context, reaction *models.Reaction) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", reaction.MessageID).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	if count == 0 {
		return false, models.NewNotFoundError("Message", reaction.MessageID)
	}

	if reaction.CreatedAt.IsZero() {
		reaction.CreatedAt = time.Now()
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(reaction)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *messageRepository) RemoveReaction(ctx context.Context, messageID, userID uint, reactionType string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND reaction_type = ?", messageID, userID, reactionType).
		Delete(&models.Reaction{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListReactions aggregates reactions by type. Types are ordered by the time
// of their earliest reaction, so the snapshot is stable as counts change.
func (r *messageRepository) ListReactions(ctx context.Context, messageID uint) ([]models.ReactionSummary, error) {
	var reactions []models.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Preload("User").
		Order("created_at ASC").
		Find(&reactions).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return summarizeReactions(reactions), nil
}

func summarizeReactions(reactions []models.Reaction) []models.ReactionSummary {
	byType := make(map[string]*models.ReactionSummary)
	order := make([]string, 0)
	for _, reaction := range reactions {
		summary, ok := byType[reaction.ReactionType]
		if !ok {
			summary = &models.ReactionSummary{ReactionType: reaction.ReactionType}
			byType[reaction.ReactionType] = summary
			order = append(order, reaction.ReactionType)
		}
		summary.Count++
		summary.UserIDs = append(summary.UserIDs, reaction.UserID)
		if reaction.User != nil {
			summary.Usernames = append(summary.Usernames, reaction.User.Username)
		}
	}
	out := make([]models.ReactionSummary, 0, len(order))
	for _, t := range order {
		out = append(out, *byType[t])
	}
	return out
}

func (r *messageRepository) fillReactions(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	var reactions []models.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id IN ?", ids).
		Preload("User").
		Order("created_at ASC").
		Find(&reactions).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	byMessage := make(map[uint][]models.Reaction)
	for _, reaction := range reactions {
		byMessage[reaction.MessageID] = append(byMessage[reaction.MessageID], reaction)
	}
	for i := range messages {
		if rs, ok := byMessage[messages[i].ID]; ok {
			messages[i].Reactions = summarizeReactions(rs)
		}
	}
	return nil
}

func (r *messageRepository) MarkRead(ctx context.Context, messageID, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", messageID).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	if count == 0 {
		return false, models.NewNotFoundError("Message", messageID)
	}

	receipt := models.ReadReceipt{
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    time.Now(),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&receipt)
	if res.Error != nil {
		return false, models.NewInternalError(fmt.Errorf("mark read: %w", res.Error))
	}
	return res.RowsAffected > 0, nil
}

func (r *messageRepository) ListReaders(ctx context.Context, messageID uint) ([]models.ReadReceipt, error) {
	var receipts []models.ReadReceipt
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Preload("User").
		Order("read_at ASC").
		Find(&receipts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return receipts, nil
}
