package models

import (
	"time"

	"gorm.io/gorm"
)

// Message is a single chat message. Seq is the group-scoped sequence marker
// establishing total order independent of wall-clock timestamps. Messages are
// immutable after insert except for the soft-delete flag.
type Message struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	GroupID   uint           `gorm:"not null;index:idx_messages_group_seq,unique,priority:1" json:"group_id"`
	SenderID  uint           `gorm:"not null" json:"sender_id"`
	Sender    *User          `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Content   string         `gorm:"type:text" json:"content"`
	FileURL   *string        `gorm:"size:512" json:"file_url,omitempty"`
	Seq       uint64         `gorm:"not null;index:idx_messages_group_seq,unique,priority:2" json:"seq"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Reactions is populated by the read path, not stored on the row.
	Reactions []ReactionSummary `gorm:"-" json:"reactions,omitempty"`
}

// TableName specifies the table name for GORM.
func (Message) TableName() string {
	return "messages"
}
