package models

import "time"

// Reaction records that a user holds a reaction of a given type on a message.
// The composite primary key makes the (message, user, type) triple unique, so
// re-adding an existing reaction can never duplicate it. A user may hold
// several distinct reaction types on the same message.
type Reaction struct {
	MessageID    uint      `gorm:"primaryKey;autoIncrement:false" json:"message_id"`
	UserID       uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ReactionType string    `gorm:"primaryKey;size:32" json:"reaction_type"`
	User         *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Reaction) TableName() string {
	return "reactions"
}

// ReactionSummary aggregates one reaction type on a message. Summaries are
// full snapshots so clients can re-apply them idempotently.
type ReactionSummary struct {
	ReactionType string   `json:"reaction_type"`
	Count        int      `json:"count"`
	UserIDs      []uint   `json:"user_ids"`
	Usernames    []string `json:"usernames,omitempty"`
}
