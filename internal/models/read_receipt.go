package models

import "time"

// ReadReceipt marks a message as read by a user. Upserts are idempotent; the
// first ReadAt wins.
type ReadReceipt struct {
	MessageID uint      `gorm:"primaryKey;autoIncrement:false" json:"message_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ReadAt    time.Time `json:"read_at"`
}

// TableName specifies the table name for GORM.
func (ReadReceipt) TableName() string {
	return "read_receipts"
}
