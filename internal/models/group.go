package models

import "time"

// Group is a chat room with a persistent membership list.
// LastSeq is the per-group message sequence counter; it is only ever mutated
// inside the message-insert transaction so assigned sequence numbers are
// strictly increasing and gap-free.
type Group struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedBy   uint      `gorm:"not null" json:"created_by"`
	Creator     *User     `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	LastSeq     uint64    `gorm:"not null;default:0" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// MemberCount is populated by aggregate queries, not stored.
	MemberCount int64 `gorm:"-" json:"member_count,omitempty"`
}

// TableName specifies the table name for GORM.
func (Group) TableName() string {
	return "groups"
}
