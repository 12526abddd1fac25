package models

import "time"

// User represents a registered account. Accounts are never hard-deleted;
// Disabled gates login instead.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Bio       string    `gorm:"type:text" json:"bio,omitempty"`
	AvatarURL string    `gorm:"size:512" json:"avatar_url,omitempty"`
	PushToken string    `gorm:"size:255" json:"-"`
	Disabled  bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}
