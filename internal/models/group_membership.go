package models

import "time"

// GroupMembershipRole defines a member's role in a group.
type GroupMembershipRole string

const (
	// GroupMembershipRoleOwner is the group creator role.
	GroupMembershipRoleOwner GroupMembershipRole = "owner"
	// GroupMembershipRoleMember is the default member role.
	GroupMembershipRoleMember GroupMembershipRole = "member"
)

// GroupMembership maps users to groups and tracks role. The composite
// primary key guarantees at most one row per user per group.
type GroupMembership struct {
	GroupID   uint                `gorm:"primaryKey;autoIncrement:false" json:"group_id"`
	Group     *Group              `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	UserID    uint                `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User      *User               `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role      GroupMembershipRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	CreatedAt time.Time           `json:"joined_at"`
}

// TableName specifies the table name for GORM.
func (GroupMembership) TableName() string {
	return "group_memberships"
}
