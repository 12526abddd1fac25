package repository

import (
	"context"
	"errors"

	"huddle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GroupRepository defines persistence operations for groups and memberships.
type GroupRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Group, error)
	CreateWithOwner(ctx context.Context, group *models.Group, ownerID uint) error
	Delete(ctx context.Context, id uint) error

	// AddMember inserts a membership row if absent. The returned bool reports
	// whether a row was actually inserted, so callers can tell a first join
	// from an idempotent re-join.
	AddMember(ctx context.Context, groupID, userID uint, role models.GroupMembershipRole) (bool, error)
	RemoveMember(ctx context.Context, groupID, userID uint) (bool, error)
	IsMember(ctx context.Context, groupID, userID uint) (bool, error)

	ListAll(ctx context.Context, limit, offset int) ([]models.Group, error)
	ListJoined(ctx context.Context, userID uint) ([]models.Group, error)
	ListMembers(ctx context.Context, groupID uint) ([]models.GroupMembership, error)
	ListMemberIDs(ctx context.Context, groupID uint) ([]uint, error)
	ListGroupIDsOf(ctx context.Context, userID uint) ([]uint, error)
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository returns a new GroupRepository implementation.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).Preload("Creator").First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Group", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &group, nil
}

// CreateWithOwner creates the group and the owner membership in one
// transaction so a group can never exist without its owner as a member.
func (r *groupRepository) CreateWithOwner(ctx context.Context, group *models.Group, ownerID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group.CreatedBy = ownerID
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		membership := models.GroupMembership{
			GroupID: group.ID,
			UserID:  ownerID,
			Role:    models.GroupMembershipRoleOwner,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *groupRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&models.GroupMembership{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Group{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Group", id)
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *groupRepository) AddMember(ctx context.Context, groupID, userID uint, role models.GroupMembershipRole) (bool, error) {
	// Verify the group exists first so a join against a missing group is a
	// clean not-found instead of an FK error.
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	if count == 0 {
		return false, models.NewNotFoundError("Group", groupID)
	}

	membership := models.GroupMembership{
		GroupID: groupID,
		UserID:  userID,
		Role:    role,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&membership)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *groupRepository) RemoveMember(ctx context.Context, groupID, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMembership{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *groupRepository) IsMember(ctx context.Context, groupID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *groupRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Group, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&groups).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.fillMemberCounts(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *groupRepository) ListJoined(ctx context.Context, userID uint) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Joins("JOIN group_memberships ON group_memberships.group_id = groups.id").
		Where("group_memberships.user_id = ?", userID).
		Preload("Creator").
		Order("groups.created_at DESC").
		Find(&groups).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.fillMemberCounts(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *groupRepository) fillMemberCounts(ctx context.Context, groups []models.Group) error {
	if len(groups) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	type row struct {
		GroupID uint
		Cnt     int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.GroupMembership{}).
		Select("group_id, COUNT(*) as cnt").
		Where("group_id IN ?", ids).
		Group("group_id").
		Scan(&rows).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	counts := make(map[uint]int64, len(rows))
	for _, rw := range rows {
		counts[rw.GroupID] = rw.Cnt
	}
	for i := range groups {
		groups[i].MemberCount = counts[groups[i].ID]
	}
	return nil
}

func (r *groupRepository) ListMembers(ctx context.Context, groupID uint) ([]models.GroupMembership, error) {
	var memberships []models.GroupMembership
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Preload("User").
		Order("created_at ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return memberships, nil
}

func (r *groupRepository) ListMemberIDs(ctx context.Context, groupID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.GroupMembership{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *groupRepository) ListGroupIDsOf(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.GroupMembership{}).
		Where("user_id = ?", userID).
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
