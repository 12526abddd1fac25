package service

import (
	"context"

	"huddle/internal/models"
	"huddle/internal/repository"
	"huddle/internal/validation"
)

// GroupService handles group lifecycle and membership.
type GroupService struct {
	groupRepo repository.GroupRepository
}

// NewGroupService returns a new GroupService.
func NewGroupService(groupRepo repository.GroupRepository) *GroupService {
	return &GroupService{groupRepo: groupRepo}
}

// CreateGroup creates a group with the caller as owner and first member.
func (s *GroupService) CreateGroup(ctx context.Context, creatorID uint, name, description string) (*models.Group, error) {
	if err := validation.ValidateGroupName(name); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if len(description) > 1000 {
		return nil, models.NewValidationError("Description too long (max 1000 characters)")
	}

	group := &models.Group{Name: name, Description: description}
	if err := s.groupRepo.CreateWithOwner(ctx, group, creatorID); err != nil {
		return nil, err
	}
	group.MemberCount = 1
	return group, nil
}

// JoinGroup adds the user to the group. The returned bool reports whether
// this was a first join, so callers only announce user_joined once.
func (s *GroupService) JoinGroup(ctx context.Context, groupID, userID uint) (bool, error) {
	return s.groupRepo.AddMember(ctx, groupID, userID, models.GroupMembershipRoleMember)
}

// LeaveGroup removes the user's membership. Leaving a group you are not in
// is a no-op, reported via the returned bool.
func (s *GroupService) LeaveGroup(ctx context.Context, groupID, userID uint) (bool, error) {
	if _, err := s.groupRepo.GetByID(ctx, groupID); err != nil {
		return false, err
	}
	return s.groupRepo.RemoveMember(ctx, groupID, userID)
}

func (s *GroupService) GetGroup(ctx context.Context, groupID uint) (*models.Group, error) {
	return s.groupRepo.GetByID(ctx, groupID)
}

// DeleteGroup removes the group and its memberships. Only the owner may
// delete a group.
func (s *GroupService) DeleteGroup(ctx context.Context, groupID, userID uint) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group.CreatedBy != userID {
		return models.NewForbiddenError("Only the group owner can delete the group")
	}
	return s.groupRepo.Delete(ctx, groupID)
}

// ListAllGroups returns every group for discovery.
func (s *GroupService) ListAllGroups(ctx context.Context, limit, offset int) ([]models.Group, error) {
	return s.groupRepo.ListAll(ctx, limit, offset)
}

// ListJoinedGroups returns groups the user belongs to.
func (s *GroupService) ListJoinedGroups(ctx context.Context, userID uint) ([]models.Group, error) {
	return s.groupRepo.ListJoined(ctx, userID)
}

// ListMembers returns group members. Any member may view the roster.
func (s *GroupService) ListMembers(ctx context.Context, groupID, callerID uint) ([]models.GroupMembership, error) {
	if err := s.requireMember(ctx, groupID, callerID); err != nil {
		return nil, err
	}
	return s.groupRepo.ListMembers(ctx, groupID)
}

// ListMemberIDs returns member user IDs without loading full users. Used by
// the fan-out and push paths.
func (s *GroupService) ListMemberIDs(ctx context.Context, groupID uint) ([]uint, error) {
	return s.groupRepo.ListMemberIDs(ctx, groupID)
}

// ListGroupIDsOf returns IDs of the groups the user belongs to.
func (s *GroupService) ListGroupIDsOf(ctx context.Context, userID uint) ([]uint, error) {
	return s.groupRepo.ListGroupIDsOf(ctx, userID)
}

// IsMember reports membership. Exposed for the realtime layer's join checks.
func (s *GroupService) IsMember(ctx context.Context, groupID, userID uint) (bool, error) {
	return s.groupRepo.IsMember(ctx, groupID, userID)
}

func (s *GroupService) requireMember(ctx context.Context, groupID, userID uint) error {
	isMember, err := s.groupRepo.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return models.NewForbiddenError("You are not a member of this group")
	}
	return nil
}
