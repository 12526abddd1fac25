package service

import (
	"context"
	"testing"

	"huddle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupService_CreateGroup(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")

	group, err := env.groups.CreateGroup(ctx, alice.ID, "general", "the default room")
	require.NoError(t, err)
	assert.NotZero(t, group.ID)
	assert.Equal(t, alice.ID, group.CreatedBy)
	assert.Equal(t, int64(1), group.MemberCount)

	isMember, err := env.groups.IsMember(ctx, group.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, isMember)
}

func TestGroupService_CreateGroup_Validation(t *testing.T) {
	env := newServiceEnv(t)
	alice := env.createUser(t, "alice")

	_, err := env.groups.CreateGroup(context.Background(), alice.ID, "   ", "")
	assertAppErrorCode(t, err, models.CodeValidation)
}

func TestGroupService_JoinAndLeave(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	group, err := env.groups.CreateGroup(ctx, alice.ID, "general", "")
	require.NoError(t, err)

	first, err := env.groups.JoinGroup(ctx, group.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := env.groups.JoinGroup(ctx, group.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, again, "re-join is idempotent")

	left, err := env.groups.LeaveGroup(ctx, group.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, left)

	left, err = env.groups.LeaveGroup(ctx, group.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, left, "leaving twice is a no-op")
}

func TestGroupService_JoinGroup_MissingGroup(t *testing.T) {
	env := newServiceEnv(t)
	bob := env.createUser(t, "bob")

	_, err := env.groups.JoinGroup(context.Background(), 999, bob.ID)
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestGroupService_LeaveGroup_MissingGroup(t *testing.T) {
	env := newServiceEnv(t)
	bob := env.createUser(t, "bob")

	_, err := env.groups.LeaveGroup(context.Background(), 999, bob.ID)
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestGroupService_DeleteGroup_OwnerOnly(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	group, err := env.groups.CreateGroup(ctx, alice.ID, "general", "")
	require.NoError(t, err)
	_, err = env.groups.JoinGroup(ctx, group.ID, bob.ID)
	require.NoError(t, err)

	err = env.groups.DeleteGroup(ctx, group.ID, bob.ID)
	assertAppErrorCode(t, err, models.CodeForbidden)

	require.NoError(t, env.groups.DeleteGroup(ctx, group.ID, alice.ID))

	_, err = env.groups.GetGroup(ctx, group.ID)
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestGroupService_ListMembers_MembersOnly(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	mallory := env.createUser(t, "mallory")

	group, err := env.groups.CreateGroup(ctx, alice.ID, "general", "")
	require.NoError(t, err)

	_, err = env.groups.ListMembers(ctx, group.ID, mallory.ID)
	assertAppErrorCode(t, err, models.CodeForbidden)

	members, err := env.groups.ListMembers(ctx, group.ID, alice.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}
