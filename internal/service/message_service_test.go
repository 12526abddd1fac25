package service

import (
	"context"
	"errors"
	"testing"

	"huddle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMessagingEnv(t *testing.T) (*serviceTestEnv, *models.Group, *models.User, *models.User) {
	t.Helper()
	env := newServiceEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	group, err := env.groups.CreateGroup(ctx, alice.ID, "general", "")
	require.NoError(t, err)
	_, err = env.groups.JoinGroup(ctx, group.ID, bob.ID)
	require.NoError(t, err)
	return env, group, alice, bob
}

func TestMessageService_SendMessage(t *testing.T) {
	env, group, alice, _ := setupMessagingEnv(t)
	ctx := context.Background()

	msg, err := env.messages.SendMessage(ctx, group.ID, alice.ID, "  hello world  ")
	require.NoError(t, err)
	assert.Equal(t, "hello world", msg.Content)
	assert.Equal(t, uint64(1), msg.Seq)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "alice", msg.Sender.Username)
}

func TestMessageService_SendMessage_Validation(t *testing.T) {
	env, group, alice, _ := setupMessagingEnv(t)
	ctx := context.Background()

	_, err := env.messages.SendMessage(ctx, group.ID, alice.ID, "   ")
	assertAppErrorCode(t, err, models.CodeValidation)

	long := make([]byte, maxMessageLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = env.messages.SendMessage(ctx, group.ID, alice.ID, string(long))
	assertAppErrorCode(t, err, models.CodeValidation)
}

func TestMessageService_SendMessage_NonMemberForbidden(t *testing.T) {
	env, group, _, _ := setupMessagingEnv(t)
	mallory := env.createUser(t, "mallory")

	_, err := env.messages.SendMessage(context.Background(), group.ID, mallory.ID, "hi")
	assertAppErrorCode(t, err, models.CodeForbidden)
}

func TestMessageService_SendImage(t *testing.T) {
	env, group, alice, _ := setupMessagingEnv(t)
	ctx := context.Background()

	msg, err := env.messages.SendImage(ctx, group.ID, alice.ID, "cat.png", "image/png", []byte{1, 2, 3}, "look")
	require.NoError(t, err)
	require.NotNil(t, msg.FileURL)
	assert.Equal(t, "https://blobs.test/cat.png", *msg.FileURL)
	assert.Equal(t, "look", msg.Content)
	assert.Equal(t, 1, env.blobs.stored)
}

func TestMessageService_SendImage_Validation(t *testing.T) {
	env, group, alice, _ := setupMessagingEnv(t)
	ctx := context.Background()

	_, err := env.messages.SendImage(ctx, group.ID, alice.ID, "cat.png", "image/png", nil, "")
	assertAppErrorCode(t, err, models.CodeValidation)

	_, err = env.messages.SendImage(ctx, group.ID, alice.ID, "notes.txt", "text/plain", []byte{1}, "")
	assertAppErrorCode(t, err, models.CodeValidation)
}

func TestMessageService_SendImage_StorageFailureIsTransient(t *testing.T) {
	env, group, alice, _ := setupMessagingEnv(t)
	env.blobs.fail = errors.New("connection refused")

	_, err := env.messages.SendImage(context.Background(), group.ID, alice.ID, "cat.png", "image/png", []byte{1}, "")
	assertAppErrorCode(t, err, models.CodeTransient)
}

func TestMessageService_GetHistory(t *testing.T) {
	env, group, alice, bob := setupMessagingEnv(t)
	ctx := context.Background()

	for _, c := range []string{"one", "two", "three"} {
		_, err := env.messages.SendMessage(ctx, group.ID, alice.ID, c)
		require.NoError(t, err)
	}

	msgs, err := env.messages.GetHistory(ctx, group.ID, bob.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "three", msgs[2].Content)

	mallory := env.createUser(t, "mallory")
	_, err = env.messages.GetHistory(ctx, group.ID, mallory.ID, 50, 0)
	assertAppErrorCode(t, err, models.CodeForbidden)
}

func TestMessageService_Search(t *testing.T) {
	env, group, alice, bob := setupMessagingEnv(t)
	ctx := context.Background()

	_, err := env.messages.SendMessage(ctx, group.ID, alice.ID, "deploy at noon")
	require.NoError(t, err)
	_, err = env.messages.SendMessage(ctx, group.ID, alice.ID, "lunch?")
	require.NoError(t, err)

	hits, err := env.messages.Search(ctx, group.ID, bob.ID, "deploy", 50)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	_, err = env.messages.Search(ctx, group.ID, bob.ID, "  ", 50)
	assertAppErrorCode(t, err, models.CodeValidation)
}

func TestMessageService_DeleteMessage_SenderOnly(t *testing.T) {
	env, group, alice, bob := setupMessagingEnv(t)
	ctx := context.Background()

	msg, err := env.messages.SendMessage(ctx, group.ID, alice.ID, "oops")
	require.NoError(t, err)

	_, err = env.messages.DeleteMessage(ctx, msg.ID, bob.ID)
	assertAppErrorCode(t, err, models.CodeForbidden)

	deleted, err := env.messages.DeleteMessage(ctx, msg.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, group.ID, deleted.GroupID)

	msgs, err := env.messages.GetHistory(ctx, group.ID, alice.ID, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMessageService_Reactions(t *testing.T) {
	env, group, alice, bob := setupMessagingEnv(t)
	ctx := context.Background()

	msg, err := env.messages.SendMessage(ctx, group.ID, alice.ID, "hi")
	require.NoError(t, err)

	_, summaries, err := env.messages.AddReaction(ctx, msg.ID, bob.ID, "thumbsup")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Count)

	// Idempotent re-add returns the same snapshot.
	_, summaries, err = env.messages.AddReaction(ctx, msg.ID, bob.ID, "thumbsup")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].Count)

	_, summaries, err = env.messages.RemoveReaction(ctx, msg.ID, bob.ID, "thumbsup")
	require.NoError(t, err)
	assert.Empty(t, summaries)

	_, _, err = env.messages.AddReaction(ctx, msg.ID, bob.ID, "")
	assertAppErrorCode(t, err, models.CodeValidation)

	mallory := env.createUser(t, "mallory")
	_, _, err = env.messages.AddReaction(ctx, msg.ID, mallory.ID, "thumbsup")
	assertAppErrorCode(t, err, models.CodeForbidden)
}

func TestMessageService_ReadReceipts(t *testing.T) {
	env, group, alice, bob := setupMessagingEnv(t)
	ctx := context.Background()

	msg, err := env.messages.SendMessage(ctx, group.ID, alice.ID, "hi")
	require.NoError(t, err)

	require.NoError(t, env.messages.MarkRead(ctx, msg.ID, bob.ID))
	require.NoError(t, env.messages.MarkRead(ctx, msg.ID, bob.ID), "marking twice is fine")

	readers, err := env.messages.ListReaders(ctx, msg.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, readers, 1)
	assert.Equal(t, bob.ID, readers[0].UserID)

	mallory := env.createUser(t, "mallory")
	err = env.messages.MarkRead(ctx, msg.ID, mallory.ID)
	assertAppErrorCode(t, err, models.CodeForbidden)
}
