package repository

import (
	"context"
	"sync"
	"testing"

	"huddle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupGroup(t *testing.T) (*messageTestEnv, *models.Group) {
	t.Helper()
	db := newTestDB(t)
	env := &messageTestEnv{
		db:       db,
		groups:   NewGroupRepository(db),
		messages: NewMessageRepository(db),
		alice:    createTestUser(t, db, "alice"),
		bob:      createTestUser(t, db, "bob"),
	}
	group := &models.Group{Name: "general"}
	require.NoError(t, env.groups.CreateWithOwner(context.Background(), group, env.alice.ID))
	_, err := env.groups.AddMember(context.Background(), group.ID, env.bob.ID, models.GroupMembershipRoleMember)
	require.NoError(t, err)
	return env, group
}

type messageTestEnv struct {
	db       *gorm.DB
	groups   GroupRepository
	messages MessageRepository
	alice    *models.User
	bob      *models.User
}

func TestMessageRepository_Create_AssignsSequence(t *testing.T) {
	env, group := setupGroup(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		msg := &models.Message{GroupID: group.ID, SenderID: env.alice.ID, Content: "hello"}
		require.NoError(t, env.messages.Create(ctx, msg))
		assert.Equal(t, uint64(i), msg.Seq)
	}
}

func TestMessageRepository_Create_MissingGroup(t *testing.T) {
	env, _ := setupGroup(t)

	msg := &models.Message{GroupID: 999, SenderID: env.alice.ID, Content: "hello"}
	err := env.messages.Create(context.Background(), msg)
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}

func TestMessageRepository_Create_ConcurrentSendersGetGapFreeSequence(t *testing.T) {
	env, group := setupGroup(t)
	ctx := context.Background()

	const senders = 4
	const perSender = 10

	var wg sync.WaitGroup
	errs := make(chan error, senders*perSender)
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				msg := &models.Message{GroupID: group.ID, SenderID: env.alice.ID, Content: "x"}
				if err := env.messages.Create(ctx, msg); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent create: %v", err)
	}

	msgs, err := env.messages.List(ctx, group.ID, 100, 0)
	require.NoError(t, err)
	require.Len(t, msgs, senders*perSender)
	for i, m := range msgs {
		assert.Equal(t, uint64(i+1), m.Seq, "sequence must be gap-free and strictly increasing")
	}
}

func TestMessageRepository_List_PagesFromNewest(t *testing.T) {
	env, group := setupGroup(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		msg := &models.Message{GroupID: group.ID, SenderID: env.alice.ID, Content: "m"}
		require.NoError(t, env.messages.Create(ctx, msg))
	}

	page, err := env.messages.List(ctx, group.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(4), page[0].Seq)
	assert.Equal(t, uint64(5), page[1].Seq)

	page, err = env.messages.List(ctx, group.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(2), page[0].Seq)
	assert.Equal(t, uint64(3), page[1].Seq)
}

func TestMessageRepository_Search(t *testing.T) {
	env, group := setupGroup(t)
	ctx := context.Background()

	contents := []string{"deploy went fine", "lunch anyone?", "deploy rolled back"}
	for _, c := range contents {
		msg := &models.Message{GroupID: group.ID, SenderID: env.bob.ID, Content: c}
		require.NoError(t, env.messages.Create(ctx, msg))
	}

	hits, err := env.messages.Search(ctx, group.ID, "deploy", 50)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	// Matching ignores case regardless of dialect.
	hits, err = env.messages.Search(ctx, group.ID, "DePloy", 50)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestMessageRepository_Delete_SoftDeletesFromHistory(t *testing.T) {
	env, group := setupGroup(t)
	ctx := context.Background()

	msg := &models.Message{GroupID: group.ID, SenderID: env.alice.ID, Content: "oops"}
	require.NoError(t, env.messages.Create(ctx, msg))

	require.NoError(t, env.messages.Delete(ctx, msg.ID))

	msgs, err := env.messages.List(ctx, group.ID, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = env.messages.GetByID(ctx, msg.ID)
	require.Error(t, err)
}

func TestMessageRepository_Reactions(t *testing.T) {
	env, group := setupGroup(t)
	ctx := context.Background()

	msg := &models.Message{GroupID: group.ID, SenderID: env.alice.ID, Content: "hi"}
	require.NoError(t, env.messages.Create(ctx, msg))

	added, err := env.messages.AddReaction(ctx, &models.Reaction{
		MessageID: msg.ID, UserID: env.bob.ID, ReactionType: "thumbsup",
	})
	require.NoError(t, err)
	assert.True(t, added)

	// Re-adding the same reaction is idempotent.
	added, err = env.messages.AddReaction(ctx, &models.Reaction{
		MessageID: msg.ID, UserID: env.bob.ID, ReactionType: "thumbsup",
	})
	require.NoError(t, err)
	assert.False(t, added)

	// The same user can hold a second, distinct reaction type.
	added, err = env.messages.AddReaction(ctx, &models.Reaction{
		MessageID: msg.ID, UserID: env.bob.ID, ReactionType: "heart",
	})
	require.NoError(t, err)
	assert.True(t, added)

	summaries, err := env.messages.ListReactions(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "thumbsup", summaries[0].ReactionType)
	assert.Equal(t, 1, summaries[0].Count)
	assert.Equal(t, []uint{env.bob.ID}, summaries[0].UserIDs)

	removed, err := env.messages.RemoveReaction(ctx, msg.ID, env.bob.ID, "thumbsup")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = env.messages.RemoveReaction(ctx, msg.ID, env.bob.ID, "thumbsup")
	require.NoError(t, err)
	assert.False(t, removed, "removing an absent reaction is a no-op")

	summaries, err = env.messages.ListReactions(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "heart", summaries[0].ReactionType)
}

func TestMessageRepository_AddReaction_MissingMessage(t *testing.T) {
	env, _ := setupGroup(t)

	_, err := env.messages.AddReaction(context.Background(), &models.Reaction{
		MessageID: 999, UserID: env.bob.ID, ReactionType: "thumbsup",
	})
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}

func TestMessageRepository_ReadReceipts(t *testing.T) {
	env, group := setupGroup(t)
	ctx := context.Background()

	msg := &models.Message{GroupID: group.ID, SenderID: env.alice.ID, Content: "hi"}
	require.NoError(t, env.messages.Create(ctx, msg))

	inserted, err := env.messages.MarkRead(ctx, msg.ID, env.bob.ID)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = env.messages.MarkRead(ctx, msg.ID, env.bob.ID)
	require.NoError(t, err)
	assert.False(t, inserted, "second read keeps the first timestamp")

	readers, err := env.messages.ListReaders(ctx, msg.ID)
	require.NoError(t, err)
	require.Len(t, readers, 1)
	assert.Equal(t, env.bob.ID, readers[0].UserID)
	require.NotNil(t, readers[0].User)
	assert.Equal(t, "bob", readers[0].User.Username)
}

func TestMessageRepository_ListFillsReactions(t *testing.T) {
	env, group := setupGroup(t)
	ctx := context.Background()

	msg := &models.Message{GroupID: group.ID, SenderID: env.alice.ID, Content: "hi"}
	require.NoError(t, env.messages.Create(ctx, msg))
	_, err := env.messages.AddReaction(ctx, &models.Reaction{
		MessageID: msg.ID, UserID: env.bob.ID, ReactionType: "thumbsup",
	})
	require.NoError(t, err)

	msgs, err := env.messages.List(ctx, group.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].Reactions, 1)
	assert.Equal(t, "thumbsup", msgs[0].Reactions[0].ReactionType)
}
