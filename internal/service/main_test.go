package service

import (
	"context"
	"testing"

	"huddle/internal/models"
	"huddle/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type serviceTestEnv struct {
	db       *gorm.DB
	users    *UserService
	groups   *GroupService
	messages *MessageService
	blobs    *stubBlobStore
}

type stubBlobStore struct {
	stored int
	fail   error
}

func (s *stubBlobStore) Store(_ context.Context, filename, _ string, _ []byte) (string, error) {
	if s.fail != nil {
		return "", s.fail
	}
	s.stored++
	return "https://blobs.test/" + filename, nil
}

func newServiceEnv(t *testing.T) *serviceTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMembership{},
		&models.Message{},
		&models.Reaction{},
		&models.ReadReceipt{},
	))

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	blobs := &stubBlobStore{}

	return &serviceTestEnv{
		db:       db,
		users:    NewUserService(userRepo),
		groups:   NewGroupService(groupRepo),
		messages: NewMessageService(messageRepo, groupRepo, blobs),
		blobs:    blobs,
	}
}

func (env *serviceTestEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", Password: "hash"}
	require.NoError(t, env.db.Create(user).Error)
	return user
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
}
