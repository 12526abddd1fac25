package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"huddle/internal/config"
	"huddle/internal/featureflags"
	"huddle/internal/middleware"
	"huddle/internal/models"
	"huddle/internal/notifications"
	"huddle/internal/push"
	"huddle/internal/repository"
	"huddle/internal/service"
	"huddle/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testServer wires a Server against an in-memory database, an in-memory blob
// store, and no Redis. Routes are mounted without the global middleware stack
// so tests exercise handlers and auth directly.
type testServer struct {
	srv   *Server
	app   *fiber.App
	blobs *storage.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection makes every session share the one in-memory DB.
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

	cfg := &config.Config{
		JWTSecret:    "test-secret-test-secret-test-secret!",
		Port:         "0",
		FeatureFlags: "image_uploads=on,message_search=on",
	}

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	blobs := storage.NewMemoryStore()

	presence := notifications.NewPresenceTracker(nil, notifications.PresenceTrackerConfig{})

	srv := &Server{
		config:       cfg,
		db:           db,
		userRepo:     userRepo,
		groupRepo:    groupRepo,
		messageRepo:  messageRepo,
		pushSink:     &push.LogSender{Logger: middleware.Logger},
		blobs:        blobs,
		featureFlags: featureflags.NewManager(cfg.FeatureFlags),
	}
	srv.userService = service.NewUserService(userRepo)
	srv.groupService = service.NewGroupService(groupRepo)
	srv.messageService = service.NewMessageService(messageRepo, groupRepo, blobs)
	srv.presence = presence
	srv.hub = notifications.NewGroupHub(presence)
	srv.hub.SetPresenceCallbacks(srv.onUserOnline, srv.onUserOffline)

	app := fiber.New()
	srv.SetupRoutes(app)

	t.Cleanup(func() {
		_ = srv.hub.Shutdown(context.Background())
		_ = sqlDB.Close()
	})

	return &testServer{srv: srv, app: app, blobs: blobs}
}

// request performs an HTTP request against the test app with an optional JSON
// body and bearer token.
func (ts *testServer) request(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// registerUser creates an account through the API and returns its token and ID.
func (ts *testServer) registerUser(t *testing.T, username string) (token string, userID uint) {
	t.Helper()

	resp := ts.request(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    fmt.Sprintf("%s@example.com", username),
		"password": "Password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Token)
	require.NotZero(t, body.User.ID)
	return body.Token, body.User.ID
}

// createGroup creates a group as the given user and returns its ID.
func (ts *testServer) createGroup(t *testing.T, token, name string) uint {
	t.Helper()

	resp := ts.request(t, http.MethodPost, "/api/groups/", token, map[string]string{
		"name": name,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var group models.Group
	decodeBody(t, resp, &group)
	require.NotZero(t, group.ID)
	return group.ID
}
