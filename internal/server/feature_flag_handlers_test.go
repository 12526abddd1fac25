package server

import (
	"fmt"
	"net/http"
	"testing"

	"huddle/internal/featureflags"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFeatureFlags(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.registerUser(t, "alice")

	resp := ts.request(t, http.MethodGet, "/api/features", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}
	decodeBody(t, resp, &body)
	assert.Equal(t, "on", body.Raw["image_uploads"])
	assert.True(t, body.Evaluated["message_search"])
}

func TestSearchMessages_DisabledByFlag(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.registerUser(t, "alice")
	groupID := ts.createGroup(t, token, "Weekend Hikers")

	ts.srv.featureFlags = featureflags.NewManager("message_search=off")

	resp := ts.request(t, http.MethodGet, fmt.Sprintf("/api/messages/%d/search?q=x", groupID), token, nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
