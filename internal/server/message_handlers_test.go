package server

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"huddle/internal/models"
	"huddle/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// messagingFixture registers two members and an outsider around one group.
type messagingFixture struct {
	ts       *testServer
	groupID  uint
	alice    string
	aliceID  uint
	bob      string
	bobID    uint
	outsider string
}

func newMessagingFixture(t *testing.T) *messagingFixture {
	t.Helper()
	ts := newTestServer(t)

	alice, aliceID := ts.registerUser(t, "alice")
	bob, bobID := ts.registerUser(t, "bob")
	outsider, _ := ts.registerUser(t, "mallory")
	groupID := ts.createGroup(t, alice, "Weekend Hikers")

	resp := ts.request(t, http.MethodPost, fmt.Sprintf("/api/groups/%d/join", groupID), bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	return &messagingFixture{
		ts:       ts,
		groupID:  groupID,
		alice:    alice,
		aliceID:  aliceID,
		bob:      bob,
		bobID:    bobID,
		outsider: outsider,
	}
}

func (f *messagingFixture) send(t *testing.T, token, content string) models.Message {
	t.Helper()
	resp := f.ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/send", f.groupID), token, map[string]string{
		"content": content,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var msg models.Message
	decodeBody(t, resp, &msg)
	return msg
}

func TestSendMessage(t *testing.T) {
	f := newMessagingFixture(t)

	msg := f.send(t, f.alice, "hello")
	assert.Equal(t, uint64(1), msg.Seq)
	assert.Equal(t, f.aliceID, msg.SenderID)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "alice", msg.Sender.Username)

	msg = f.send(t, f.bob, "hi back")
	assert.Equal(t, uint64(2), msg.Seq, "sequence numbers are gap-free per group")
}

func TestSendMessage_Validation(t *testing.T) {
	f := newMessagingFixture(t)

	resp := f.ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/send", f.groupID), f.alice, map[string]string{
		"content": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp = f.ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/send", f.groupID), f.alice, map[string]string{
		"content": strings.Repeat("a", 4001),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestSendMessage_NonMemberForbidden(t *testing.T) {
	f := newMessagingFixture(t)

	resp := f.ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/send", f.groupID), f.outsider, map[string]string{
		"content": "let me in",
	})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSendImage(t *testing.T) {
	f := newMessagingFixture(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="file"; filename="photo.png"`},
		"Content-Type":        {"image/png"},
	})
	require.NoError(t, err)
	_, err = part.Write(testutil.TinyPNG(t, 4, 4))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("caption", "trail view"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/messages/%d/send-image", f.groupID), &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+f.alice)

	resp, err := f.ts.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var msg models.Message
	decodeBody(t, resp, &msg)
	require.NotNil(t, msg.FileURL)
	assert.True(t, strings.HasPrefix(*msg.FileURL, "memory://"))
	assert.Equal(t, "trail view", msg.Content)
	assert.Equal(t, 1, f.ts.blobs.Len())
}

func TestGetMessages_PagesFromNewest(t *testing.T) {
	f := newMessagingFixture(t)
	for i := 1; i <= 5; i++ {
		f.send(t, f.alice, fmt.Sprintf("message %d", i))
	}

	resp := f.ts.request(t, http.MethodGet, fmt.Sprintf("/api/messages/%d?limit=2", f.groupID), f.bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page []models.Message
	decodeBody(t, resp, &page)
	require.Len(t, page, 2)
	// Newest two, returned in ascending sequence order.
	assert.Equal(t, uint64(4), page[0].Seq)
	assert.Equal(t, uint64(5), page[1].Seq)
}

func TestSearchMessages(t *testing.T) {
	f := newMessagingFixture(t)
	f.send(t, f.alice, "meet at the trailhead")
	f.send(t, f.bob, "bring water")

	resp := f.ts.request(t, http.MethodGet, fmt.Sprintf("/api/messages/%d/search?q=trailhead", f.groupID), f.bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var hits []models.Message
	decodeBody(t, resp, &hits)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Content, "trailhead")

	resp = f.ts.request(t, http.MethodGet, fmt.Sprintf("/api/messages/%d/search", f.groupID), f.bob, nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "empty query is rejected")
}

func TestDeleteMessage_SenderOnly(t *testing.T) {
	f := newMessagingFixture(t)
	msg := f.send(t, f.alice, "oops wrong group")

	resp := f.ts.request(t, http.MethodDelete, fmt.Sprintf("/api/messages/%d", msg.ID), f.bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp = f.ts.request(t, http.MethodDelete, fmt.Sprintf("/api/messages/%d", msg.ID), f.alice, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = f.ts.request(t, http.MethodGet, fmt.Sprintf("/api/messages/%d", f.groupID), f.alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []models.Message
	decodeBody(t, resp, &history)
	assert.Empty(t, history, "deleted messages disappear from history")
}

func TestReactions(t *testing.T) {
	f := newMessagingFixture(t)
	msg := f.send(t, f.alice, "we made it!")

	var body struct {
		MessageID uint                     `json:"message_id"`
		Reactions []models.ReactionSummary `json:"reactions"`
	}

	resp := f.ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/react", msg.ID), f.bob, map[string]string{
		"reaction_type": "tada",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &body)
	require.Len(t, body.Reactions, 1)
	assert.Equal(t, "tada", body.Reactions[0].ReactionType)
	assert.Equal(t, 1, body.Reactions[0].Count)

	// Re-adding the same reaction does not double count.
	resp = f.ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/react", msg.ID), f.bob, map[string]string{
		"reaction_type": "tada",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &body)
	require.Len(t, body.Reactions, 1)
	assert.Equal(t, 1, body.Reactions[0].Count)

	resp = f.ts.request(t, http.MethodDelete, fmt.Sprintf("/api/messages/%d/react", msg.ID), f.bob, map[string]string{
		"reaction_type": "tada",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &body)
	assert.Empty(t, body.Reactions)
}

func TestReactions_ClientFieldName(t *testing.T) {
	f := newMessagingFixture(t)
	msg := f.send(t, f.alice, "nice view")

	var body struct {
		MessageID uint                     `json:"message_id"`
		Reactions []models.ReactionSummary `json:"reactions"`
	}

	// The client sends reactionType, not reaction_type.
	resp := f.ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/react", msg.ID), f.bob, map[string]string{
		"reactionType": "👍",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &body)
	require.Len(t, body.Reactions, 1)
	assert.Equal(t, "👍", body.Reactions[0].ReactionType)
	assert.Equal(t, 1, body.Reactions[0].Count)

	resp = f.ts.request(t, http.MethodDelete, fmt.Sprintf("/api/messages/%d/react", msg.ID), f.bob, map[string]string{
		"reactionType": "👍",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &body)
	assert.Empty(t, body.Reactions)
}

func TestReactions_NonMemberForbidden(t *testing.T) {
	f := newMessagingFixture(t)
	msg := f.send(t, f.alice, "hello")

	resp := f.ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/react", msg.ID), f.outsider, map[string]string{
		"reaction_type": "thumbsup",
	})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestReadReceipts(t *testing.T) {
	f := newMessagingFixture(t)
	msg := f.send(t, f.alice, "read me")

	resp := f.ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/read", msg.ID), f.bob, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Marking twice keeps the first timestamp.
	time.Sleep(5 * time.Millisecond)
	resp = f.ts.request(t, http.MethodPost, fmt.Sprintf("/api/messages/%d/read", msg.ID), f.bob, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = f.ts.request(t, http.MethodGet, fmt.Sprintf("/api/messages/%d/readers", msg.ID), f.alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var readers []models.ReadReceipt
	decodeBody(t, resp, &readers)
	require.Len(t, readers, 1)
	assert.Equal(t, f.bobID, readers[0].UserID)
}
