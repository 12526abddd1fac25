package notifications

import (
	"encoding/json"
	"log"

	"huddle/internal/models"
)

// Event names understood by clients.
const (
	EventAuthenticated  = "authenticated"
	EventNewMessage     = "new_message"
	EventMessageDeleted = "message_deleted"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventPresenceUpdate = "presence_update"
	EventReactionUpdate = "reaction_update"
	EventError          = "error"
	EventConnectError   = "connect_error"
)

// Event is the envelope for every frame sent to clients.
type Event struct {
	Type    string      `json:"type"`
	GroupID uint        `json:"group_id,omitempty"`
	Payload interface{} `json:"payload"`
}

// Encode marshals the event for the wire. Marshal failures are logged and
// return nil; callers treat nil as "skip".
func (e Event) Encode() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("event marshal failed (type %s): %v", e.Type, err)
		return nil
	}
	return data
}

// NewMessageEvent wraps a persisted message for fan-out.
func NewMessageEvent(msg *models.Message) Event {
	return Event{Type: EventNewMessage, GroupID: msg.GroupID, Payload: msg}
}

// MessageDeletedEvent announces a soft-deleted message.
func MessageDeletedEvent(groupID, messageID uint) Event {
	return Event{Type: EventMessageDeleted, GroupID: groupID, Payload: map[string]interface{}{
		"message_id": messageID,
	}}
}

// UserJoinedEvent announces a first-time join to a group.
func UserJoinedEvent(groupID, userID uint, username string) Event {
	return Event{Type: EventUserJoined, GroupID: groupID, Payload: map[string]interface{}{
		"user_id":  userID,
		"username": username,
	}}
}

// UserLeftEvent announces a member leaving a group.
func UserLeftEvent(groupID, userID uint, username string) Event {
	return Event{Type: EventUserLeft, GroupID: groupID, Payload: map[string]interface{}{
		"user_id":  userID,
		"username": username,
	}}
}

// PresenceUpdateEvent announces an online/offline transition to a group.
func PresenceUpdateEvent(groupID, userID uint, status string) Event {
	return Event{Type: EventPresenceUpdate, GroupID: groupID, Payload: map[string]interface{}{
		"user_id": userID,
		"status":  status,
	}}
}

// ReactionUpdateEvent carries the full reaction snapshot for a message, so
// clients replace state instead of applying deltas.
func ReactionUpdateEvent(groupID, messageID uint, reactions []models.ReactionSummary) Event {
	if reactions == nil {
		reactions = []models.ReactionSummary{}
	}
	return Event{Type: EventReactionUpdate, GroupID: groupID, Payload: map[string]interface{}{
		"message_id": messageID,
		"reactions":  reactions,
	}}
}

// ErrorEvent is sent only to the connection whose request failed.
func ErrorEvent(code, message string) Event {
	return Event{Type: EventError, Payload: map[string]interface{}{
		"code":    code,
		"message": message,
	}}
}

// ConnectErrorEvent is sent when the authenticate handshake fails.
func ConnectErrorEvent(message string) Event {
	return Event{Type: EventConnectError, Payload: map[string]interface{}{
		"message": message,
	}}
}
