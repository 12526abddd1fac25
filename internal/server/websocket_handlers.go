package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"huddle/internal/middleware"
	"huddle/internal/models"
	"huddle/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketHandler handles WebSocket connections for realtime messaging.
// The upgrade itself is unauthenticated; the connection must send an
// authenticate event before anything else is accepted.
func (s *Server) WebSocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		client := s.hub.NewConn(conn)
		client.IncomingHandler = s.handleSocketEvent

		go client.WritePump()

		// Read pump runs in the handler goroutine (blocking).
		client.ReadPump()

		s.hub.UnregisterClient(client)
	})

	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return upgrade(c)
		}
		return fiber.ErrUpgradeRequired
	}
}

// handleSocketEvent dispatches one inbound frame. Errors are acknowledged to
// the originating connection only; they are never broadcast.
func (s *Server) handleSocketEvent(client *notifications.Client, raw []byte) {
	ctx := context.Background()

	var incoming map[string]interface{}
	if err := json.Unmarshal(raw, &incoming); err != nil {
		client.TrySend(notifications.ErrorEvent(models.CodeValidation, "Invalid message format").Encode())
		return
	}
	msgType, ok := incoming["type"].(string)
	if !ok {
		client.TrySend(notifications.ErrorEvent(models.CodeValidation, "Missing event type").Encode())
		return
	}

	if msgType == "authenticate" {
		s.handleSocketAuth(ctx, client, incoming)
		return
	}

	if !client.Authenticated() {
		client.TrySend(notifications.ErrorEvent(models.CodeUnauthorized, "Authenticate first").Encode())
		return
	}
	userID := client.UserID()

	switch msgType {
	case "join_group":
		groupID, ok := eventGroupID(incoming)
		if !ok {
			client.TrySend(notifications.ErrorEvent(models.CodeValidation, "group_id is required").Encode())
			return
		}
		isMember, err := s.groupService.IsMember(ctx, groupID, userID)
		if err != nil || !isMember {
			client.TrySend(notifications.ErrorEvent(models.CodeForbidden, "You are not a member of this group").Encode())
			return
		}
		s.hub.Subscribe(client, groupID)
		client.TrySend(s.groupPresenceSnapshot(ctx, groupID).Encode())

	case "leave_group":
		groupID, ok := eventGroupID(incoming)
		if !ok {
			client.TrySend(notifications.ErrorEvent(models.CodeValidation, "group_id is required").Encode())
			return
		}
		s.hub.Unsubscribe(client, groupID)

	case "send_message":
		groupID, ok := eventGroupID(incoming)
		if !ok {
			client.TrySend(notifications.ErrorEvent(models.CodeValidation, "group_id is required").Encode())
			return
		}
		content, _ := incoming["content"].(string)

		// Same budget as the HTTP send endpoint.
		id := fmt.Sprintf("user:%d", userID)
		allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "send_message", id, 30, time.Minute)
		if !allowed {
			client.TrySend(notifications.ErrorEvent(models.CodeTransient, "Rate limit exceeded. Please wait a moment.").Encode())
			return
		}

		message, err := s.messageService.SendMessage(ctx, groupID, userID, content)
		if err != nil {
			s.sendSocketError(client, err)
			return
		}
		s.fanOutGroup(ctx, groupID, notifications.NewMessageEvent(message))
		if group, gerr := s.groupService.GetGroup(ctx, groupID); gerr == nil {
			senderName := ""
			if message.Sender != nil {
				senderName = message.Sender.Username
			}
			go s.notifyGroupMembers(s.backgroundCtx(), group, message, senderName)
		}

	case "message_reaction":
		messageID, ok := eventUintField(incoming, "message_id")
		if !ok {
			client.TrySend(notifications.ErrorEvent(models.CodeValidation, "message_id is required").Encode())
			return
		}
		reactionType, _ := incoming["reaction_type"].(string)
		action, _ := incoming["action"].(string)

		var (
			message   *models.Message
			reactions []models.ReactionSummary
			err       error
		)
		switch action {
		case "remove":
			message, reactions, err = s.messageService.RemoveReaction(ctx, messageID, userID, reactionType)
		default:
			message, reactions, err = s.messageService.AddReaction(ctx, messageID, userID, reactionType)
		}
		if err != nil {
			s.sendSocketError(client, err)
			return
		}
		s.fanOutGroup(ctx, message.GroupID, notifications.ReactionUpdateEvent(message.GroupID, messageID, reactions))

	case "mark_read":
		messageID, ok := eventUintField(incoming, "message_id")
		if !ok {
			client.TrySend(notifications.ErrorEvent(models.CodeValidation, "message_id is required").Encode())
			return
		}
		if err := s.messageService.MarkRead(ctx, messageID, userID); err != nil {
			s.sendSocketError(client, err)
		}

	default:
		client.TrySend(notifications.ErrorEvent(models.CodeValidation, "Unknown event type").Encode())
	}
}

// handleSocketAuth promotes an unauthenticated connection. Failure closes the
// socket after a connect_error frame.
func (s *Server) handleSocketAuth(ctx context.Context, client *notifications.Client, incoming map[string]interface{}) {
	if client.Authenticated() {
		client.TrySend(notifications.Event{
			Type:    notifications.EventAuthenticated,
			Payload: map[string]interface{}{"user_id": client.UserID()},
		}.Encode())
		return
	}

	token, _ := incoming["token"].(string)
	if token == "" {
		s.rejectSocket(client, "Token is required")
		return
	}

	userID, jti, err := s.parseToken(token)
	if err != nil {
		s.rejectSocket(client, err.Error())
		return
	}
	if jti != "" && s.redis != nil {
		if revoked, rerr := s.redis.Exists(ctx, "blacklist:"+jti).Result(); rerr == nil && revoked > 0 {
			s.rejectSocket(client, "Token has been revoked")
			return
		}
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.rejectSocket(client, "Unknown user")
		return
	}
	if user.Disabled {
		s.rejectSocket(client, "Account is disabled")
		return
	}

	client.SetUserID(userID)
	if err := s.hub.Register(client); err != nil {
		s.rejectSocket(client, err.Error())
		return
	}

	client.TrySend(notifications.Event{
		Type: notifications.EventAuthenticated,
		Payload: map[string]interface{}{
			"user_id":  userID,
			"username": user.Username,
		},
	}.Encode())
}

func (s *Server) rejectSocket(client *notifications.Client, message string) {
	client.TrySend(notifications.ConnectErrorEvent(message).Encode())
	if client.Conn != nil {
		if err := client.Conn.Close(); err != nil {
			log.Printf("WebSocket: close after failed auth: %v", err)
		}
	}
}

// sendSocketError acknowledges a failed request to the originating client.
func (s *Server) sendSocketError(client *notifications.Client, err error) {
	code := models.CodeInternal
	message := "Internal server error"
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
	}
	client.TrySend(notifications.ErrorEvent(code, message).Encode())
}

// groupPresenceSnapshot builds the online-member list sent to a connection
// when it joins a group room.
func (s *Server) groupPresenceSnapshot(ctx context.Context, groupID uint) notifications.Event {
	onlineIDs := make([]uint, 0)
	if memberIDs, err := s.groupService.ListMemberIDs(ctx, groupID); err == nil {
		for _, id := range memberIDs {
			if s.hub.IsOnline(id) {
				onlineIDs = append(onlineIDs, id)
			}
		}
	}
	return notifications.Event{
		Type:    notifications.EventPresenceUpdate,
		GroupID: groupID,
		Payload: map[string]interface{}{
			"online_user_ids": onlineIDs,
		},
	}
}

func eventGroupID(incoming map[string]interface{}) (uint, bool) {
	return eventUintField(incoming, "group_id")
}

func eventUintField(incoming map[string]interface{}, field string) (uint, bool) {
	f, ok := incoming[field].(float64)
	if !ok || f <= 0 {
		return 0, false
	}
	return uint(f), true
}
