package server

import (
	"context"
	"fmt"
	"log"

	"huddle/internal/models"
	"huddle/internal/notifications"
	"huddle/internal/push"
)

// fanOutGroup delivers an event to all of a group's subscribers. With Redis
// configured the event goes through the backplane so every instance sees it;
// otherwise delivery is local to this instance's hub.
func (s *Server) fanOutGroup(ctx context.Context, groupID uint, ev notifications.Event) {
	if s.notifier != nil && s.notifier.Enabled() {
		data := ev.Encode()
		if data == nil {
			return
		}
		if err := s.notifier.PublishGroup(ctx, groupID, data); err != nil {
			log.Printf("publish to group %d failed, falling back to local delivery: %v", groupID, err)
			s.hub.BroadcastRaw(groupID, data)
		}
		return
	}
	s.hub.Broadcast(groupID, ev)
}

// onUserOnline announces the online transition to every group the user
// belongs to. Invoked by the presence tracker on the 0-to-1 connection edge.
func (s *Server) onUserOnline(userID uint) {
	s.broadcastPresence(userID, "online")
}

// onUserOffline announces the offline transition after the grace window.
func (s *Server) onUserOffline(userID uint) {
	s.broadcastPresence(userID, "offline")
}

func (s *Server) broadcastPresence(userID uint, status string) {
	ctx := context.Background()
	groupIDs, err := s.groupRepo.ListGroupIDsOf(ctx, userID)
	if err != nil {
		log.Printf("presence broadcast: list groups for user %d: %v", userID, err)
		return
	}
	for _, groupID := range groupIDs {
		s.fanOutGroup(ctx, groupID, notifications.PresenceUpdateEvent(groupID, userID, status))
	}
}

// backgroundCtx returns the context that outlives individual requests. Push
// delivery uses it so a finished request does not cancel in-flight sends.
func (s *Server) backgroundCtx() context.Context {
	if s.shutdownCtx != nil {
		return s.shutdownCtx
	}
	return context.Background()
}

// notifyGroupMembers sends a push notification about a new message to every
// group member except the sender. Best effort: failures are logged only.
func (s *Server) notifyGroupMembers(ctx context.Context, group *models.Group, msg *models.Message, senderName string) {
	if s.pushSink == nil {
		return
	}

	memberIDs, err := s.groupRepo.ListMemberIDs(ctx, group.ID)
	if err != nil {
		log.Printf("push notify: list members of group %d: %v", group.ID, err)
		return
	}
	targets := make([]uint, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != msg.SenderID {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return
	}

	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("id IN ? AND push_token <> ''", targets).
		Find(&users).Error; err != nil {
		log.Printf("push notify: load tokens for group %d: %v", group.ID, err)
		return
	}

	body := msg.Content
	if msg.FileURL != nil && body == "" {
		body = "sent an image"
	}

	for _, u := range users {
		n := push.Notification{
			Token: u.PushToken,
			Title: fmt.Sprintf("%s in %s", senderName, group.Name),
			Body:  body,
			Data: map[string]string{
				"group_id":   fmt.Sprintf("%d", group.ID),
				"message_id": fmt.Sprintf("%d", msg.ID),
			},
		}
		if err := s.pushSink.Send(ctx, n); err != nil {
			log.Printf("push notify: send to user %d: %v", u.ID, err)
		}
	}
}
