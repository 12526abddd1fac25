// Package push delivers push notifications to registered device tokens.
package push

import (
	"context"
	"log/slog"
)

// Notification is a single push payload for one device token.
type Notification struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers notifications to devices. Delivery is best effort; failures
// are logged, never surfaced to the message path.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender logs notifications instead of delivering them. Used in
// development and as the default when no provider is configured.
type LogSender struct {
	Logger *slog.Logger
}

// Send logs the notification at debug level.
func (s *LogSender) Send(ctx context.Context, n Notification) error {
	if s.Logger != nil {
		s.Logger.DebugContext(ctx, "push notification",
			slog.String("token", n.Token),
			slog.String("title", n.Title),
			slog.String("body", n.Body),
		)
	}
	return nil
}
