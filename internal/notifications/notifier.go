package notifications

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes realtime events to Redis channels so every instance
// fans them out to its local connections. With no Redis client configured
// every method is a no-op and callers fall back to local-only delivery.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether a Redis backplane is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishGroup sends an encoded event to a group's channel.
func (n *Notifier) PublishGroup(ctx context.Context, groupID uint, payload []byte) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, GroupChannel(groupID), payload).Err()
}

// PublishUser sends an encoded event to a single user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload []byte) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// StartSubscriber subscribes to group and user channels and invokes the
// callbacks for each incoming message. Callback panics are recovered so one
// bad payload cannot kill the subscriber goroutine.
func (n *Notifier) StartSubscriber(
	ctx context.Context,
	onGroup func(groupID uint, payload []byte),
	onUser func(userID uint, payload []byte),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "chat:group:*", "notifications:user:*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in notifier subscriber: %v\n%s", r, debug.Stack())
						}
					}()
					n.dispatch(msg.Channel, []byte(msg.Payload), onGroup, onUser)
				}()
			}
		}
	}()

	return nil
}

func (n *Notifier) dispatch(
	channel string, payload []byte,
	onGroup func(groupID uint, payload []byte),
	onUser func(userID uint, payload []byte),
) {
	var id uint
	if _, err := fmt.Sscanf(channel, "chat:group:%d", &id); err == nil {
		if onGroup != nil {
			onGroup(id, payload)
		}
		return
	}
	if _, err := fmt.Sscanf(channel, "notifications:user:%d", &id); err == nil {
		if onUser != nil {
			onUser(id, payload)
		}
		return
	}
	log.Printf("notifier: unrecognized channel %q", channel)
}

// GroupChannel derives the Redis channel name for a group.
func GroupChannel(groupID uint) string {
	return "chat:group:" + strconv.FormatUint(uint64(groupID), 10)
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}
