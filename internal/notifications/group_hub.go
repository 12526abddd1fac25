package notifications

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"

	"huddle/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
	// Per-group event queue depth
	roomQueueSize = 1024
)

// GroupHub manages websocket connections and group subscriptions. Each group
// gets a room with a single dispatcher goroutine draining a FIFO queue, so
// all members observe that group's events in the same order.
//
// Room membership is per connection: a device only receives a group's events
// after it sends join_group, independent of the user's other devices. The
// per-user index exists for presence and direct-to-user delivery.
type GroupHub struct {
	mu           sync.RWMutex
	userConns    map[uint]map[*Client]struct{}
	totalConns   int
	rooms        map[uint]*room
	clientGroups map[*Client]map[uint]struct{}
	presence     *PresenceTracker
	closed       bool
}

// room serializes fan-out for one group. Events enter through queue and a
// single goroutine delivers them, which is what makes per-group ordering
// hold across concurrent senders.
type room struct {
	groupID uint
	queue   chan []byte
	done    chan struct{}
	members map[*Client]struct{}
}

// Name returns a human-readable identifier for this hub.
func (h *GroupHub) Name() string { return "group hub" }

// NewGroupHub creates a hub. The presence tracker may be nil, in which case
// online state is derived from local connections only.
func NewGroupHub(presence *PresenceTracker) *GroupHub {
	return &GroupHub{
		userConns:    make(map[uint]map[*Client]struct{}),
		rooms:        make(map[uint]*room),
		clientGroups: make(map[*Client]map[uint]struct{}),
		presence:     presence,
	}
}

// SetPresenceCallbacks forwards online/offline transition callbacks to the
// presence tracker.
func (h *GroupHub) SetPresenceCallbacks(onOnline, onOffline func(userID uint)) {
	if h.presence == nil {
		return
	}
	h.presence.SetCallbacks(onOnline, onOffline)
}

// NewConn wraps a raw websocket connection in an unauthenticated Client.
// The client is not registered until Register is called after the
// authenticate handshake.
func (h *GroupHub) NewConn(conn *websocket.Conn) *Client {
	client := NewClient(h, conn)
	client.OnActivity = func(uid uint) {
		if h.presence != nil {
			h.presence.Touch(context.Background(), uid)
		}
	}
	return client
}

// Register records an authenticated client. Returns an error when connection
// limits are exceeded.
func (h *GroupHub) Register(client *Client) error {
	userID := client.UserID()
	if userID == 0 {
		return errors.New("client is not authenticated")
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return errors.New("hub is shut down")
	}
	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return errors.New("server connection limit reached")
	}

	m, ok := h.userConns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.userConns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return errors.New("user connection limit reached")
	}

	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()

	if h.presence != nil {
		h.presence.Register(context.Background(), userID)
	}
	return nil
}

// UnregisterClient removes a client and detaches it from every room it
// joined. Other devices of the same user keep their own subscriptions.
// Safe to call for clients that never authenticated.
func (h *GroupHub) UnregisterClient(client *Client) {
	userID := client.UserID()
	if userID == 0 {
		return
	}

	h.mu.Lock()
	removed := false
	if m, ok := h.userConns[userID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.userConns, userID)
		}
	}
	for groupID := range h.clientGroups[client] {
		h.removeFromRoomLocked(groupID, client)
	}
	delete(h.clientGroups, client)
	h.mu.Unlock()

	if removed {
		observability.WebSocketConnectionsTotal.Dec()
		if h.presence != nil {
			h.presence.Unregister(context.Background(), userID)
		}
	}
}

// Subscribe adds one connection to a group room, creating the room and its
// dispatcher on first use. The caller has already verified membership.
func (h *GroupHub) Subscribe(client *Client, groupID uint) {
	userID := client.UserID()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	if _, registered := h.userConns[userID][client]; !registered {
		log.Printf("GroupHub: user %d connection not registered, cannot subscribe to group %d", userID, groupID)
		return
	}

	r, ok := h.rooms[groupID]
	if !ok {
		r = &room{
			groupID: groupID,
			queue:   make(chan []byte, roomQueueSize),
			done:    make(chan struct{}),
			members: make(map[*Client]struct{}),
		}
		h.rooms[groupID] = r
		go h.runRoom(r)
	}
	if _, already := r.members[client]; already {
		return
	}
	r.members[client] = struct{}{}

	if h.clientGroups[client] == nil {
		h.clientGroups[client] = make(map[uint]struct{})
	}
	h.clientGroups[client][groupID] = struct{}{}

	observability.WebSocketRoomConnections.WithLabelValues(strconv.FormatUint(uint64(groupID), 10)).Inc()
}

// Unsubscribe removes one connection from a group room.
func (h *GroupHub) Unsubscribe(client *Client, groupID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	groups, ok := h.clientGroups[client]
	if !ok {
		return
	}
	if _, subscribed := groups[groupID]; !subscribed {
		return
	}
	delete(groups, groupID)
	if len(groups) == 0 {
		delete(h.clientGroups, client)
	}
	h.removeFromRoomLocked(groupID, client)
}

// UnsubscribeUser detaches every connection of a user from a group room.
// Used when group membership itself is revoked, such as leaving over HTTP.
func (h *GroupHub) UnsubscribeUser(userID, groupID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.userConns[userID] {
		groups, ok := h.clientGroups[client]
		if !ok {
			continue
		}
		if _, subscribed := groups[groupID]; !subscribed {
			continue
		}
		delete(groups, groupID)
		if len(groups) == 0 {
			delete(h.clientGroups, client)
		}
		h.removeFromRoomLocked(groupID, client)
	}
}

// removeFromRoomLocked requires h.mu held.
func (h *GroupHub) removeFromRoomLocked(groupID uint, client *Client) {
	r, ok := h.rooms[groupID]
	if !ok {
		return
	}
	if _, exists := r.members[client]; !exists {
		return
	}
	delete(r.members, client)
	observability.WebSocketRoomConnections.WithLabelValues(strconv.FormatUint(uint64(groupID), 10)).Dec()
	if len(r.members) == 0 {
		close(r.done)
		delete(h.rooms, groupID)
	}
}

// Broadcast enqueues an event onto the group's FIFO queue. Events for groups
// with no local subscribers are dropped.
func (h *GroupHub) Broadcast(groupID uint, ev Event) {
	data := ev.Encode()
	if data == nil {
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(ev.Type).Inc()

	h.mu.RLock()
	r, ok := h.rooms[groupID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case r.queue <- data:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(h.Name(), "room_queue_full").Inc()
		log.Printf("GroupHub: room %d queue full, dropped %s event", groupID, ev.Type)
	}
}

// BroadcastRaw enqueues an already-encoded event onto the group's FIFO
// queue. Used by the Redis subscriber, where payloads arrive pre-encoded.
func (h *GroupHub) BroadcastRaw(groupID uint, data []byte) {
	if len(data) == 0 {
		return
	}
	h.mu.RLock()
	r, ok := h.rooms[groupID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case r.queue <- data:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(h.Name(), "room_queue_full").Inc()
		log.Printf("GroupHub: room %d queue full, dropped relayed event", groupID)
	}
}

// StartWiring connects the hub to the Redis backplane: events published on
// group and user channels by any instance are delivered to local rooms.
func (h *GroupHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartSubscriber(ctx,
		func(groupID uint, payload []byte) {
			h.BroadcastRaw(groupID, payload)
		},
		func(userID uint, payload []byte) {
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.userConns[userID]))
			for c := range h.userConns[userID] {
				clients = append(clients, c)
			}
			h.mu.RUnlock()
			for _, c := range clients {
				c.TrySend(payload)
			}
		},
	)
}

// BroadcastToUser delivers an event to every connection of one user.
func (h *GroupHub) BroadcastToUser(userID uint, ev Event) {
	data := ev.Encode()
	if data == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.userConns[userID] {
		c.TrySend(data)
	}
}

// runRoom is the single dispatcher for one group.
func (h *GroupHub) runRoom(r *room) {
	for {
		select {
		case <-r.done:
			return
		case data := <-r.queue:
			h.deliver(r, data)
		}
	}
}

func (h *GroupHub) deliver(r *room, data []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(r.members))
	for c := range r.members {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.TrySend(data)
	}
}

// ActiveUsers returns the distinct user IDs with at least one connection
// subscribed to a group room.
func (h *GroupHub) ActiveUsers(groupID uint) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[groupID]
	if !ok {
		return []uint{}
	}
	seen := make(map[uint]struct{}, len(r.members))
	out := make([]uint, 0, len(r.members))
	for c := range r.members {
		uid := c.UserID()
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	return out
}

// SubscribedGroups returns the group IDs one connection is watching.
func (h *GroupHub) SubscribedGroups(client *Client) []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]uint, 0, len(h.clientGroups[client]))
	for groupID := range h.clientGroups[client] {
		out = append(out, groupID)
	}
	return out
}

// IsOnline reports whether a user is online, preferring the presence tracker
// so answers stay correct across instances.
func (h *GroupHub) IsOnline(userID uint) bool {
	if h.presence != nil {
		return h.presence.IsOnline(context.Background(), userID)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients, ok := h.userConns[userID]
	return ok && len(clients) > 0
}

// Shutdown closes every websocket connection and stops all room dispatchers.
func (h *GroupHub) Shutdown(_ context.Context) error {
	if h.presence != nil {
		h.presence.Stop()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true

	for userID, clients := range h.userConns {
		for client := range clients {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for user %d: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %d: %v", userID, err)
			}
		}
	}
	h.userConns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0

	for groupID, r := range h.rooms {
		close(r.done)
		delete(h.rooms, groupID)
	}
	h.clientGroups = make(map[*Client]map[uint]struct{})

	return nil
}
