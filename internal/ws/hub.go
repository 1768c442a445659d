package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/presence"
	"dm-service/internal/repositories"
)

// Hub owns the authoritative userId → live-connections table and all fan-out
// to clients. Pushes to a single connection are serialized through that
// connection's outbox, so per-connection ordering matches enqueue order.
type Hub struct {
	mu    sync.RWMutex
	conns map[int]map[*Conn]struct{}

	tracker *presence.Tracker
	repo    repositories.MessageRepository
	sendBuf int
}

// NewHub creates an empty hub.
func NewHub(tracker *presence.Tracker, repo repositories.MessageRepository, sendBuf int) *Hub {
	if sendBuf <= 0 {
		sendBuf = 64
	}
	return &Hub{
		conns:   make(map[int]map[*Conn]struct{}),
		tracker: tracker,
		repo:    repo,
		sendBuf: sendBuf,
	}
}

// NewConn wraps a transport into a hub-owned connection.
func (h *Hub) NewConn(userID int, t transport, info ConnInfo) *Conn {
	return &Conn{
		ID:        uuid.NewString(),
		UserID:    userID,
		Info:      info,
		transport: t,
		out:       newOutbox(h.sendBuf),
		done:      make(chan struct{}),
	}
}

// Register adds the connection to the table and the presence tracker and
// reports whether its user just came online.
func (h *Hub) Register(c *Conn) (cameOnline bool) {
	h.mu.Lock()
	if _, ok := h.conns[c.UserID]; !ok {
		h.conns[c.UserID] = make(map[*Conn]struct{})
	}
	h.conns[c.UserID][c] = struct{}{}
	h.mu.Unlock()

	return h.tracker.Register(c.UserID, c.ID)
}

// Unregister removes the connection and reports whether its user went
// offline, with the frozen last-seen time.
func (h *Hub) Unregister(c *Conn) (wentOffline bool, lastSeen time.Time) {
	h.mu.Lock()
	if conns, ok := h.conns[c.UserID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.conns, c.UserID)
		}
	}
	h.mu.Unlock()

	return h.tracker.Unregister(c.UserID, c.ID)
}

// PushToUser enqueues the event onto every live connection of the user and
// reports whether at least one connection accepted it. Users with no live
// connections simply miss the event; persisted state is re-fetched on
// reconnect.
func (h *Hub) PushToUser(userID int, event models.PushEvent) bool {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns[userID]))
	for c := range h.conns[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := false
	for _, c := range targets {
		queued, fatal := c.out.push(event)
		if queued {
			delivered = true
			observability.IncPushed(event.Type)
		}
		if fatal {
			// Saturated queue: force a reconnect and resync instead of
			// dropping the event.
			log.Printf("ws: outbox full, closing connection %s user=%d", c.ID, c.UserID)
			c.Close()
		}
	}
	return delivered
}

// PushNewMessage fans a freshly persisted message out: an echo to the
// sender's other connections and the push to the recipient. The first time
// any recipient connection takes the push, the message is stamped delivered.
func (h *Hub) PushNewMessage(ctx context.Context, msg models.Message) {
	event := models.PushEvent{Type: models.EventNewMessage, Message: &msg}

	h.PushToUser(msg.FromUserID, event)

	if !h.PushToUser(msg.ToUserID, event) {
		return
	}
	if err := h.repo.MarkDelivered(ctx, msg.ID); err != nil {
		log.Printf("ws: mark delivered failed message=%d: %v", msg.ID, err)
		return
	}
	observability.IncMessagesDelivered()
}

// BroadcastPresence notifies connections that currently have the user's
// conversation open about an online/offline transition.
func (h *Hub) BroadcastPresence(change models.PresenceChange) {
	h.mu.RLock()
	var targets []*Conn
	for userID, conns := range h.conns {
		if userID == change.UserID {
			continue
		}
		for c := range conns {
			if c.ActivePeer() == change.UserID {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()

	event := models.PushEvent{Type: models.EventPresence, Presence: &change}
	for _, c := range targets {
		if queued, _ := c.out.push(event); queued {
			observability.IncPushed(event.Type)
		}
	}
}

// ConnCount reports the number of live connections for a user.
func (h *Hub) ConnCount(userID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}
