package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dm-service/internal/models"
	"dm-service/internal/observability"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// transport is the subset of *websocket.Conn the hub relies on. Tests
// substitute an in-memory implementation.
type transport interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// ConnInfo carries request metadata captured at handshake time.
type ConnInfo struct {
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Conn is one live client connection, owned by the hub for its lifetime.
// UserID never changes after registration. All outbound traffic flows
// through the bounded outbox and the single write loop, so a client
// observes events in exactly the order they were enqueued.
type Conn struct {
	ID     string
	UserID int
	Info   ConnInfo

	transport transport
	out       *outbox
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	activePeer int
}

// ActivePeer returns the peer whose conversation this connection currently
// has open, or zero.
func (c *Conn) ActivePeer() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activePeer
}

func (c *Conn) setActivePeer(peerID int) {
	c.mu.Lock()
	c.activePeer = peerID
	c.mu.Unlock()
}

// Close tears the connection down: both loops stop promptly and queued
// outbound events are discarded. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.out.close()
		_ = c.transport.Close()
	})
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writeLoop is the single writer for this connection. It drains the outbox
// in order and keeps the transport alive with pings.
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.out.notify:
			for _, event := range c.out.drain() {
				_ = c.transport.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.transport.WriteJSON(event); err != nil {
					c.Close()
					return
				}
			}
		case <-ticker.C:
			if err := c.transport.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
		}
	}
}

// outbox is the bounded per-connection outbound queue. When full, queued
// presence events are shed before anything else; a critical event that
// still cannot fit is fatal for the connection.
type outbox struct {
	mu     sync.Mutex
	events []models.PushEvent
	limit  int
	notify chan struct{}
	closed bool
}

func newOutbox(limit int) *outbox {
	return &outbox{limit: limit, notify: make(chan struct{}, 1)}
}

// push enqueues an event. queued reports whether the event is on the queue;
// fatal reports that the queue is saturated with critical events and the
// connection must be closed rather than lose the event silently.
func (o *outbox) push(event models.PushEvent) (queued, fatal bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false, false
	}
	if len(o.events) >= o.limit && !o.shedOldestPresence() {
		if !event.Critical() {
			observability.IncDropped(event.Type)
			return false, false
		}
		return false, true
	}

	o.events = append(o.events, event)
	select {
	case o.notify <- struct{}{}:
	default:
	}
	return true, false
}

// shedOldestPresence removes the oldest queued presence event to make room.
func (o *outbox) shedOldestPresence() bool {
	for i, queued := range o.events {
		if !queued.Critical() {
			observability.IncDropped(queued.Type)
			o.events = append(o.events[:i], o.events[i+1:]...)
			return true
		}
	}
	return false
}

// drain returns all queued events in order and empties the queue.
func (o *outbox) drain() []models.PushEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	events := o.events
	o.events = nil
	return events
}

func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.events = nil
	o.mu.Unlock()
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}
