package presence

import (
	"sync"
	"time"
)

type entry struct {
	conns    map[string]struct{}
	lastSeen time.Time
}

// Tracker owns the in-memory userId → live-connection mapping. All mutation
// goes through Register/Unregister under one mutex, so the online/offline
// transition detection is atomic: two connections racing to register the
// same user observe exactly one "came online".
type Tracker struct {
	mu       sync.Mutex
	users    map[int]*entry
	lastSeen LastSeenStore
	now      func() time.Time
}

// NewTracker constructs a Tracker backed by the given last-seen store.
func NewTracker(lastSeen LastSeenStore) *Tracker {
	return &Tracker{
		users:    make(map[int]*entry),
		lastSeen: lastSeen,
		now:      time.Now,
	}
}

// Register adds a connection to the user's set and reports whether the user
// just came online.
func (t *Tracker) Register(userID int, connID string) (cameOnline bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.users[userID]
	if !ok {
		e = &entry{conns: make(map[string]struct{})}
		t.users[userID] = e
	}
	wasEmpty := len(e.conns) == 0
	e.conns[connID] = struct{}{}
	return wasEmpty
}

// Unregister removes a connection. When the set becomes empty the user's
// lastSeen is frozen and the offline transition is reported.
func (t *Tracker) Unregister(userID int, connID string) (wentOffline bool, lastSeen time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.users[userID]
	if !ok {
		return false, time.Time{}
	}
	if _, ok := e.conns[connID]; !ok {
		return false, time.Time{}
	}
	delete(e.conns, connID)
	if len(e.conns) > 0 {
		return false, time.Time{}
	}

	delete(t.users, userID)
	now := t.now()
	t.lastSeen.Set(userID, now)
	return true, now
}

// IsOnline reports whether the user has at least one live connection.
func (t *Tracker) IsOnline(userID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.users[userID]
	return ok && len(e.conns) > 0
}

// LastSeen returns the frozen last-seen time for an offline user. The zero
// time means the user was never seen (or is online right now).
func (t *Tracker) LastSeen(userID int) time.Time {
	if t.IsOnline(userID) {
		return time.Time{}
	}
	return t.lastSeen.Get(userID)
}
