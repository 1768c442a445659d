package models

import "time"

// Push event type tags.
const (
	EventNewMessage  = "new_message"
	EventPresence    = "presence"
	EventReadReceipt = "read_receipt"
)

// PresenceChange announces an online/offline transition for a user.
type PresenceChange struct {
	UserID   int        `json:"user_id"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// ReadReceipt tells the sender that the peer has opened the conversation.
// With identifies the reader, From the user whose messages were stamped.
type ReadReceipt struct {
	With   int       `json:"with"`
	From   int       `json:"from"`
	ReadAt time.Time `json:"read_at"`
}

// PushEvent is the closed set of variants sent over a websocket connection.
// Exactly one payload field is set, selected by Type.
type PushEvent struct {
	Type     string          `json:"type"`
	Message  *Message        `json:"message,omitempty"`
	Presence *PresenceChange `json:"presence,omitempty"`
	Receipt  *ReadReceipt    `json:"receipt,omitempty"`
}

// Critical reports whether the event must never be silently dropped under
// backpressure. Presence changes may be shed; messages and receipts may not.
func (e PushEvent) Critical() bool {
	return e.Type != EventPresence
}

// ClientFrame is an inbound frame read from a websocket connection.
type ClientFrame struct {
	Type   string `json:"type"`
	PeerID int    `json:"peer_id,omitempty"`
}

// Inbound frame type tags.
const (
	FrameOpenConversation = "open_conversation"
)
