package ws

import (
	"context"
	"log"
	"time"

	"dm-service/internal/models"
)

// RunSession is the inbound read loop for one connection. It blocks until
// the transport fails, the client disconnects, or the idle deadline passes,
// and returns the terminating error.
//
// A connection has zero or one open conversation at a time; the
// open_conversation frame is the only path that advances read receipts.
func (h *Hub) RunSession(ctx context.Context, c *Conn) error {
	_ = c.transport.SetReadDeadline(time.Now().Add(pongWait))
	c.transport.SetPongHandler(func(string) error {
		return c.transport.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame models.ClientFrame
		if err := c.transport.ReadJSON(&frame); err != nil {
			return err
		}
		_ = c.transport.SetReadDeadline(time.Now().Add(pongWait))

		switch frame.Type {
		case models.FrameOpenConversation:
			h.openConversation(ctx, c, frame.PeerID)
		default:
			log.Printf("ws: unknown frame type %q user=%d", frame.Type, c.UserID)
		}
	}
}

// openConversation records the active peer, bulk-stamps the peer's messages
// as read, and pushes one read receipt to the peer's live connections.
func (h *Hub) openConversation(ctx context.Context, c *Conn, peerID int) {
	if peerID <= 0 || peerID == c.UserID {
		log.Printf("ws: ignoring open_conversation with peer=%d user=%d", peerID, c.UserID)
		return
	}
	c.setActivePeer(peerID)

	now := time.Now().UTC()
	if err := h.repo.MarkReadBulk(ctx, peerID, c.UserID, now); err != nil {
		// No receipt until the stamp is persisted.
		log.Printf("ws: mark read failed from=%d to=%d: %v", peerID, c.UserID, err)
		return
	}

	h.PushToUser(peerID, models.PushEvent{
		Type:    models.EventReadReceipt,
		Receipt: &models.ReadReceipt{With: c.UserID, From: peerID, ReadAt: now},
	})
}
