package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dm-service/internal/attachments"
	"dm-service/internal/clients"
	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/repositories"
	"dm-service/internal/telemetry"
)

// MessagePusher fans a persisted message out to live connections.
type MessagePusher interface {
	PushNewMessage(ctx context.Context, msg models.Message)
}

// MessageHandler serves the send and list-conversation endpoints.
type MessageHandler struct {
	repo  repositories.MessageRepository
	store attachments.BlobStore
	users clients.UserDirectory
	hub   MessagePusher
	audit *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler. The audit emitter may be nil.
func NewMessageHandler(repo repositories.MessageRepository, store attachments.BlobStore, users clients.UserDirectory, hub MessagePusher, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{repo: repo, store: store, users: users, hub: hub, audit: audit}
}

// SendMessage validates, persists, and pushes a direct message. The response
// carries the persisted message so the sender's UI can use it as the local
// echo; the recipient gets the same message over the websocket push.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	peerID, err := strconv.Atoi(c.Param("peer_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		return
	}
	userID := c.GetInt("userID")

	var req struct {
		Text          string   `json:"text"`
		AttachmentIDs []string `json:"attachment_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Attachments are staged before the send; each id must resolve against
	// the store or the whole send is rejected.
	refs := make(models.AttachmentList, 0, len(req.AttachmentIDs))
	for _, id := range req.AttachmentIDs {
		ref, err := h.store.Resolve(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, attachments.ErrBlobNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown attachment: " + id})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachment store unavailable"})
			return
		}
		refs = append(refs, ref)
	}

	msg, err := h.repo.Append(c.Request.Context(), userID, peerID, req.Text, refs)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrInvalidMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repositories.ErrStorageUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable, retry"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		}
		return
	}

	// Push failures are not the sender's problem: persistence already
	// succeeded and the recipient resyncs on reconnect.
	h.hub.PushNewMessage(c.Request.Context(), msg)

	sender := strconv.Itoa(userID)
	h.audit.Emit(c.Request.Context(), "info",
		fmt.Sprintf("message %d sent to user %d", msg.ID, peerID),
		observability.RequestIDFromRequest(c.Request), &sender)

	c.JSON(http.StatusCreated, msg)
}

// ListConversation returns all messages between the caller and the peer,
// ascending by (created_at, id), enriched with sender display names.
func (h *MessageHandler) ListConversation(c *gin.Context) {
	peerID, err := strconv.Atoi(c.Param("peer_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		return
	}
	userID := c.GetInt("userID")

	sinceID := 0
	if raw := strings.TrimSpace(c.Query("since_id")); raw != "" {
		sinceID, err = strconv.Atoi(raw)
		if err != nil || sinceID < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since_id"})
			return
		}
	}

	msgs, err := h.repo.ListConversation(c.Request.Context(), userID, peerID, sinceID)
	if err != nil {
		if errors.Is(err, repositories.ErrStorageUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable, retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	senderIDs := make([]int, 0, 2)
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.FromUserID]; !ok {
			seen[m.FromUserID] = struct{}{}
			senderIDs = append(senderIDs, m.FromUserID)
		}
	}

	users, err := h.users.BulkUsers(c.Request.Context(), senderIDs)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load senders"})
		return
	}
	senderNames := map[int]string{}
	for _, u := range users {
		senderNames[u.ID] = u.Username
	}

	type messageResponse struct {
		models.Message
		SenderUsername string `json:"sender_username,omitempty"`
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{Message: m, SenderUsername: senderNames[m.FromUserID]})
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}
