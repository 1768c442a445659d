package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dm-service/internal/clients"
	"dm-service/internal/presence"
)

// PresenceHandler exposes online state and last-seen lookups.
type PresenceHandler struct {
	tracker *presence.Tracker
	users   clients.UserDirectory
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(tracker *presence.Tracker, users clients.UserDirectory) *PresenceHandler {
	return &PresenceHandler{tracker: tracker, users: users}
}

// Get reports whether a user is online and, when offline, when they were
// last seen. The display name is enrichment only; a directory failure never
// blocks the presence answer.
func (h *PresenceHandler) Get(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	online := h.tracker.IsOnline(userID)
	resp := gin.H{"user_id": userID, "online": online}
	if !online {
		if lastSeen := h.tracker.LastSeen(userID); !lastSeen.IsZero() {
			resp["last_seen"] = lastSeen
		}
	}
	if user, err := h.users.GetUser(c.Request.Context(), userID); err == nil && user.Username != "" {
		resp["username"] = user.Username
	}
	c.JSON(http.StatusOK, resp)
}
