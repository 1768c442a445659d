package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"dm-service/internal/clients"
	"dm-service/internal/models"
	"dm-service/internal/observability"
)

// WebSocketHandler upgrades authenticated clients to persistent connections.
type WebSocketHandler struct {
	hub  *Hub
	auth clients.TokenValidator
}

// NewWebSocketHandler constructs a WebSocketHandler.
func NewWebSocketHandler(hub *Hub, auth clients.TokenValidator) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, auth: auth}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, upgrades, and registers the connection. Anonymous
// connection attempts are rejected before registration.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("dm-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	userID, err := h.auth.ValidateToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	conn := h.hub.NewConn(userID, wsConn, info)
	cameOnline := h.hub.Register(conn)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.dm", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   connEventPayload(conn, "ws_connect", ""),
	}, observability.BuildHeaders(requestID, traceID))

	if cameOnline {
		h.hub.BroadcastPresence(models.PresenceChange{UserID: userID, Online: true})
	}

	// net/http cancels the request context as soon as Handle returns, even
	// for a hijacked connection. The session runs on its own context
	// carrying the handshake trace.
	sessionCtx := trace.ContextWithSpanContext(context.Background(), span.SpanContext())

	go conn.writeLoop()
	go func() {
		err := h.hub.RunSession(sessionCtx, conn)
		conn.Close()

		wentOffline, lastSeen := h.hub.Unregister(conn)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")

		closeReason := ""
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
		}
		_ = observability.PublishEvent(sessionCtx, "ws_events.dm", observability.EventEnvelope{
			EventType: "ws_events",
			EventName: "ws_disconnect",
			Payload:   connEventPayload(conn, "ws_disconnect", closeReason),
		}, observability.BuildHeaders(requestID, traceID))

		if wentOffline {
			h.hub.BroadcastPresence(models.PresenceChange{UserID: userID, Online: false, LastSeen: &lastSeen})
		}
	}()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		const prefix = "Bearer "
		if len(header) > len(prefix) && header[:len(prefix)] == prefix {
			return header[len(prefix):]
		}
		return ""
	}
	return c.Query("token")
}

func connEventPayload(conn *Conn, event, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     conn.ID,
			"duration_ms": time.Since(conn.Info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   conn.UserID,
			"device_id": conn.Info.DeviceID,
			"ip":        conn.Info.IP,
		},
	}
}
