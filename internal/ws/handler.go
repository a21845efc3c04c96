package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"club-chat-service/internal/auth"
	"club-chat-service/internal/config"
	"club-chat-service/internal/observability"
	"club-chat-service/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscribeFrame is the control message clients send after connecting to
// attach to or detach from a room's channel.
type subscribeFrame struct {
	Action string `json:"action"`
	RoomID int64  `json:"room_id"`
}

// Handler upgrades websocket connections and runs their pumps.
type Handler struct {
	hub      *Hub
	verifier auth.TokenVerifier
	cfg      config.WSConfig
	audit    *telemetry.AuditEmitter
	log      zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, verifier auth.TokenVerifier, cfg config.WSConfig, audit *telemetry.AuditEmitter, log zerolog.Logger) *Handler {
	return &Handler{hub: hub, verifier: verifier, cfg: cfg, audit: audit, log: log}
}

// Handle upgrades the connection and registers the client. A missing or
// invalid credential degrades the connection to anonymous instead of
// rejecting it; anonymous sockets can still subscribe and receive
// broadcasts. Kept deliberately, logged and counted so the exposure is
// visible.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("club-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := h.identify(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	client := NewClient(h.hub, conn, info, h.cfg.SendBuffer)
	h.hub.Register(client)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	if info.Anonymous() {
		observability.IncWSAnonymous()
		h.log.Warn().Str("conn_id", info.ConnID).Str("ip", info.IP).Msg("anonymous websocket attach")
	}
	h.emitAudit(info, "ws_connect")

	go h.writePump(client)
	go h.readPump(client)
}

// identify resolves the handshake credential. Returns 0 (anonymous) when
// the credential is missing or unverifiable.
func (h *Handler) identify(c *gin.Context) int64 {
	token := c.GetHeader("Authorization")
	if token == "" {
		if q := c.Query("token"); q != "" {
			token = "Bearer " + q
		}
	}

	parts := strings.SplitN(token, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return 0
	}

	userID, err := h.verifier.Verify(parts[1])
	if err != nil {
		h.log.Warn().Err(err).Msg("handshake credential rejected, degrading to anonymous")
		return 0
	}
	return userID
}

// readPump consumes subscribe/unsubscribe frames and keeps the
// connection's read deadline fresh from pongs. It owns connection
// teardown.
func (h *Handler) readPump(client *Client) {
	info := client.Info()
	defer func() {
		client.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		if info.Anonymous() {
			observability.DecWSAnonymous()
		}
		h.emitAudit(info, "ws_disconnect")
	}()

	client.conn.SetReadLimit(512 * 1024)
	_ = client.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}

		var frame subscribeFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			h.log.Debug().Str("conn_id", info.ConnID).Msg("ignoring malformed frame")
			continue
		}

		switch frame.Action {
		case "subscribe":
			if frame.RoomID > 0 {
				h.hub.Subscribe(client, frame.RoomID)
			}
		case "unsubscribe":
			if frame.RoomID > 0 {
				h.hub.Unsubscribe(client, frame.RoomID)
			}
		}
	}
}

// writePump drains the outbound queue and pings on an interval. A write
// failure closes the connection; the read pump then finishes teardown.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case <-client.done:
			return
		case payload := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.log.Debug().Err(err).Str("conn_id", client.info.ConnID).Msg("websocket write error")
				observability.IncWSEvent("ws_error")
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// emitAudit runs on a fresh context: the request context is gone once the
// handshake handler returns, and the connection outlives it.
func (h *Handler) emitAudit(info ConnInfo, event string) {
	if h.audit == nil {
		return
	}
	var userID *int64
	if !info.Anonymous() {
		id := info.UserID
		userID = &id
	}
	h.audit.Emit(context.Background(), "INFO", event, info.RequestID, userID)
}
