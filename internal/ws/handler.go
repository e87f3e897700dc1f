package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-core/internal/auth"
	"chat-core/internal/observability"
)

// TokenValidator checks bearer credentials on the transport handshake.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Handler upgrades authenticated HTTP requests into gateway sessions.
type Handler struct {
	gateway   *Gateway
	validator TokenValidator
	upgrader  websocket.Upgrader
}

// NewHandler constructs a Handler. An empty allowedOrigin accepts every
// origin.
func NewHandler(gateway *Gateway, validator TokenValidator, allowedOrigin string) *Handler {
	return &Handler{
		gateway:   gateway,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// Handle authenticates and upgrades the connection, then runs the read loop
// until the peer goes away. A connection without a valid, unexpired token is
// rejected before the upgrade.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-core/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	// The request context dies when this handler returns, which happens
	// right after the upgrade. Session work runs on a context that keeps
	// the request's trace and baggage values but not its cancellation.
	sessionCtx := context.WithoutCancel(ctx)

	session := NewSession(claims.UserID, claims.Username, claims.AvatarURL, conn)
	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	meta := observability.ConnMeta{
		ConnID:    session.ID,
		UserID:    session.UserID,
		DeviceID:  observability.DeviceIDFromRequest(c.Request),
		IP:        observability.IPFromRequest(c.Request),
		RequestID: requestID,
		TraceID:   traceID,
	}

	h.gateway.Connect(sessionCtx, session)
	observability.IncWSActive()
	observability.PublishSessionEvent(sessionCtx, "ws_connect", meta, 0, "")

	go session.writePump()

	go func() {
		var closeReason string
		defer func() {
			h.gateway.Disconnect(sessionCtx, session)
			observability.DecWSActive()
			observability.PublishSessionEvent(sessionCtx, "ws_disconnect", meta, time.Since(session.ConnectedAt), closeReason)
		}()

		conn.SetReadLimit(maxFrameSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.PublishSessionEvent(sessionCtx, "ws_error", meta, time.Since(session.ConnectedAt), closeReason)
				}
				return
			}
			h.gateway.HandleEvent(sessionCtx, session, raw)
		}
	}()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
