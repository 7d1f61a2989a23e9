package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"conversation-service/internal/middleware"
	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
)

// ConversationFeedHandler handles per-conversation websocket connections.
// Clients in the room receive message events as they are recorded.
type ConversationFeedHandler struct {
	hub       *Hub
	groupRepo repositories.GroupRepository
	validator middleware.TokenValidator
}

// NewConversationFeedHandler constructs a ConversationFeedHandler. Direct
// membership is checked against the conversation key itself, so the feed can
// be opened before the first message creates the summary row.
func NewConversationFeedHandler(hub *Hub, groupRepo repositories.GroupRepository, validator middleware.TokenValidator) *ConversationFeedHandler {
	return &ConversationFeedHandler{hub: hub, groupRepo: groupRepo, validator: validator}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client in the
// conversation's room.
func (h *ConversationFeedHandler) Handle(c *gin.Context) {
	ref, err := models.ParseConversationID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	ctx, span := otel.Tracer("conversation-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if err := h.authorize(c.Request.Context(), ref, userID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for conversation"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conversation := ref.String()
	kind := string(ref.Kind)
	traceID := span.SpanContext().TraceID().String()
	info := newConnInfo(c.Request, userID, traceID)
	requestID := info.RequestID
	h.hub.AddClient(conversation, conn, info)

	observability.IncWSActive(kind)
	observability.IncWSEvent(kind, "ws_connect")
	_ = observability.PublishEvent(ctx, wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   wsPayload(kind, conversation, "ws_connect", info, 0, ""),
	}, observability.BuildHeaders(requestID, traceID))

	// Keep connection alive and clean on close
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(conversation, conn)
			observability.DecWSActive(kind)
			observability.IncWSEvent(kind, "ws_disconnect")
			_ = observability.PublishEvent(ctx, wsRoutingKey(kind), observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Payload:   wsPayload(kind, conversation, "ws_disconnect", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
			}, observability.BuildHeaders(requestID, traceID))
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent(kind, "ws_error")
					_ = observability.PublishEvent(ctx, wsRoutingKey(kind), observability.EventEnvelope{
						EventType: "ws_events",
						EventName: "ws_error",
						Payload:   wsPayload(kind, conversation, "ws_error", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
					}, observability.BuildHeaders(requestID, traceID))
				}
				return
			}
		}
	}()
}

func (h *ConversationFeedHandler) authorize(ctx context.Context, ref models.ConversationID, userID string) error {
	switch ref.Kind {
	case models.KindDirect:
		a, b, err := ref.DirectParticipants()
		if err != nil {
			return err
		}
		if userID != a && userID != b {
			return errors.New("not a participant")
		}
		return nil
	case models.KindGroup:
		group, err := h.groupRepo.GetGroup(ctx, ref.Key)
		if err != nil {
			return err
		}
		if !group.IsMember(userID) {
			return errors.New("not a member")
		}
		return nil
	default:
		return models.ErrDecode
	}
}

func (h *ConversationFeedHandler) authenticate(c *gin.Context) (string, error) {
	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}
	parts := strings.Split(token, " ")
	if len(parts) == 2 {
		return h.validator.ValidateToken(c.Request.Context(), parts[1])
	}
	return "", fmt.Errorf("invalid token")
}

func wsPayload(kind, conversation, event string, info ConnInfo, durationMS int64, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":         kind,
			"conversation": conversation,
			"event":        event,
			"conn_id":      info.ConnID,
			"duration_ms":  durationMS,
			"reason":       reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
