package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"conversation-service/internal/engine"
	"conversation-service/internal/middleware"
	"conversation-service/internal/models"
	"conversation-service/internal/observability"
	"conversation-service/internal/repositories"
	"conversation-service/internal/stream"
)

// ListFeedHandler serves the live merged conversation list. Each connection
// gets its own pair of stream subscriptions and its own merger; every
// committed change pushes a full list snapshot to the client.
type ListFeedHandler struct {
	chatRepo  repositories.ChatRepository
	groupRepo repositories.GroupRepository
	userRepo  repositories.UserRepository
	notifier  stream.Notifier
	validator middleware.TokenValidator
}

// NewListFeedHandler constructs a ListFeedHandler.
func NewListFeedHandler(chatRepo repositories.ChatRepository, groupRepo repositories.GroupRepository, userRepo repositories.UserRepository, notifier stream.Notifier, validator middleware.TokenValidator) *ListFeedHandler {
	return &ListFeedHandler{chatRepo: chatRepo, groupRepo: groupRepo, userRepo: userRepo, notifier: notifier, validator: validator}
}

// Handle upgrades the connection, subscribes to both conversation streams
// for the authenticated user and pushes list snapshots until the client
// disconnects.
func (h *ListFeedHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("conversation-service/ws").Start(c.Request.Context(), "ws.list_handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	auth := &ConversationFeedHandler{validator: h.validator}
	userID, err := auth.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	filter := models.ListFilter(c.DefaultQuery("filter", string(models.FilterAll)))
	query := c.Query("q")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	observability.IncWSActive("list")
	observability.IncWSEvent("list", "ws_connect")
	connectedAt := time.Now()

	var writeMu sync.Mutex
	merger := engine.NewMerger(h.userRepo, userID)
	merger.SetOnChange(func() {
		event := models.ListEvent{Type: "conversations", Items: merger.List(filter, query)}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(event); err != nil {
			log.Debug().Err(err).Str("user", userID).Msg("list feed write failed")
			conn.Close()
		}
	})

	// The request context ends with the handshake; the subscriptions live
	// until the client disconnects.
	feedCtx := context.Background()
	directFeed, cancelDirect := stream.NewSubscriber(h.notifier, stream.TopicChats, func(ctx context.Context) ([]models.DirectSnapshot, error) {
		return h.chatRepo.ListForUser(ctx, userID)
	}).Subscribe(feedCtx)
	groupFeed, cancelGroup := stream.NewSubscriber(h.notifier, stream.TopicGroups, func(ctx context.Context) ([]models.GroupSnapshot, error) {
		return h.groupRepo.ListForUser(ctx, userID)
	}).Subscribe(feedCtx)

	go func() {
		for e := range directFeed {
			merger.ApplyDirect(feedCtx, e)
		}
	}()
	go func() {
		for e := range groupFeed {
			merger.ApplyGroup(feedCtx, e)
		}
	}()

	// Block on reads until the client goes away, then release everything.
	go func() {
		defer func() {
			cancelDirect()
			cancelGroup()
			observability.DecWSActive("list")
			observability.IncWSEvent("list", "ws_disconnect")
			log.Debug().Str("user", userID).Dur("connected", time.Since(connectedAt)).Msg("list feed closed")
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("list", "ws_error")
				}
				return
			}
		}
	}()
}
