package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"conversation-service/internal/models"
	"conversation-service/internal/observability"
)

// Hub maintains active websocket rooms, one room per conversation keyed by
// the conversation id string.
type Hub struct {
	rooms    map[string]map[*websocket.Conn]bool
	connInfo map[string]map[*websocket.Conn]ConnInfo
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*websocket.Conn]bool),
		connInfo: make(map[string]map[*websocket.Conn]ConnInfo),
	}
}

// AddClient registers a websocket connection to a conversation room.
func (h *Hub) AddClient(conversation string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversation]; !ok {
		h.rooms[conversation] = make(map[*websocket.Conn]bool)
	}
	h.rooms[conversation][conn] = true
	if _, ok := h.connInfo[conversation]; !ok {
		h.connInfo[conversation] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[conversation][conn] = info
}

// RemoveClient removes a websocket connection from a conversation room.
func (h *Hub) RemoveClient(conversation string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[conversation]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, conversation)
		}
	}
	if infos, ok := h.connInfo[conversation]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, conversation)
		}
	}
}

// BroadcastEvent sends the event to every client in the conversation room.
func (h *Hub) BroadcastEvent(conversation string, event models.ConversationEvent) {
	// Snapshot the room so Add/RemoveClient can mutate it while we write.
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[conversation]))
	for conn := range h.rooms[conversation] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Warn().Err(err).Str("conversation", conversation).Msg("websocket write failed, dropping client")
			conn.Close()
			h.publishWSError(conversation, conn, err)
			h.RemoveClient(conversation, conn)
		}
	}
}

func (h *Hub) publishWSError(conversation string, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(conversation, conn)
	if !ok {
		return
	}

	kind := kindOf(conversation)
	payload := wsPayload(kind, conversation, "ws_error", info, time.Since(info.ConnectedAt).Milliseconds(), err.Error())
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(kind, "ws_error")
}

func (h *Hub) getConnInfo(conversation string, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.connInfo[conversation]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}

func kindOf(conversation string) string {
	id, err := models.ParseConversationID(conversation)
	if err != nil {
		return "unknown"
	}
	return string(id.Kind)
}

func wsRoutingKey(kind string) string {
	if kind == string(models.KindGroup) {
		return "ws_events.groups"
	}
	return "ws_events.chats"
}
