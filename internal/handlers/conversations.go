package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/engine"
	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
	"conversation-service/internal/telemetry"
	"conversation-service/internal/ws"
)

// ConversationHandler serves the merged conversation list and the
// per-conversation operations.
type ConversationHandler struct {
	chatRepo     repositories.ChatRepository
	groupRepo    repositories.GroupRepository
	messageRepo  repositories.MessageRepository
	groupMsgRepo repositories.GroupMessageRepository
	userRepo     repositories.UserRepository
	sender       *engine.Sender
	actions      *engine.Actions
	hub          *ws.Hub
	audit        *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(
	chatRepo repositories.ChatRepository,
	groupRepo repositories.GroupRepository,
	messageRepo repositories.MessageRepository,
	groupMsgRepo repositories.GroupMessageRepository,
	userRepo repositories.UserRepository,
	sender *engine.Sender,
	actions *engine.Actions,
	hub *ws.Hub,
	audit *telemetry.AuditEmitter,
) *ConversationHandler {
	return &ConversationHandler{
		chatRepo:     chatRepo,
		groupRepo:    groupRepo,
		messageRepo:  messageRepo,
		groupMsgRepo: groupMsgRepo,
		userRepo:     userRepo,
		sender:       sender,
		actions:      actions,
		hub:          hub,
		audit:        audit,
	}
}

// List returns the merged, ordered conversation list for the authenticated
// user, optionally narrowed by kind and a name search.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := userIDFromContext(c)

	direct, err := h.chatRepo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	groups, err := h.groupRepo.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	filter := models.ListFilter(c.DefaultQuery("filter", string(models.FilterAll)))
	items, err := engine.MergeOnce(c.Request.Context(), h.userRepo, userID, direct, groups, filter, c.Query("q"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": items})
}

// Open marks the conversation read for the user and returns its message
// history. Opening a direct conversation that has no messages yet returns an
// empty history without creating anything.
func (h *ConversationHandler) Open(c *gin.Context) {
	ref, ok := conversationIDFromPath(c)
	if !ok {
		return
	}
	userID := userIDFromContext(c)

	unread, err := h.actions.MarkRead(c.Request.Context(), ref, userID)
	if err != nil {
		respondError(c, err, "failed to open conversation")
		return
	}

	switch ref.Kind {
	case models.KindDirect:
		messages, err := h.messageRepo.ListChatMessages(c.Request.Context(), ref.Key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": h.annotateDirect(c, messages), "unread": unread})
	case models.KindGroup:
		messages, err := h.groupMsgRepo.ListGroupMessages(c.Request.Context(), ref.Key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": h.annotateGroup(c, messages), "unread": unread})
	}
}

// SendMessage appends a message to the conversation and broadcasts it to the
// conversation's websocket room.
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	ref, ok := conversationIDFromPath(c)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := userIDFromContext(c)
	receipt, err := h.sender.Send(c.Request.Context(), ref, userID, req.Text)
	if err != nil {
		respondError(c, err, "failed to send message")
		return
	}

	event := models.ConversationEvent{
		Type:         "message",
		Conversation: ref.String(),
		Direct:       receipt.Direct,
		Group:        receipt.Group,
	}
	h.hub.BroadcastEvent(ref.String(), event)

	if h.audit != nil {
		h.audit.Emit(c.Request.Context(), "INFO", "message sent", requestIDFromContext(c), userID)
	}
	c.JSON(http.StatusCreated, gin.H{"receipt": receipt})
}

// TogglePin flips the pinned flag and returns the new value.
func (h *ConversationHandler) TogglePin(c *gin.Context) {
	ref, ok := conversationIDFromPath(c)
	if !ok {
		return
	}

	pinned, err := h.actions.TogglePin(c.Request.Context(), ref, userIDFromContext(c))
	if err != nil {
		respondError(c, err, "failed to toggle pin")
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": pinned})
}

// Remove deletes a direct conversation, or leaves a group. With mode=delete
// a group is destroyed entirely, which only its creator may do.
func (h *ConversationHandler) Remove(c *gin.Context) {
	ref, ok := conversationIDFromPath(c)
	if !ok {
		return
	}

	userID := userIDFromContext(c)
	destroy := c.Query("mode") == "delete"
	if err := h.actions.DeleteOrLeave(c.Request.Context(), ref, userID, destroy); err != nil {
		respondError(c, err, "failed to remove conversation")
		return
	}

	if h.audit != nil {
		h.audit.Emit(c.Request.Context(), "INFO", "conversation removed", requestIDFromContext(c), userID)
	}
	c.Status(http.StatusNoContent)
}

type annotatedMessage struct {
	ID             string `json:"id"`
	SenderID       string `json:"sender_id"`
	SenderUsername string `json:"sender_username,omitempty"`
	Text           string `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *ConversationHandler) annotateDirect(c *gin.Context, messages []models.ChatMessage) []annotatedMessage {
	senders := make([]string, 0, len(messages))
	for _, m := range messages {
		senders = append(senders, m.SenderID)
	}
	names := h.usernames(c, senders)

	out := make([]annotatedMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, annotatedMessage{
			ID:             m.ID,
			SenderID:       m.SenderID,
			SenderUsername: names[m.SenderID],
			Text:           m.Text,
			CreatedAt:      m.CreatedAt,
		})
	}
	return out
}

func (h *ConversationHandler) annotateGroup(c *gin.Context, messages []models.GroupMessage) []annotatedMessage {
	senders := make([]string, 0, len(messages))
	for _, m := range messages {
		senders = append(senders, m.SenderID)
	}
	names := h.usernames(c, senders)

	out := make([]annotatedMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, annotatedMessage{
			ID:             m.ID,
			SenderID:       m.SenderID,
			SenderUsername: names[m.SenderID],
			Text:           m.Text,
			CreatedAt:      m.CreatedAt,
		})
	}
	return out
}

func (h *ConversationHandler) usernames(c *gin.Context, ids []string) map[string]string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	names := make(map[string]string, len(unique))
	users, err := h.userRepo.ListByIDs(c.Request.Context(), unique)
	if err != nil {
		return names
	}
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names
}
