package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/engine"
	"conversation-service/internal/mentions"
	"conversation-service/internal/repositories"
	"conversation-service/internal/telemetry"
)

// GroupHandler serves group creation and mention lookups.
type GroupHandler struct {
	actions   *engine.Actions
	groupRepo repositories.GroupRepository
	userRepo  repositories.UserRepository
	audit     *telemetry.AuditEmitter
}

// NewGroupHandler builds a GroupHandler.
func NewGroupHandler(actions *engine.Actions, groupRepo repositories.GroupRepository, userRepo repositories.UserRepository, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{actions: actions, groupRepo: groupRepo, userRepo: userRepo, audit: audit}
}

// CreateGroup creates a group conversation with the authenticated user as
// creator and first member.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name      string   `json:"name"`
		Avatar    string   `json:"avatar"`
		MemberIDs []string `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := userIDFromContext(c)
	group, err := h.actions.CreateGroup(c.Request.Context(), userID, req.Name, req.Avatar, req.MemberIDs)
	if err != nil {
		respondError(c, err, "failed to create group")
		return
	}

	if h.audit != nil {
		h.audit.Emit(c.Request.Context(), "INFO", "group created", requestIDFromContext(c), userID)
	}
	c.JSON(http.StatusCreated, gin.H{"group_id": group.ID, "members": group.Members})
}

// MentionSuggestions matches the trailing @-token of the input against the
// group's member display names. Without an active token the suggestion list
// is empty.
func (h *GroupHandler) MentionSuggestions(c *gin.Context) {
	groupID := c.Param("group_id")
	userID := userIDFromContext(c)

	group, err := h.groupRepo.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err, "failed to load group")
		return
	}
	if !group.IsMember(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a group member"})
		return
	}

	profiles, err := h.userRepo.ListByIDs(c.Request.Context(), group.Members)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.DisplayName())
	}

	input := c.Query("input")
	_, active := mentions.ActiveToken(input)
	c.JSON(http.StatusOK, gin.H{
		"active":      active,
		"suggestions": mentions.Suggest(input, names),
	})
}
