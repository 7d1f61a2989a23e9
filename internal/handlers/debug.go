package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
	"conversation-service/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, chatRepo repositories.ChatRepository, groupRepo repositories.GroupRepository, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	// Recomputes a conversation summary from its message log, for repairing
	// drift left behind by older dual-write clients.
	router.POST("/debug/conversations/:id/reconcile", func(c *gin.Context) {
		ref, err := models.ParseConversationID(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
			return
		}

		switch ref.Kind {
		case models.KindDirect:
			err = chatRepo.ReconcileSummary(c.Request.Context(), ref.Key)
		case models.KindGroup:
			err = groupRepo.ReconcileSummary(c.Request.Context(), ref.Key)
		}
		if err != nil {
			respondError(c, err, "failed to reconcile summary")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
