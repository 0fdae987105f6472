package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"linkara.id/linkaraconnect/internal/realtime"
)

// PresenceHandler exposes the registry's current view over REST.
type PresenceHandler struct {
	registry *realtime.Registry
}

func NewPresenceHandler(registry *realtime.Registry) *PresenceHandler {
	return &PresenceHandler{registry: registry}
}

func (h *PresenceHandler) GetOnlineUsers(c *gin.Context) {
	users := h.registry.Snapshot()
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

func (h *PresenceHandler) GetUserPresence(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	c.JSON(http.StatusOK, h.registry.Status(userID))
}
