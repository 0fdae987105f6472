package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"linkara.id/linkaraconnect/internal/model"
	"linkara.id/linkaraconnect/internal/service"
	"linkara.id/linkaraconnect/pkg/response"
	"linkara.id/linkaraconnect/pkg/validator"
)

// AdminHandler covers the bulk/system notification surface.
type AdminHandler struct {
	notifications service.NotificationService
}

func NewAdminHandler(notifications service.NotificationService) *AdminHandler {
	return &AdminHandler{notifications: notifications}
}

type broadcastRequest struct {
	RecipientIDs []string `json:"recipient_ids" binding:"required,min=1,dive,uuid"`
	Title        string   `json:"title" binding:"required,max=200"`
	Message      string   `json:"message" binding:"required"`
	Priority     string   `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
}

// Broadcast persists one system notification per recipient and pushes
// each through the live-delivery path. Persistence failures abort the
// affected recipient only.
func (h *AdminHandler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	priority := model.NotificationPriority(req.Priority)
	if priority == "" {
		priority = model.PriorityMedium
	}

	created := 0
	failed := 0
	for _, idStr := range req.RecipientIDs {
		recipientID, _ := uuid.Parse(idStr)
		notification := &model.Notification{
			RecipientID: recipientID,
			Type:        model.NotificationTypeSystem,
			Title:       req.Title,
			Message:     req.Message,
			Priority:    priority,
		}
		if err := h.notifications.Create(c.Request.Context(), notification); err != nil {
			failed++
			continue
		}
		created++
	}

	c.JSON(http.StatusOK, gin.H{"created": created, "failed": failed})
}

type pushRequest struct {
	NotificationID string `json:"notification_id" binding:"required,uuid"`
}

// PushLive re-delivers an already-persisted notification without
// re-persisting it.
func (h *AdminHandler) PushLive(c *gin.Context) {
	_, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req pushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}
	id, _ := uuid.Parse(req.NotificationID)

	notification, err := h.notifications.GetByID(c.Request.Context(), id)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	delivered := h.notifications.PushLive(notification)
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}
