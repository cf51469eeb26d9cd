package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/covenantkids/checkin-api/internal/models"
	"github.com/covenantkids/checkin-api/internal/service"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
	"github.com/covenantkids/checkin-api/pkg/response"
)

// NotificationHandler handles notification polling endpoints.
type NotificationHandler struct {
	service   *service.NotificationService
	guardians *service.GuardianService
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(svc *service.NotificationService, guardians *service.GuardianService) *NotificationHandler {
	return &NotificationHandler{service: svc, guardians: guardians}
}

// callerGuardianID resolves the guardian profile linked to the caller's
// account. Staff without a guardian profile simply resolve to empty.
func (h *NotificationHandler) callerGuardianID(c *gin.Context, userID string) string {
	guardian, err := h.guardians.GetByUser(c.Request.Context(), userID)
	if err != nil {
		return ""
	}
	return guardian.ID
}

// List godoc
// @Summary List notifications
// @Description List the caller's notifications, addressed to their guardian profile or user account
// @Tags Notifications
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param unread query bool false "Unread filter"
// @Param type query string false "Type filter"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var filter models.NotificationFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	if unread := c.Query("unread"); unread != "" {
		if val, err := strconv.ParseBool(unread); err == nil {
			filter.Unread = &val
		}
	}

	if typ := c.Query("type"); typ != "" {
		t := models.NotificationType(typ)
		filter.Type = &t
	}

	// The recipient identity always comes from the token, never from the
	// query string, so one family cannot read another's pickup codes.
	filter.UserID = claims.UserID
	filter.GuardianID = h.callerGuardianID(c, claims.UserID)

	notifications, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, notifications, pagination)
}

// MarkRead godoc
// @Summary Mark notification read
// @Description Mark one of the caller's notifications as read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	guardianID := h.callerGuardianID(c, claims.UserID)
	if err := h.service.MarkRead(c.Request.Context(), c.Param("id"), guardianID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// MarkAllRead godoc
// @Summary Mark all notifications read
// @Description Mark all of the caller's notifications as read
// @Tags Notifications
// @Produce json
// @Success 204 {object} response.Envelope
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	guardianID := h.callerGuardianID(c, claims.UserID)
	if err := h.service.MarkAllRead(c.Request.Context(), guardianID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
