package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/covenantkids/checkin-api/internal/models"
	"github.com/covenantkids/checkin-api/internal/service"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
	"github.com/covenantkids/checkin-api/pkg/response"
)

// SessionHandler handles ministry session endpoints.
type SessionHandler struct {
	service *service.SessionService
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(svc *service.SessionService) *SessionHandler {
	return &SessionHandler{service: svc}
}

// List godoc
// @Summary List sessions
// @Description List sessions with pagination and filtering
// @Tags Sessions
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param date query string false "Session date (YYYY-MM-DD)"
// @Param month query string false "Month (YYYY-MM)"
// @Param group_id query string false "Group filter"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	var filter models.SessionFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	if date := c.Query("date"); date != "" {
		if parsed, err := time.Parse("2006-01-02", date); err == nil {
			filter.Date = &parsed
		}
	}

	if status := c.Query("status"); status != "" {
		s := models.SessionStatus(status)
		filter.Status = &s
	}

	filter.Month = c.Query("month")
	filter.GroupID = c.Query("group_id")
	filter.TeacherID = c.Query("teacher_id")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	sessions, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Today godoc
// @Summary Today's sessions
// @Description List sessions scheduled for today
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sessions/today [get]
func (h *SessionHandler) Today(c *gin.Context) {
	sessions, err := h.service.Today(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, sessions, nil)
}

// Get godoc
// @Summary Get session
// @Description Get session detail
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, session, nil)
}

// Create godoc
// @Summary Create session
// @Description Schedule a new ministry session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body models.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}

	session, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, session)
}

// Update godoc
// @Summary Update session
// @Description Update session details
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body models.UpdateSessionRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id} [put]
func (h *SessionHandler) Update(c *gin.Context) {
	var req models.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	session, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, session, nil)
}

// Cancel godoc
// @Summary Cancel session
// @Description Cancel a scheduled session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Cancel(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
