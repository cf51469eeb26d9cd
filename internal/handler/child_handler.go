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

// ChildHandler handles child registration endpoints.
type ChildHandler struct {
	service *service.ChildService
}

// NewChildHandler creates a new child handler.
func NewChildHandler(svc *service.ChildService) *ChildHandler {
	return &ChildHandler{service: svc}
}

// List godoc
// @Summary List children
// @Description List children with pagination and filtering
// @Tags Children
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param parent_id query string false "Parent filter"
// @Param group_id query string false "Group filter"
// @Param status query string false "Status filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /children [get]
func (h *ChildHandler) List(c *gin.Context) {
	var filter models.ChildFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	if status := c.Query("status"); status != "" {
		s := models.ChildStatus(status)
		filter.Status = &s
	}

	filter.ParentID = c.Query("parent_id")
	filter.GroupID = c.Query("group_id")
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	children, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, children, pagination)
}

// Get godoc
// @Summary Get child
// @Description Get child detail
// @Tags Children
// @Produce json
// @Param id path string true "Child ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /children/{id} [get]
func (h *ChildHandler) Get(c *gin.Context) {
	child, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, child, nil)
}

// Submit godoc
// @Summary Register child
// @Description Submit a child registration for approval
// @Tags Children
// @Accept json
// @Produce json
// @Param payload body models.CreateChildRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /children [post]
func (h *ChildHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	child, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, child)
}

// Update godoc
// @Summary Update child
// @Description Update child details
// @Tags Children
// @Accept json
// @Produce json
// @Param id path string true "Child ID"
// @Param payload body models.UpdateChildRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /children/{id} [put]
func (h *ChildHandler) Update(c *gin.Context) {
	var req models.UpdateChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	child, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, child, nil)
}

// Approve godoc
// @Summary Approve registration
// @Description Approve a pending child registration
// @Tags Children
// @Produce json
// @Param id path string true "Child ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /children/{id}/approve [post]
func (h *ChildHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	child, err := h.service.Approve(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, child, nil)
}

// Reject godoc
// @Summary Reject registration
// @Description Reject a pending child registration with a reason
// @Tags Children
// @Accept json
// @Produce json
// @Param id path string true "Child ID"
// @Param payload body models.ReviewChildRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /children/{id}/reject [post]
func (h *ChildHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ReviewChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	child, err := h.service.Reject(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, child, nil)
}

// Birthdays godoc
// @Summary List birthdays
// @Description List active children whose birthday falls on the given date
// @Tags Children
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /children/birthdays [get]
func (h *ChildHandler) Birthdays(c *gin.Context) {
	on := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		on = parsed
	}

	children, err := h.service.Birthdays(c.Request.Context(), on)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, children, nil)
}

// Delete godoc
// @Summary Delete child
// @Description Remove a child record
// @Tags Children
// @Produce json
// @Param id path string true "Child ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /children/{id} [delete]
func (h *ChildHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
