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

// GuardianHandler handles guardian registry endpoints.
type GuardianHandler struct {
	service *service.GuardianService
}

// NewGuardianHandler creates a new guardian handler.
func NewGuardianHandler(svc *service.GuardianService) *GuardianHandler {
	return &GuardianHandler{service: svc}
}

// List godoc
// @Summary List guardians
// @Description List guardians with pagination and filtering
// @Tags Guardians
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param child_id query string false "Child filter"
// @Param is_primary query bool false "Primary filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Router /guardians [get]
func (h *GuardianHandler) List(c *gin.Context) {
	var filter models.GuardianFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	if primary := c.Query("is_primary"); primary != "" {
		if val, err := strconv.ParseBool(primary); err == nil {
			filter.IsPrimary = &val
		}
	}

	filter.ChildID = c.Query("child_id")
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	guardians, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, guardians, pagination)
}

// Get godoc
// @Summary Get guardian
// @Description Get guardian detail
// @Tags Guardians
// @Produce json
// @Param id path string true "Guardian ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /guardians/{id} [get]
func (h *GuardianHandler) Get(c *gin.Context) {
	guardian, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, guardian, nil)
}

// GetByCode godoc
// @Summary Look up guardian by family code
// @Description Look a guardian up by their printed RSxxx family code
// @Tags Guardians
// @Produce json
// @Param code path string true "Family code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /guardians/code/{code} [get]
func (h *GuardianHandler) GetByCode(c *gin.Context) {
	guardian, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, guardian, nil)
}

// ListForChild godoc
// @Summary List child guardians
// @Description List a child's guardians partitioned into active and expired
// @Tags Guardians
// @Produce json
// @Param childID path string true "Child ID"
// @Success 200 {object} response.Envelope
// @Router /children/{childID}/guardians [get]
func (h *GuardianHandler) ListForChild(c *gin.Context) {
	partition, err := h.service.ListForChild(c.Request.Context(), c.Param("childID"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, partition, nil)
}

// CreateSecondary godoc
// @Summary Register secondary guardian
// @Description Register a secondary guardian with a bounded authorization window
// @Tags Guardians
// @Accept json
// @Produce json
// @Param payload body models.CreateGuardianRequest true "Guardian payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /guardians [post]
func (h *GuardianHandler) CreateSecondary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateGuardianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid guardian payload"))
		return
	}

	guardian, err := h.service.CreateSecondary(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, guardian)
}

// Renew godoc
// @Summary Renew guardian authorization
// @Description Extend a secondary guardian's authorization window
// @Tags Guardians
// @Accept json
// @Produce json
// @Param id path string true "Guardian ID"
// @Param payload body models.RenewGuardianRequest true "Renew payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /guardians/{id}/renew [post]
func (h *GuardianHandler) Renew(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.RenewGuardianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid renew payload"))
		return
	}

	guardian, err := h.service.Renew(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, guardian, nil)
}

// Revoke godoc
// @Summary Revoke guardian link
// @Description Revoke a guardian's authorization for a child
// @Tags Guardians
// @Produce json
// @Param childID path string true "Child ID"
// @Param id path string true "Guardian ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /children/{childID}/guardians/{id} [delete]
func (h *GuardianHandler) Revoke(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Revoke(c.Request.Context(), claims.UserID, c.Param("childID"), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
