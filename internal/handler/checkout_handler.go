package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/covenantkids/checkin-api/internal/models"
	"github.com/covenantkids/checkin-api/internal/service"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
	"github.com/covenantkids/checkin-api/pkg/response"
)

// CheckOutHandler handles the release side of the attendance lifecycle.
type CheckOutHandler struct {
	service *service.CheckOutService
}

// NewCheckOutHandler creates a new check-out handler.
func NewCheckOutHandler(svc *service.CheckOutService) *CheckOutHandler {
	return &CheckOutHandler{service: svc}
}

// Notify godoc
// @Summary Request pickup
// @Description Issue a pickup credential pair and notify the parent
// @Tags CheckOut
// @Produce json
// @Param childID path string true "Child ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /checkout/notify/{childID} [post]
func (h *CheckOutHandler) Notify(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	cred, err := h.service.NotifyPickup(c.Request.Context(), claims.UserID, c.Param("childID"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, cred, nil)
}

// Verify godoc
// @Summary Verify pickup credential
// @Description Validate a pickup credential and guardian without consuming it
// @Tags CheckOut
// @Accept json
// @Produce json
// @Param payload body models.VerifyPickupRequest true "Verify payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /checkout/verify [post]
func (h *CheckOutHandler) Verify(c *gin.Context) {
	var req models.VerifyPickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verify payload"))
		return
	}

	guardian, err := h.service.VerifyPickup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, guardian, nil)
}

// Release godoc
// @Summary Release child
// @Description Close the open check-in and record the release
// @Tags CheckOut
// @Accept json
// @Produce json
// @Param childID path string true "Child ID"
// @Param payload body models.ReleaseRequest true "Release payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /checkout/release/{childID} [post]
func (h *CheckOutHandler) Release(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid release payload"))
		return
	}

	record, err := h.service.Release(c.Request.Context(), claims.UserID, c.Param("childID"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, record, nil)
}
