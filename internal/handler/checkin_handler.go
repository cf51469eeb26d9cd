package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/covenantkids/checkin-api/internal/models"
	"github.com/covenantkids/checkin-api/internal/service"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
	"github.com/covenantkids/checkin-api/pkg/response"
)

// CheckInHandler handles the arrival side of the attendance lifecycle.
type CheckInHandler struct {
	service   *service.CheckInService
	guardians *service.GuardianService
}

// NewCheckInHandler creates a new check-in handler.
func NewCheckInHandler(svc *service.CheckInService, guardians *service.GuardianService) *CheckInHandler {
	return &CheckInHandler{service: svc, guardians: guardians}
}

// GenerateQR godoc
// @Summary Generate pre-check-in QR
// @Description Issue a short-lived check-in credential to the requesting parent
// @Tags CheckIn
// @Accept json
// @Produce json
// @Param payload body models.GenerateCheckInQRRequest true "Generate payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /checkin/generate-qr [post]
func (h *CheckInHandler) GenerateQR(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.GenerateCheckInQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}

	guardian, err := h.guardians.GetByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	cred, err := h.service.GenerateQR(c.Request.Context(), guardian.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, cred, nil)
}

// ScanQR godoc
// @Summary Check in by QR
// @Description Check a child in from a scanned QR token
// @Tags CheckIn
// @Accept json
// @Produce json
// @Param payload body models.ScanQRRequest true "Scan payload"
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /checkin/scan-qr [post]
func (h *CheckInHandler) ScanQR(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ScanQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scan payload"))
		return
	}

	record, err := h.service.ScanQR(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// VerifyOTP godoc
// @Summary Check in by OTP
// @Description Check a child in from a spoken or typed OTP
// @Tags CheckIn
// @Accept json
// @Produce json
// @Param payload body models.VerifyOTPCheckInRequest true "OTP payload"
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /checkin/verify-otp [post]
func (h *CheckInHandler) VerifyOTP(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.VerifyOTPCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid otp payload"))
		return
	}

	record, err := h.service.VerifyOTP(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// Manual godoc
// @Summary Manual check-in
// @Description Check a child in without a credential, staff only
// @Tags CheckIn
// @Accept json
// @Produce json
// @Param payload body models.ManualCheckInRequest true "Manual payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /checkin/manual [post]
func (h *CheckInHandler) Manual(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ManualCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid manual payload"))
		return
	}

	record, err := h.service.Manual(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, record)
}

// Active godoc
// @Summary List open check-ins
// @Description List children currently checked in for a session
// @Tags CheckIn
// @Produce json
// @Param session_id query string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /checkin/active [get]
func (h *CheckInHandler) Active(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "session_id is required"))
		return
	}

	records, err := h.service.Active(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, records, nil)
}

// Status godoc
// @Summary Child attendance status
// @Description Report whether a child is currently checked in
// @Tags CheckIn
// @Produce json
// @Param childID path string true "Child ID"
// @Success 200 {object} response.Envelope
// @Router /checkin/status/{childID} [get]
func (h *CheckInHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context(), c.Param("childID"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, status, nil)
}

// QRImage godoc
// @Summary Credential QR image
// @Description Render a credential token as a PNG for display
// @Tags CheckIn
// @Produce png
// @Param token path string true "Credential token"
// @Param size query int false "Image size in pixels"
// @Success 200 {file} binary
// @Router /checkin/qr/{token} [get]
func (h *CheckInHandler) QRImage(c *gin.Context) {
	token := strings.TrimSuffix(c.Param("token"), ".png")
	size, _ := strconv.Atoi(c.DefaultQuery("size", "256"))

	png, err := h.service.RenderQR(token, size)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
