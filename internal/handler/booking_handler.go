package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/covenantkids/checkin-api/internal/models"
	"github.com/covenantkids/checkin-api/internal/service"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
	"github.com/covenantkids/checkin-api/pkg/qrcode"
	"github.com/covenantkids/checkin-api/pkg/response"
)

// BookingHandler handles session booking endpoints.
type BookingHandler struct {
	service *service.BookingService
}

// NewBookingHandler creates a new booking handler.
func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{service: svc}
}

// Book godoc
// @Summary Book children into session
// @Description Book one or more children and receive per-child credentials
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body models.BookSessionRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/book [post]
func (h *BookingHandler) Book(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.BookSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}

	bookings, err := h.service.Book(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, bookings)
}

// List godoc
// @Summary List bookings
// @Description List bookings filtered by session, child or status
// @Tags Bookings
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param session_id query string false "Session filter"
// @Param child_id query string false "Child filter"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	var filter models.BookingFilter

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	if status := c.Query("status"); status != "" {
		s := models.BookingStatus(status)
		filter.Status = &s
	}

	filter.SessionID = c.Query("session_id")
	filter.ChildID = c.Query("child_id")

	bookings, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Get godoc
// @Summary Get booking
// @Description Get booking detail
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, booking, nil)
}

// QRImage godoc
// @Summary Booking QR image
// @Description Render the booking's QR code as a PNG
// @Tags Bookings
// @Produce png
// @Param id path string true "Booking ID"
// @Param size query int false "Image size in pixels"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id}/qr [get]
func (h *BookingHandler) QRImage(c *gin.Context) {
	booking, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	size, _ := strconv.Atoi(c.DefaultQuery("size", "256"))
	png, err := qrcode.RenderPNG(booking.QRCode, size)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr code"))
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// Cancel godoc
// @Summary Cancel booking
// @Description Cancel a booking that has not been checked in
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Cancel(c *gin.Context) {
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
