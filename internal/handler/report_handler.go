package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/covenantkids/checkin-api/internal/models"
	"github.com/covenantkids/checkin-api/internal/service"
	"github.com/covenantkids/checkin-api/pkg/response"
)

// ReportHandler handles attendance reporting endpoints.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

func reportFilterFromQuery(c *gin.Context) models.ReportFilter {
	var filter models.ReportFilter

	if from := c.Query("from"); from != "" {
		if parsed, err := time.Parse("2006-01-02", from); err == nil {
			filter.From = &parsed
		}
	}
	if to := c.Query("to"); to != "" {
		if parsed, err := time.Parse("2006-01-02", to); err == nil {
			filter.To = &parsed
		}
	}

	filter.GroupID = c.Query("group_id")
	filter.Format = c.Query("format")

	return filter
}

// Attendance godoc
// @Summary Attendance summary
// @Description Per-group per-date attendance aggregates
// @Tags Reports
// @Produce json
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param group_id query string false "Group filter"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance [get]
func (h *ReportHandler) Attendance(c *gin.Context) {
	filter := reportFilterFromQuery(c)

	summaries, cached, err := h.service.AttendanceSummary(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summaries, nil, map[string]interface{}{"cache_hit": cached})
}

// ChildHistory godoc
// @Summary Child attendance history
// @Description Attendance history for one child with rendered durations
// @Tags Reports
// @Produce json
// @Param id path string true "Child ID"
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /reports/attendance/child/{id} [get]
func (h *ReportHandler) ChildHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.service.ChildHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

// Export godoc
// @Summary Export attendance report
// @Description Export the attendance summary as CSV or PDF
// @Tags Reports
// @Produce octet-stream
// @Param format query string false "Export format (csv or pdf)"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param group_id query string false "Group filter"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /reports/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	filter := reportFilterFromQuery(c)

	payload, contentType, err := h.service.ExportAttendance(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := "attendance-report.csv"
	if contentType == "application/pdf" {
		filename = "attendance-report.pdf"
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, contentType, payload)
}
