package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/covenantkids/checkin-api/internal/models"
	"github.com/covenantkids/checkin-api/pkg/config"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
	"github.com/covenantkids/checkin-api/pkg/export"
)

// ReportRepository describes the persistence layer required by ReportService.
type ReportRepository interface {
	AttendanceSummary(ctx context.Context, filter models.ReportFilter) ([]models.AttendanceSummary, error)
	ChildHistory(ctx context.Context, childID string, limit int) ([]models.ChildAttendanceEntry, error)
}

// ReportService serves attendance reporting with cache integration and
// tabular exports.
type ReportService struct {
	repo    ReportRepository
	cache   *CacheService
	metrics *MetricsService
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	config  config.ReportsConfig
	logger  *zap.Logger
}

// NewReportService constructs a report service.
func NewReportService(repo ReportRepository, cache *CacheService, metrics *MetricsService, cfg config.ReportsConfig, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &ReportService{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		config:  cfg,
		logger:  logger,
	}
}

// AttendanceSummary returns aggregated attendance rows. The boolean
// indicates whether the result came from cache.
func (s *ReportService) AttendanceSummary(ctx context.Context, filter models.ReportFilter) ([]models.AttendanceSummary, bool, error) {
	cacheKey := makeReportCacheKey("attendance", formatReportTime(filter.From), formatReportTime(filter.To), filter.GroupID)
	var cached []models.AttendanceSummary
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get attendance cache: %w", err)
		} else if hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	summaries, err := s.repo.AttendanceSummary(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build attendance summary")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("report_attendance", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summaries, s.config.CacheTTL); err != nil {
			s.logger.Warn("cache attendance summary", zap.Error(err))
		}
	}
	return summaries, false, nil
}

// ChildHistory returns a child's attendance entries with rendered durations.
func (s *ReportService) ChildHistory(ctx context.Context, childID string, limit int) ([]models.ChildAttendanceEntry, error) {
	entries, err := s.repo.ChildHistory(ctx, childID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}
	for i := range entries {
		record := models.CheckInRecord{TimestampIn: entries[i].TimestampIn, TimestampOut: entries[i].TimestampOut}
		entries[i].Duration = record.Duration()
	}
	return entries, nil
}

// ExportAttendance renders the attendance summary as CSV or PDF bytes and
// returns the matching content type.
func (s *ReportService) ExportAttendance(ctx context.Context, filter models.ReportFilter) ([]byte, string, error) {
	summaries, _, err := s.AttendanceSummary(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	table := export.Table{
		Title:       "Attendance Report",
		Columns:     []string{"Date", "Group", "Booked", "Checked In", "Checked Out", "Still Present"},
		GeneratedAt: time.Now().UTC(),
	}
	for _, row := range summaries {
		table.Rows = append(table.Rows, []string{
			row.Date.Format("2006-01-02"),
			row.GroupName,
			strconv.Itoa(row.TotalBooked),
			strconv.Itoa(row.CheckedIn),
			strconv.Itoa(row.CheckedOut),
			strconv.Itoa(row.StillPresent),
		})
	}

	switch strings.ToLower(filter.Format) {
	case "", "csv":
		payload, err := s.csv.Render(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

// SystemMetrics returns the runtime instrumentation snapshot.
func (s *ReportService) SystemMetrics() models.SystemMetrics {
	if s.metrics == nil {
		return models.SystemMetrics{}
	}
	return s.metrics.Snapshot()
}

func makeReportCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString("report")
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
