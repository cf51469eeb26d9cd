package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/covenantkids/checkin-api/internal/models"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
)

type sessionRepository interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
	FindByID(ctx context.Context, id string) (*models.Session, error)
	ListByDate(ctx context.Context, date time.Time) ([]models.Session, error)
	Create(ctx context.Context, session *models.Session) error
	Update(ctx context.Context, session *models.Session) error
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
}

// SessionService manages the ministry session lifecycle.
type SessionService struct {
	repo      sessionRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(repo sessionRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SessionService{repo: repo, audit: audit, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns sessions matching the filter.
func (s *SessionService) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, *models.Pagination, error) {
	sessions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return sessions, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get fetches a single session.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// Today returns today's non-cancelled sessions.
func (s *SessionService) Today(ctx context.Context) ([]models.Session, error) {
	sessions, err := s.repo.ListByDate(ctx, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list today's sessions")
	}
	return sessions, nil
}

// Create schedules a new session.
func (s *SessionService) Create(ctx context.Context, actorID string, req models.CreateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	date, err := time.Parse("2006-01-02", req.SessionDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session_date must be YYYY-MM-DD")
	}
	if req.EndTime <= req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}

	session := &models.Session{
		Title:       req.Title,
		Description: req.Description,
		SessionDate: date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		GroupID:     req.GroupID,
		TeacherID:   req.TeacherID,
		SessionType: req.SessionType,
		Location:    req.Location,
		Status:      models.SessionScheduled,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionSessionCreate,
		Resource:   "session",
		ResourceID: &session.ID,
	}); err != nil {
		s.logger.Warn("failed to record session create audit log", zap.Error(err))
	}

	return session, nil
}

// Update applies partial session updates. Status transitions respect the
// closed enum; terminal sessions cannot be edited.
func (s *SessionService) Update(ctx context.Context, id string, req models.UpdateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session has ended")
	}

	if req.Title != nil {
		session.Title = *req.Title
	}
	if req.Description != nil {
		session.Description = *req.Description
	}
	if req.StartTime != nil {
		session.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		session.EndTime = *req.EndTime
	}
	if req.Location != nil {
		session.Location = *req.Location
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown session status")
		}
		session.Status = *req.Status
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return session, nil
}

// Cancel transitions a session to cancelled.
func (s *SessionService) Cancel(ctx context.Context, actorID, id string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrConflict, "session has already ended")
	}

	if err := s.repo.UpdateStatus(ctx, id, models.SessionCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel session")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionSessionCancel,
		Resource:   "session",
		ResourceID: &id,
	}); err != nil {
		s.logger.Warn("failed to record session cancel audit log", zap.Error(err))
	}
	return nil
}
