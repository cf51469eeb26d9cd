package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/covenantkids/checkin-api/internal/models"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
)

type bookingRepository interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.SessionBooking, int, error)
	FindByID(ctx context.Context, id string) (*models.SessionBooking, error)
	ExistsActive(ctx context.Context, sessionID, childID string) (bool, error)
	Create(ctx context.Context, booking *models.SessionBooking) error
	Cancel(ctx context.Context, id string) error
}

// BookingService pre-registers children into sessions. Each booking
// carries its own QR token and OTP so the door scan needs no further
// lookup.
type BookingService struct {
	repo      bookingRepository
	sessions  checkInSessionRepository
	children  checkInChildRepository
	guardians childGuardianRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	otpLength int
}

// NewBookingService constructs a BookingService.
func NewBookingService(repo bookingRepository, sessions checkInSessionRepository, children checkInChildRepository, guardians childGuardianRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, otpLength int) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if otpLength <= 0 {
		otpLength = 6
	}
	return &BookingService{repo: repo, sessions: sessions, children: children, guardians: guardians, audit: audit, validator: validate, logger: logger, otpLength: otpLength}
}

// Book registers the given children into a session for the requesting
// user's guardian profile. Children already booked are skipped with a
// conflict in the per-child result.
func (s *BookingService) Book(ctx context.Context, userID, sessionID string, req models.BookSessionRequest) ([]models.SessionBooking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	guardian, err := s.guardians.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no guardian profile linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian profile")
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if session.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrSessionNotOpen, "session is no longer accepting bookings")
	}

	bookings := make([]models.SessionBooking, 0, len(req.ChildIDs))
	for _, childID := range req.ChildIDs {
		child, err := s.children.FindByID(ctx, childID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
		}
		if child.Status != models.ChildActive {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "child registration is not active")
		}

		exists, err := s.repo.ExistsActive(ctx, sessionID, childID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check booking")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "child already has a booking for this session")
		}

		qrToken, err := generateToken()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking token")
		}
		otp, err := generateOTP(s.otpLength)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking otp")
		}

		booking := models.SessionBooking{
			SessionID:  sessionID,
			ChildID:    childID,
			GuardianID: guardian.ID,
			QRCode:     qrToken,
			OTPCode:    otp,
			Status:     models.BookingBooked,
		}
		if err := s.repo.Create(ctx, &booking); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
		}
		bookings = append(bookings, booking)
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionBookingCreate,
		Resource:   "booking",
		ResourceID: &sessionID,
	}); err != nil {
		s.logger.Warn("failed to record booking audit log", zap.Error(err))
	}

	return bookings, nil
}

// List returns bookings matching the filter.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.SessionBooking, *models.Pagination, error) {
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	return bookings, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get fetches a single booking.
func (s *BookingService) Get(ctx context.Context, id string) (*models.SessionBooking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// Cancel cancels a booking that has not been used yet.
func (s *BookingService) Cancel(ctx context.Context, actorID, id string) error {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if booking.Status != models.BookingBooked {
		return appErrors.Clone(appErrors.ErrConflict, "booking can no longer be cancelled")
	}

	if err := s.repo.Cancel(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionBookingCancel,
		Resource:   "booking",
		ResourceID: &id,
	}); err != nil {
		s.logger.Warn("failed to record booking cancel audit log", zap.Error(err))
	}
	return nil
}
