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

type checkOutRecordRepository interface {
	FindOpenByChild(ctx context.Context, childID string, day time.Time) (*models.CheckInRecord, error)
	FindByID(ctx context.Context, id string) (*models.CheckInRecord, error)
	Release(ctx context.Context, id string, out time.Time, releasedBy, releasedTo string) (bool, error)
}

type checkOutBookingRepository interface {
	MarkCheckedOut(ctx context.Context, id string, at time.Time) error
}

type checkOutNotifier interface {
	NotifyPickupReady(ctx context.Context, child *models.Child, guardian *models.Guardian, cred *models.IssuedCredential)
	NotifyCheckOut(ctx context.Context, child *models.Child, guardian *models.Guardian)
}

// CheckOutService owns the release side of the attendance lifecycle:
// pickup notification, credential verification and the final release.
type CheckOutService struct {
	children    checkInChildRepository
	records     checkOutRecordRepository
	bookings    checkOutBookingRepository
	guardians   checkInGuardianRepository
	credentials credentialStore
	audit       auditRecorder
	notifier    checkOutNotifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	config      CredentialConfig
	now         func() time.Time
}

// AttachMetrics wires the attendance counters. Optional.
func (s *CheckOutService) AttachMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// NewCheckOutService constructs a CheckOutService.
func NewCheckOutService(
	children checkInChildRepository,
	records checkOutRecordRepository,
	bookings checkOutBookingRepository,
	guardians checkInGuardianRepository,
	credentials credentialStore,
	audit auditRecorder,
	notifier checkOutNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
	config CredentialConfig,
) *CheckOutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.PickupTTL <= 0 {
		config.PickupTTL = 30 * time.Minute
	}
	if config.OTPLength <= 0 {
		config.OTPLength = 6
	}
	return &CheckOutService{
		children:    children,
		records:     records,
		bookings:    bookings,
		guardians:   guardians,
		credentials: credentials,
		audit:       audit,
		notifier:    notifier,
		validator:   validate,
		logger:      logger,
		config:      config,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NotifyPickup issues a pickup credential pair for a checked-in child and
// notifies the child's primary guardian. Requires an open check-in.
func (s *CheckOutService) NotifyPickup(ctx context.Context, actorID, childID string) (*models.IssuedCredential, error) {
	child, record, err := s.loadOpenCheckIn(ctx, childID)
	if err != nil {
		return nil, err
	}

	guardian, err := s.guardians.FindByID(ctx, record.GuardianID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "guardian not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian")
	}

	token, err := generateToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pickup token")
	}
	otp, err := generateOTP(s.config.OTPLength)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pickup otp")
	}

	now := s.now()
	cred := &models.PickupCredential{
		Purpose:    models.PurposePickup,
		ChildID:    childID,
		GuardianID: guardian.ID,
		SessionID:  record.SessionID,
		QRToken:    token,
		OTP:        otp,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.config.PickupTTL),
	}
	if err := s.credentials.Store(ctx, cred, s.config.PickupTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store pickup credential")
	}

	issued := &models.IssuedCredential{
		QRToken:   token,
		OTP:       otp,
		ExpiresAt: cred.ExpiresAt,
		ExpiresIn: int64(s.config.PickupTTL.Seconds()),
	}

	if s.notifier != nil {
		s.notifier.NotifyPickupReady(ctx, child, guardian, issued)
	}

	return issued, nil
}

// VerifyPickup validates a presented pickup credential against the
// guardian's authorization without consuming it. Release consumes.
func (s *CheckOutService) VerifyPickup(ctx context.Context, req models.VerifyPickupRequest) (*models.Guardian, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verify payload")
	}
	if req.QRToken == "" && req.OTP == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either qr_token or otp is required")
	}

	guardian, err := s.authorizedGuardian(ctx, req.ChildID, req.GuardianID)
	if err != nil {
		return nil, err
	}

	cred, err := s.credentials.FindByChild(ctx, models.PurposePickup, req.ChildID)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrCodeExpired.Code {
			return nil, appErrors.Clone(appErrors.ErrCodeExpired, "pickup code has expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pickup credential")
	}
	if cred.Expired(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrCodeExpired, "pickup code has expired")
	}

	if req.QRToken != "" && cred.QRToken != req.QRToken {
		return nil, appErrors.Clone(appErrors.ErrCodeInvalid, "pickup code does not match")
	}
	if req.OTP != "" && cred.OTP != normalizeOTP(req.OTP, s.config.OTPLength) {
		return nil, appErrors.Clone(appErrors.ErrCodeInvalid, "pickup code does not match")
	}

	return guardian, nil
}

// Release closes the child's open check-in. With RequireOTP set the
// pickup OTP must match and the credential is consumed; staff confirmed
// releases skip the code but the override is audit-logged.
func (s *CheckOutService) Release(ctx context.Context, actorID, childID string, req models.ReleaseRequest) (*models.CheckInRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid release payload")
	}

	child, record, err := s.loadOpenCheckIn(ctx, childID)
	if err != nil {
		return nil, err
	}

	guardian, err := s.authorizedGuardian(ctx, childID, req.GuardianID)
	if err != nil {
		return nil, err
	}

	requireOTP := req.RequireOTP == nil || *req.RequireOTP
	var consumed *models.PickupCredential
	if requireOTP {
		cred, err := s.credentials.FindByChild(ctx, models.PurposePickup, childID)
		if err != nil {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) && appErr.Code == appErrors.ErrCodeExpired.Code {
				return nil, appErrors.Clone(appErrors.ErrCodeExpired, "pickup code has expired")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pickup credential")
		}
		if cred.Expired(s.now()) {
			return nil, appErrors.Clone(appErrors.ErrCodeExpired, "pickup code has expired")
		}
		if cred.OTP != normalizeOTP(req.OTP, s.config.OTPLength) {
			return nil, appErrors.Clone(appErrors.ErrCodeInvalid, "incorrect pickup code")
		}
		consumed = cred
	}

	now := s.now()
	released, err := s.records.Release(ctx, record.ID, now, actorID, guardian.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release check-in")
	}
	if !released {
		return nil, appErrors.Clone(appErrors.ErrAlreadyCheckedOut, "child has already been checked out")
	}

	if consumed != nil {
		if err := s.credentials.Consume(ctx, consumed); err != nil {
			s.logger.Warn("failed to consume pickup credential", zap.Error(err))
		}
	}

	if record.BookingID != nil {
		if err := s.bookings.MarkCheckedOut(ctx, *record.BookingID, now); err != nil {
			s.logger.Warn("failed to mark booking checked out", zap.Error(err), zap.String("booking_id", *record.BookingID))
		}
	}

	if s.notifier != nil {
		s.notifier.NotifyCheckOut(ctx, child, guardian)
	}

	s.metrics.RecordCheckIn("out", record.Method)

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     optionalID(actorID),
		Action:     models.AuditActionCheckOut,
		Resource:   "checkin",
		ResourceID: &record.ID,
		NewValues:  []byte(`{"released_to":"` + guardian.ID + `"}`),
	}); err != nil {
		s.logger.Warn("failed to record check-out audit log", zap.Error(err))
	}

	if !requireOTP {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     optionalID(actorID),
			Action:     models.AuditActionOTPOverride,
			Resource:   "checkin",
			ResourceID: &record.ID,
			NewValues:  []byte(`{"require_otp":false}`),
		}); err != nil {
			s.logger.Warn("failed to record otp override audit log", zap.Error(err))
		}
	}

	updated, err := s.records.FindByID(ctx, record.ID)
	if err != nil {
		record.TimestampOut = &now
		return record, nil
	}
	return updated, nil
}

func (s *CheckOutService) loadOpenCheckIn(ctx context.Context, childID string) (*models.Child, *models.CheckInRecord, error) {
	child, err := s.children.FindByID(ctx, childID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}

	record, err := s.records.FindOpenByChild(ctx, childID, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotCheckedIn, "child is not checked in")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open check-in")
	}
	return child, record, nil
}

func (s *CheckOutService) authorizedGuardian(ctx context.Context, childID, guardianID string) (*models.Guardian, error) {
	guardian, err := s.guardians.FindByID(ctx, guardianID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "guardian not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian")
	}
	if guardian.Expired(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrGuardianNotAuthorized, "guardian authorization has expired")
	}

	link, err := s.guardians.FindLink(ctx, childID, guardianID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrGuardianNotAuthorized, "guardian is not linked to this child")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian link")
	}
	if !link.IsAuthorized {
		return nil, appErrors.Clone(appErrors.ErrGuardianNotAuthorized, "guardian is not authorized for this child")
	}
	if link.ExpiresAt != nil && s.now().After(*link.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrGuardianNotAuthorized, "guardian authorization has expired")
	}
	return guardian, nil
}
