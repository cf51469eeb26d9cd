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
	"github.com/covenantkids/checkin-api/pkg/qrcode"
)

type checkInChildRepository interface {
	FindByID(ctx context.Context, id string) (*models.Child, error)
}

type checkInSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type checkInBookingRepository interface {
	FindByQRCode(ctx context.Context, qrCode string) (*models.SessionBooking, error)
	FindForCheckIn(ctx context.Context, sessionID, childID, otp string) (*models.SessionBooking, error)
	MarkCheckedIn(ctx context.Context, id string, at time.Time) error
}

type checkInRecordRepository interface {
	FindOpenByChild(ctx context.Context, childID string, day time.Time) (*models.CheckInRecord, error)
	Create(ctx context.Context, record *models.CheckInRecord) error
	ListOpen(ctx context.Context, sessionID string) ([]models.CheckInRecord, error)
}

type checkInGuardianRepository interface {
	FindByID(ctx context.Context, id string) (*models.Guardian, error)
	FindLink(ctx context.Context, childID, guardianID string) (*models.ChildGuardian, error)
}

type credentialStore interface {
	Store(ctx context.Context, cred *models.PickupCredential, ttl time.Duration) error
	FindByToken(ctx context.Context, token string) (*models.PickupCredential, error)
	FindByChild(ctx context.Context, purpose models.CredentialPurpose, childID string) (*models.PickupCredential, error)
	Consume(ctx context.Context, cred *models.PickupCredential) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type checkInNotifier interface {
	NotifyCheckIn(ctx context.Context, child *models.Child, guardian *models.Guardian, session *models.Session)
}

// CredentialConfig carries the distinct credential windows. The
// pre-check-in QR, pickup pair and login OTP windows are separate
// settings and are never conflated.
type CredentialConfig struct {
	CheckinQRTTL time.Duration
	PickupTTL    time.Duration
	MFAOTPTTL    time.Duration
	OTPLength    int
}

// CheckInService owns the arrival side of the attendance lifecycle. The
// QR, OTP and manual paths all converge on one record creation with the
// same guards.
type CheckInService struct {
	children    checkInChildRepository
	sessions    checkInSessionRepository
	bookings    checkInBookingRepository
	records     checkInRecordRepository
	guardians   checkInGuardianRepository
	credentials credentialStore
	audit       auditRecorder
	notifier    checkInNotifier
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	config      CredentialConfig
	now         func() time.Time
}

// AttachMetrics wires the attendance counters. Optional.
func (s *CheckInService) AttachMetrics(metrics *MetricsService) {
	s.metrics = metrics
}

// NewCheckInService constructs a CheckInService.
func NewCheckInService(
	children checkInChildRepository,
	sessions checkInSessionRepository,
	bookings checkInBookingRepository,
	records checkInRecordRepository,
	guardians checkInGuardianRepository,
	credentials credentialStore,
	audit auditRecorder,
	notifier checkInNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
	config CredentialConfig,
) *CheckInService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.CheckinQRTTL <= 0 {
		config.CheckinQRTTL = 15 * time.Minute
	}
	if config.OTPLength <= 0 {
		config.OTPLength = 6
	}
	return &CheckInService{
		children:    children,
		sessions:    sessions,
		bookings:    bookings,
		records:     records,
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

// GenerateQR issues a short-lived pre-check-in credential for a child.
// The requesting guardian must be authorized for the child.
func (s *CheckInService) GenerateQR(ctx context.Context, guardianID string, req models.GenerateCheckInQRRequest) (*models.IssuedCredential, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate qr payload")
	}

	if _, err := s.authorizedGuardian(ctx, req.ChildID, guardianID); err != nil {
		return nil, err
	}

	session, err := s.loadOpenSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create qr token")
	}
	otp, err := generateOTP(s.config.OTPLength)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create otp")
	}

	now := s.now()
	cred := &models.PickupCredential{
		Purpose:    models.PurposeCheckIn,
		ChildID:    req.ChildID,
		GuardianID: guardianID,
		SessionID:  session.ID,
		QRToken:    token,
		OTP:        otp,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.config.CheckinQRTTL),
	}
	if err := s.credentials.Store(ctx, cred, s.config.CheckinQRTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store credential")
	}

	return &models.IssuedCredential{
		QRToken:   token,
		OTP:       otp,
		ExpiresAt: cred.ExpiresAt,
		ExpiresIn: int64(s.config.CheckinQRTTL.Seconds()),
	}, nil
}

// ScanQR checks a child in from a scanned token. Pre-check-in credentials
// and booking QR codes are both accepted.
func (s *CheckInService) ScanQR(ctx context.Context, actorID string, req models.ScanQRRequest) (*models.CheckInRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scan payload")
	}

	cred, err := s.credentials.FindByToken(ctx, req.Token)
	if err == nil && cred.Purpose == models.PurposeCheckIn {
		if cred.Expired(s.now()) {
			return nil, appErrors.Clone(appErrors.ErrCodeExpired, "check-in code has expired")
		}
		record, err := s.performCheckIn(ctx, actorID, cred.ChildID, cred.GuardianID, req.SessionID, nil, models.MethodQR)
		if err != nil {
			return nil, err
		}
		if err := s.credentials.Consume(ctx, cred); err != nil {
			s.logger.Warn("failed to consume check-in credential", zap.Error(err))
		}
		return record, nil
	}

	booking, err := s.bookings.FindByQRCode(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCodeInvalid, "unrecognized qr code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up booking")
	}
	if booking.Status != models.BookingBooked {
		return nil, appErrors.Clone(appErrors.ErrAlreadyCheckedIn, "booking has already been used")
	}
	if booking.SessionID != req.SessionID {
		return nil, appErrors.Clone(appErrors.ErrCodeInvalid, "booking belongs to a different session")
	}

	return s.performCheckIn(ctx, actorID, booking.ChildID, booking.GuardianID, booking.SessionID, &booking.ID, models.MethodQR)
}

// VerifyOTP checks a child in from a typed or spoken code.
func (s *CheckInService) VerifyOTP(ctx context.Context, actorID string, req models.VerifyOTPCheckInRequest) (*models.CheckInRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid otp payload")
	}

	otp := normalizeOTP(req.OTP, s.config.OTPLength)
	if len(otp) != s.config.OTPLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, "verification code must contain six digits")
	}

	// A child can hold both a pre-check-in credential and a booking OTP.
	// The credential wins only when its code matches; otherwise the
	// booking lookup still gets its chance.
	cred, err := s.credentials.FindByChild(ctx, models.PurposeCheckIn, req.ChildID)
	if err == nil && cred.OTP == otp {
		if cred.Expired(s.now()) {
			return nil, appErrors.Clone(appErrors.ErrCodeExpired, "check-in code has expired")
		}
		record, err := s.performCheckIn(ctx, actorID, cred.ChildID, cred.GuardianID, req.SessionID, nil, models.MethodOTP)
		if err != nil {
			return nil, err
		}
		if err := s.credentials.Consume(ctx, cred); err != nil {
			s.logger.Warn("failed to consume check-in credential", zap.Error(err))
		}
		return record, nil
	}

	booking, err := s.bookings.FindForCheckIn(ctx, req.SessionID, req.ChildID, otp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCodeInvalid, "incorrect verification code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up booking")
	}

	return s.performCheckIn(ctx, actorID, booking.ChildID, booking.GuardianID, booking.SessionID, &booking.ID, models.MethodOTP)
}

// Manual checks a child in without a credential. Reserved for staff; the
// named guardian must still be authorized for the child.
func (s *CheckInService) Manual(ctx context.Context, actorID string, req models.ManualCheckInRequest) (*models.CheckInRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid manual check-in payload")
	}

	if _, err := s.authorizedGuardian(ctx, req.ChildID, req.GuardianID); err != nil {
		return nil, err
	}

	return s.performCheckIn(ctx, actorID, req.ChildID, req.GuardianID, req.SessionID, nil, models.MethodManual)
}

// Active lists open check-ins, optionally scoped to a session.
func (s *CheckInService) Active(ctx context.Context, sessionID string) ([]models.CheckInRecord, error) {
	records, err := s.records.ListOpen(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list open check-ins")
	}
	return records, nil
}

// Status reports whether a child currently holds an open check-in.
func (s *CheckInService) Status(ctx context.Context, childID string) (*models.CheckInStatus, error) {
	record, err := s.records.FindOpenByChild(ctx, childID, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.CheckInStatus{ChildID: childID, CheckedIn: false}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load check-in status")
	}
	return &models.CheckInStatus{ChildID: childID, CheckedIn: true, Record: record}, nil
}

// RenderQR renders a credential or booking token as a PNG image.
func (s *CheckInService) RenderQR(token string, size int) ([]byte, error) {
	png, err := qrcode.RenderPNG(token, size)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to render qr code")
	}
	return png, nil
}

func (s *CheckInService) authorizedGuardian(ctx context.Context, childID, guardianID string) (*models.Guardian, error) {
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

func (s *CheckInService) loadOpenSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !session.OpenForCheckIn(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrSessionNotOpen, "session is not open for check-in")
	}
	return session, nil
}

func (s *CheckInService) performCheckIn(ctx context.Context, actorID, childID, guardianID, sessionID string, bookingID *string, method models.CheckInMethod) (*models.CheckInRecord, error) {
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

	session, err := s.loadOpenSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if _, err := s.records.FindOpenByChild(ctx, childID, now); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyCheckedIn, "child already has an open check-in")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open check-ins")
	}

	record := &models.CheckInRecord{
		ChildID:     childID,
		GuardianID:  guardianID,
		SessionID:   session.ID,
		BookingID:   bookingID,
		Method:      method,
		TimestampIn: now,
	}
	if actorID != "" {
		record.TeacherID = &actorID
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create check-in")
	}

	if bookingID != nil {
		if err := s.bookings.MarkCheckedIn(ctx, *bookingID, now); err != nil {
			s.logger.Warn("failed to mark booking checked in", zap.Error(err), zap.String("booking_id", *bookingID))
		}
	}

	if guardian, err := s.guardians.FindByID(ctx, guardianID); err == nil && s.notifier != nil {
		s.notifier.NotifyCheckIn(ctx, child, guardian, session)
	}

	s.metrics.RecordCheckIn("in", method)

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     optionalID(actorID),
		Action:     models.AuditActionCheckIn,
		Resource:   "checkin",
		ResourceID: &record.ID,
		NewValues:  []byte(`{"method":"` + string(method) + `"}`),
	}); err != nil {
		s.logger.Warn("failed to record check-in audit log", zap.Error(err))
	}

	return record, nil
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
