package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/covenantkids/checkin-api/internal/models"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
)

const (
	testChildID    = "7e9f0a3c-2d4b-4c8e-9f1a-6b5d8c7e0a21"
	testGuardianID = "1a2b3c4d-5e6f-4a8b-9c0d-e1f2a3b4c5d6"
	testSessionID  = "9c8b7a6d-5e4f-4d3c-8b2a-1f0e9d8c7b6a"
	testActorID    = "f0e1d2c3-b4a5-4968-8776-655443322110"
)

var testNow = time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)

type mockChildRepo struct {
	children map[string]*models.Child
}

func (m *mockChildRepo) FindByID(ctx context.Context, id string) (*models.Child, error) {
	child, ok := m.children[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return child, nil
}

type mockSessionLookup struct {
	sessions map[string]*models.Session
}

func (m *mockSessionLookup) FindByID(ctx context.Context, id string) (*models.Session, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return session, nil
}

type mockBookingLookup struct {
	byQRCode    map[string]*models.SessionBooking
	forCheckIn  *models.SessionBooking
	wantOTP     string
	checkedIn   []string
	checkedOut  []string
	lastOTPSeen string
}

func (m *mockBookingLookup) FindByQRCode(ctx context.Context, qrCode string) (*models.SessionBooking, error) {
	booking, ok := m.byQRCode[qrCode]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return booking, nil
}

func (m *mockBookingLookup) FindForCheckIn(ctx context.Context, sessionID, childID, otp string) (*models.SessionBooking, error) {
	m.lastOTPSeen = otp
	if m.forCheckIn == nil || otp != m.wantOTP {
		return nil, sql.ErrNoRows
	}
	return m.forCheckIn, nil
}

func (m *mockBookingLookup) MarkCheckedIn(ctx context.Context, id string, at time.Time) error {
	m.checkedIn = append(m.checkedIn, id)
	return nil
}

func (m *mockBookingLookup) MarkCheckedOut(ctx context.Context, id string, at time.Time) error {
	m.checkedOut = append(m.checkedOut, id)
	return nil
}

type mockRecordRepo struct {
	open          *models.CheckInRecord
	created       []*models.CheckInRecord
	releaseResult bool
	releaseErr    error
	released      []string
}

func (m *mockRecordRepo) FindOpenByChild(ctx context.Context, childID string, day time.Time) (*models.CheckInRecord, error) {
	if m.open == nil || m.open.ChildID != childID {
		return nil, sql.ErrNoRows
	}
	return m.open, nil
}

func (m *mockRecordRepo) FindByID(ctx context.Context, id string) (*models.CheckInRecord, error) {
	if m.open != nil && m.open.ID == id {
		return m.open, nil
	}
	for _, record := range m.created {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockRecordRepo) Create(ctx context.Context, record *models.CheckInRecord) error {
	record.ID = "rec-1"
	m.created = append(m.created, record)
	return nil
}

func (m *mockRecordRepo) ListOpen(ctx context.Context, sessionID string) ([]models.CheckInRecord, error) {
	if m.open == nil {
		return nil, nil
	}
	return []models.CheckInRecord{*m.open}, nil
}

func (m *mockRecordRepo) Release(ctx context.Context, id string, out time.Time, releasedBy, releasedTo string) (bool, error) {
	if m.releaseErr != nil {
		return false, m.releaseErr
	}
	if m.releaseResult {
		m.released = append(m.released, id)
		if m.open != nil && m.open.ID == id {
			m.open.TimestampOut = &out
			m.open.ReleasedTo = &releasedTo
		}
	}
	return m.releaseResult, nil
}

type mockGuardianLookup struct {
	guardians map[string]*models.Guardian
	links     map[string]*models.ChildGuardian
}

func (m *mockGuardianLookup) FindByID(ctx context.Context, id string) (*models.Guardian, error) {
	guardian, ok := m.guardians[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return guardian, nil
}

func (m *mockGuardianLookup) FindLink(ctx context.Context, childID, guardianID string) (*models.ChildGuardian, error) {
	link, ok := m.links[childID+":"+guardianID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return link, nil
}

type storedCredential struct {
	cred *models.PickupCredential
	ttl  time.Duration
}

type mockCredentialStore struct {
	stored   []storedCredential
	byToken  map[string]*models.PickupCredential
	byChild  map[string]*models.PickupCredential
	consumed int
}

func (m *mockCredentialStore) Store(ctx context.Context, cred *models.PickupCredential, ttl time.Duration) error {
	m.stored = append(m.stored, storedCredential{cred: cred, ttl: ttl})
	return nil
}

func (m *mockCredentialStore) FindByToken(ctx context.Context, token string) (*models.PickupCredential, error) {
	cred, ok := m.byToken[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrCodeExpired, "credential not found")
	}
	return cred, nil
}

func (m *mockCredentialStore) FindByChild(ctx context.Context, purpose models.CredentialPurpose, childID string) (*models.PickupCredential, error) {
	cred, ok := m.byChild[string(purpose)+":"+childID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrCodeExpired, "credential not found")
	}
	return cred, nil
}

func (m *mockCredentialStore) Consume(ctx context.Context, cred *models.PickupCredential) error {
	m.consumed++
	delete(m.byToken, cred.QRToken)
	delete(m.byChild, string(cred.Purpose)+":"+cred.ChildID)
	return nil
}

type mockAuditLog struct {
	logs []*models.AuditLog
}

func (m *mockAuditLog) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockAuditLog) actions() []string {
	actions := make([]string, 0, len(m.logs))
	for _, log := range m.logs {
		actions = append(actions, log.Action)
	}
	return actions
}

type mockAttendanceNotifier struct {
	checkIns     int
	checkOuts    int
	pickupsReady int
}

func (m *mockAttendanceNotifier) NotifyCheckIn(ctx context.Context, child *models.Child, guardian *models.Guardian, session *models.Session) {
	m.checkIns++
}

func (m *mockAttendanceNotifier) NotifyCheckOut(ctx context.Context, child *models.Child, guardian *models.Guardian) {
	m.checkOuts++
}

func (m *mockAttendanceNotifier) NotifyPickupReady(ctx context.Context, child *models.Child, guardian *models.Guardian, cred *models.IssuedCredential) {
	m.pickupsReady++
}

type checkInFixture struct {
	children    *mockChildRepo
	sessions    *mockSessionLookup
	bookings    *mockBookingLookup
	records     *mockRecordRepo
	guardians   *mockGuardianLookup
	credentials *mockCredentialStore
	audit       *mockAuditLog
	notifier    *mockAttendanceNotifier
	svc         *CheckInService
}

func newCheckInFixture() *checkInFixture {
	f := &checkInFixture{
		children: &mockChildRepo{children: map[string]*models.Child{
			testChildID: {ID: testChildID, RegistrationID: "RS073/01", FullName: "Grace M", Status: models.ChildActive, ParentID: testGuardianID},
		}},
		sessions: &mockSessionLookup{sessions: map[string]*models.Session{
			testSessionID: {ID: testSessionID, Title: "Sunday Kids", SessionDate: testNow, Status: models.SessionActive},
		}},
		bookings: &mockBookingLookup{byQRCode: map[string]*models.SessionBooking{}},
		records:  &mockRecordRepo{},
		guardians: &mockGuardianLookup{
			guardians: map[string]*models.Guardian{
				testGuardianID: {ID: testGuardianID, ParentCode: "RS073", FullName: "Ruth M", IsPrimary: true},
			},
			links: map[string]*models.ChildGuardian{
				testChildID + ":" + testGuardianID: {ChildID: testChildID, GuardianID: testGuardianID, IsAuthorized: true},
			},
		},
		credentials: &mockCredentialStore{byToken: map[string]*models.PickupCredential{}, byChild: map[string]*models.PickupCredential{}},
		audit:       &mockAuditLog{},
		notifier:    &mockAttendanceNotifier{},
	}
	f.svc = NewCheckInService(
		f.children, f.sessions, f.bookings, f.records, f.guardians,
		f.credentials, f.audit, f.notifier,
		validator.New(), zap.NewNop(),
		CredentialConfig{CheckinQRTTL: 15 * time.Minute, PickupTTL: 30 * time.Minute, OTPLength: 6},
	)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func TestGenerateQRIssuesShortLivedCredential(t *testing.T) {
	f := newCheckInFixture()

	issued, err := f.svc.GenerateQR(context.Background(), testGuardianID, models.GenerateCheckInQRRequest{ChildID: testChildID, SessionID: testSessionID})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.QRToken)
	assert.Len(t, issued.OTP, 6)
	assert.Equal(t, int64(900), issued.ExpiresIn)

	require.Len(t, f.credentials.stored, 1)
	stored := f.credentials.stored[0]
	assert.Equal(t, models.PurposeCheckIn, stored.cred.Purpose)
	assert.Equal(t, 15*time.Minute, stored.ttl)
	assert.Equal(t, testNow.Add(15*time.Minute), stored.cred.ExpiresAt)
}

func TestGenerateQRRejectsExpiredGuardian(t *testing.T) {
	f := newCheckInFixture()
	lapsed := testNow.Add(-24 * time.Hour)
	f.guardians.guardians[testGuardianID] = &models.Guardian{ID: testGuardianID, IsPrimary: false, ActiveUntil: &lapsed}

	_, err := f.svc.GenerateQR(context.Background(), testGuardianID, models.GenerateCheckInQRRequest{ChildID: testChildID, SessionID: testSessionID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrGuardianNotAuthorized.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.credentials.stored)
}

func TestScanQRWithBookingCode(t *testing.T) {
	f := newCheckInFixture()
	f.bookings.byQRCode["booking-token"] = &models.SessionBooking{
		ID: "bk-1", SessionID: testSessionID, ChildID: testChildID, GuardianID: testGuardianID,
		QRCode: "booking-token", Status: models.BookingBooked,
	}

	record, err := f.svc.ScanQR(context.Background(), testActorID, models.ScanQRRequest{Token: "booking-token", SessionID: testSessionID})
	require.NoError(t, err)
	assert.Equal(t, testChildID, record.ChildID)
	assert.Equal(t, models.MethodQR, record.Method)
	assert.Equal(t, testNow, record.TimestampIn)
	assert.Contains(t, f.bookings.checkedIn, "bk-1")
	assert.Equal(t, 1, f.notifier.checkIns)
	assert.Contains(t, f.audit.actions(), models.AuditActionCheckIn)
}

func TestScanQRCountsAttendance(t *testing.T) {
	f := newCheckInFixture()
	metrics := NewMetricsService()
	f.svc.AttachMetrics(metrics)
	f.bookings.byQRCode["booking-token"] = &models.SessionBooking{
		ID: "bk-1", SessionID: testSessionID, ChildID: testChildID, GuardianID: testGuardianID,
		QRCode: "booking-token", Status: models.BookingBooked,
	}

	_, err := f.svc.ScanQR(context.Background(), testActorID, models.ScanQRRequest{Token: "booking-token", SessionID: testSessionID})
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.checkInTotal.WithLabelValues("in", string(models.MethodQR))))
}

func TestScanQRWithIssuedCredentialConsumesIt(t *testing.T) {
	f := newCheckInFixture()
	cred := &models.PickupCredential{
		Purpose: models.PurposeCheckIn, ChildID: testChildID, GuardianID: testGuardianID,
		SessionID: testSessionID, QRToken: "cred-token", OTP: "482913",
		IssuedAt: testNow, ExpiresAt: testNow.Add(15 * time.Minute),
	}
	f.credentials.byToken["cred-token"] = cred

	record, err := f.svc.ScanQR(context.Background(), testActorID, models.ScanQRRequest{Token: "cred-token", SessionID: testSessionID})
	require.NoError(t, err)
	assert.Equal(t, testChildID, record.ChildID)
	assert.Equal(t, 1, f.credentials.consumed)
}

func TestScanQRUnknownToken(t *testing.T) {
	f := newCheckInFixture()

	_, err := f.svc.ScanQR(context.Background(), testActorID, models.ScanQRRequest{Token: "bogus", SessionID: testSessionID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeInvalid.Code, appErrors.FromError(err).Code)
}

func TestVerifyOTPNormalizesInput(t *testing.T) {
	f := newCheckInFixture()
	f.bookings.forCheckIn = &models.SessionBooking{
		ID: "bk-1", SessionID: testSessionID, ChildID: testChildID, GuardianID: testGuardianID,
		OTPCode: "123456", Status: models.BookingBooked,
	}
	f.bookings.wantOTP = "123456"

	record, err := f.svc.VerifyOTP(context.Background(), testActorID, models.VerifyOTPCheckInRequest{ChildID: testChildID, OTP: "12a3456789", SessionID: testSessionID})
	require.NoError(t, err)
	assert.Equal(t, models.MethodOTP, record.Method)
	assert.Equal(t, "123456", f.bookings.lastOTPSeen)
}

func TestVerifyOTPMatchingCredentialConsumed(t *testing.T) {
	f := newCheckInFixture()
	cred := &models.PickupCredential{
		Purpose: models.PurposeCheckIn, ChildID: testChildID, GuardianID: testGuardianID,
		SessionID: testSessionID, OTP: "482913",
		IssuedAt: testNow, ExpiresAt: testNow.Add(15 * time.Minute),
	}
	f.credentials.byChild[string(models.PurposeCheckIn)+":"+testChildID] = cred

	record, err := f.svc.VerifyOTP(context.Background(), testActorID, models.VerifyOTPCheckInRequest{ChildID: testChildID, OTP: "482913", SessionID: testSessionID})
	require.NoError(t, err)
	assert.Equal(t, models.MethodOTP, record.Method)
	assert.Equal(t, 1, f.credentials.consumed)
}

func TestVerifyOTPBookingCodeBesideCredential(t *testing.T) {
	f := newCheckInFixture()
	f.credentials.byChild[string(models.PurposeCheckIn)+":"+testChildID] = &models.PickupCredential{
		Purpose: models.PurposeCheckIn, ChildID: testChildID, GuardianID: testGuardianID,
		SessionID: testSessionID, OTP: "999999",
		IssuedAt: testNow, ExpiresAt: testNow.Add(15 * time.Minute),
	}
	f.bookings.forCheckIn = &models.SessionBooking{
		ID: "bk-1", SessionID: testSessionID, ChildID: testChildID, GuardianID: testGuardianID,
		OTPCode: "123456", Status: models.BookingBooked,
	}
	f.bookings.wantOTP = "123456"

	record, err := f.svc.VerifyOTP(context.Background(), testActorID, models.VerifyOTPCheckInRequest{ChildID: testChildID, OTP: "123456", SessionID: testSessionID})
	require.NoError(t, err)
	assert.Equal(t, testChildID, record.ChildID)
	assert.Contains(t, f.bookings.checkedIn, "bk-1")
	assert.Equal(t, 0, f.credentials.consumed)
}

func TestVerifyOTPRejectsShortCode(t *testing.T) {
	f := newCheckInFixture()

	_, err := f.svc.VerifyOTP(context.Background(), testActorID, models.VerifyOTPCheckInRequest{ChildID: testChildID, OTP: "12ab", SessionID: testSessionID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCheckInRejectsSecondOpenCheckIn(t *testing.T) {
	f := newCheckInFixture()
	f.records.open = &models.CheckInRecord{ID: "rec-0", ChildID: testChildID, SessionID: testSessionID, TimestampIn: testNow.Add(-time.Hour)}
	f.bookings.byQRCode["booking-token"] = &models.SessionBooking{
		ID: "bk-1", SessionID: testSessionID, ChildID: testChildID, GuardianID: testGuardianID, Status: models.BookingBooked,
	}

	_, err := f.svc.ScanQR(context.Background(), testActorID, models.ScanQRRequest{Token: "booking-token", SessionID: testSessionID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyCheckedIn.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.records.created)
}

func TestCheckInRejectsSessionOnAnotherDay(t *testing.T) {
	f := newCheckInFixture()
	f.sessions.sessions[testSessionID].SessionDate = testNow.Add(-48 * time.Hour)
	f.bookings.byQRCode["booking-token"] = &models.SessionBooking{
		ID: "bk-1", SessionID: testSessionID, ChildID: testChildID, GuardianID: testGuardianID, Status: models.BookingBooked,
	}

	_, err := f.svc.ScanQR(context.Background(), testActorID, models.ScanQRRequest{Token: "booking-token", SessionID: testSessionID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionNotOpen.Code, appErrors.FromError(err).Code)
}

func TestCheckInRejectsCancelledSession(t *testing.T) {
	f := newCheckInFixture()
	f.sessions.sessions[testSessionID].Status = models.SessionCancelled

	_, err := f.svc.Manual(context.Background(), testActorID, models.ManualCheckInRequest{ChildID: testChildID, GuardianID: testGuardianID, SessionID: testSessionID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionNotOpen.Code, appErrors.FromError(err).Code)
}

func TestManualCheckInRequiresAuthorizedLink(t *testing.T) {
	f := newCheckInFixture()
	f.guardians.links[testChildID+":"+testGuardianID].IsAuthorized = false

	_, err := f.svc.Manual(context.Background(), testActorID, models.ManualCheckInRequest{ChildID: testChildID, GuardianID: testGuardianID, SessionID: testSessionID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrGuardianNotAuthorized.Code, appErrors.FromError(err).Code)
}

func TestManualCheckInRejectsPendingChild(t *testing.T) {
	f := newCheckInFixture()
	f.children.children[testChildID].Status = models.ChildPending

	_, err := f.svc.Manual(context.Background(), testActorID, models.ManualCheckInRequest{ChildID: testChildID, GuardianID: testGuardianID, SessionID: testSessionID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestStatusReportsOpenCheckIn(t *testing.T) {
	f := newCheckInFixture()

	status, err := f.svc.Status(context.Background(), testChildID)
	require.NoError(t, err)
	assert.False(t, status.CheckedIn)

	f.records.open = &models.CheckInRecord{ID: "rec-0", ChildID: testChildID, TimestampIn: testNow}
	status, err = f.svc.Status(context.Background(), testChildID)
	require.NoError(t, err)
	assert.True(t, status.CheckedIn)
	assert.Equal(t, "rec-0", status.Record.ID)
}
