package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/covenantkids/checkin-api/internal/middleware"
	"github.com/covenantkids/checkin-api/internal/models"
	"github.com/covenantkids/checkin-api/internal/service"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
)

const (
	handlerChildID    = "7e9f0a3c-2d4b-4c8e-9f1a-6b5d8c7e0a21"
	handlerGuardianID = "1a2b3c4d-5e6f-4a8b-9c0d-e1f2a3b4c5d6"
)

type stubChildRepo struct {
	child *models.Child
}

func (s *stubChildRepo) FindByID(ctx context.Context, id string) (*models.Child, error) {
	if s.child == nil || s.child.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.child, nil
}

type stubRecordRepo struct {
	open *models.CheckInRecord
}

func (s *stubRecordRepo) FindOpenByChild(ctx context.Context, childID string, day time.Time) (*models.CheckInRecord, error) {
	if s.open == nil || s.open.ChildID != childID {
		return nil, sql.ErrNoRows
	}
	return s.open, nil
}

func (s *stubRecordRepo) FindByID(ctx context.Context, id string) (*models.CheckInRecord, error) {
	if s.open == nil || s.open.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.open, nil
}

func (s *stubRecordRepo) Release(ctx context.Context, id string, out time.Time, releasedBy, releasedTo string) (bool, error) {
	if s.open == nil || s.open.ID != id {
		return false, nil
	}
	s.open.TimestampOut = &out
	return true, nil
}

type stubBookingRepo struct{}

func (s *stubBookingRepo) MarkCheckedOut(ctx context.Context, id string, at time.Time) error {
	return nil
}

type stubGuardianRepo struct {
	guardian *models.Guardian
}

func (s *stubGuardianRepo) FindByID(ctx context.Context, id string) (*models.Guardian, error) {
	if s.guardian == nil || s.guardian.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.guardian, nil
}

func (s *stubGuardianRepo) FindLink(ctx context.Context, childID, guardianID string) (*models.ChildGuardian, error) {
	if s.guardian == nil || s.guardian.ID != guardianID {
		return nil, sql.ErrNoRows
	}
	return &models.ChildGuardian{ChildID: childID, GuardianID: guardianID, IsAuthorized: true}, nil
}

type stubCredentialStore struct {
	cred *models.PickupCredential
}

func (s *stubCredentialStore) Store(ctx context.Context, cred *models.PickupCredential, ttl time.Duration) error {
	s.cred = cred
	return nil
}

func (s *stubCredentialStore) FindByToken(ctx context.Context, token string) (*models.PickupCredential, error) {
	if s.cred == nil || s.cred.QRToken != token {
		return nil, appErrors.Clone(appErrors.ErrCodeExpired, "code not found or expired")
	}
	return s.cred, nil
}

func (s *stubCredentialStore) FindByChild(ctx context.Context, purpose models.CredentialPurpose, childID string) (*models.PickupCredential, error) {
	if s.cred == nil || s.cred.Purpose != purpose || s.cred.ChildID != childID {
		return nil, appErrors.Clone(appErrors.ErrCodeExpired, "code not found or expired")
	}
	return s.cred, nil
}

func (s *stubCredentialStore) Consume(ctx context.Context, cred *models.PickupCredential) error {
	s.cred = nil
	return nil
}

type stubAudit struct{}

func (s *stubAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

type stubNotifier struct{}

func (s *stubNotifier) NotifyPickupReady(ctx context.Context, child *models.Child, guardian *models.Guardian, cred *models.IssuedCredential) {
}

func (s *stubNotifier) NotifyCheckOut(ctx context.Context, child *models.Child, guardian *models.Guardian) {
}

func newCheckOutHandler(t *testing.T) (*CheckOutHandler, *stubCredentialStore, *stubRecordRepo) {
	t.Helper()

	in := time.Now().UTC().Add(-time.Hour)
	records := &stubRecordRepo{open: &models.CheckInRecord{
		ID:          "rec-1",
		ChildID:     handlerChildID,
		GuardianID:  handlerGuardianID,
		SessionID:   "sess-1",
		TimestampIn: in,
	}}
	creds := &stubCredentialStore{cred: &models.PickupCredential{
		Purpose:   models.PurposePickup,
		ChildID:   handlerChildID,
		OTP:       "482913",
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(30 * time.Minute),
	}}

	svc := service.NewCheckOutService(
		&stubChildRepo{child: &models.Child{ID: handlerChildID, RegistrationID: "RS073/01", Status: models.ChildActive}},
		records,
		&stubBookingRepo{},
		&stubGuardianRepo{guardian: &models.Guardian{ID: handlerGuardianID, IsPrimary: true}},
		creds,
		&stubAudit{},
		&stubNotifier{},
		nil,
		nil,
		service.CredentialConfig{PickupTTL: 30 * time.Minute, OTPLength: 6},
	)
	return NewCheckOutHandler(svc), creds, records
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func staffClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}
}

func TestCheckOutHandlerRelease(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, creds, records := newCheckOutHandler(t)

	requireOTP := true
	payload, _ := json.Marshal(models.ReleaseRequest{
		GuardianID: handlerGuardianID,
		OTP:        "482913",
		RequireOTP: &requireOTP,
	})
	c, w := newGinContext(http.MethodPost, "/checkout/release/"+handlerChildID, payload)
	c.Params = gin.Params{{Key: "childID", Value: handlerChildID}}
	c.Set(middleware.ContextUserKey, staffClaims())

	handler.Release(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, creds.cred)
	require.NotNil(t, records.open.TimestampOut)
}

func TestCheckOutHandlerReleaseMissingRequireOTP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newCheckOutHandler(t)

	payload := []byte(`{"guardian_id":"` + handlerGuardianID + `","otp":"482913"}`)
	c, w := newGinContext(http.MethodPost, "/checkout/release/"+handlerChildID, payload)
	c.Params = gin.Params{{Key: "childID", Value: handlerChildID}}
	c.Set(middleware.ContextUserKey, staffClaims())

	handler.Release(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckOutHandlerReleaseWrongOTP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, creds, _ := newCheckOutHandler(t)

	requireOTP := true
	payload, _ := json.Marshal(models.ReleaseRequest{
		GuardianID: handlerGuardianID,
		OTP:        "000000",
		RequireOTP: &requireOTP,
	})
	c, w := newGinContext(http.MethodPost, "/checkout/release/"+handlerChildID, payload)
	c.Params = gin.Params{{Key: "childID", Value: handlerChildID}}
	c.Set(middleware.ContextUserKey, staffClaims())

	handler.Release(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, creds.cred)
}

func TestCheckOutHandlerNotifyWithoutOpenCheckIn(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, records := newCheckOutHandler(t)
	records.open = nil

	c, w := newGinContext(http.MethodPost, "/checkout/notify/"+handlerChildID, nil)
	c.Params = gin.Params{{Key: "childID", Value: handlerChildID}}
	c.Set(middleware.ContextUserKey, staffClaims())

	handler.Notify(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckOutHandlerVerify(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, creds, _ := newCheckOutHandler(t)

	payload, _ := json.Marshal(models.VerifyPickupRequest{
		ChildID:    handlerChildID,
		GuardianID: handlerGuardianID,
		OTP:        "482913",
	})
	c, w := newGinContext(http.MethodPost, "/checkout/verify", payload)

	handler.Verify(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, creds.cred)
}

func TestCheckOutHandlerReleaseUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newCheckOutHandler(t)

	c, w := newGinContext(http.MethodPost, "/checkout/release/"+handlerChildID, nil)
	c.Params = gin.Params{{Key: "childID", Value: handlerChildID}}

	handler.Release(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
