package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/covenantkids/checkin-api/internal/models"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
)

type mockBookingStore struct {
	bookings  map[string]*models.SessionBooking
	active    map[string]bool
	created   []*models.SessionBooking
	cancelled []string
}

func (m *mockBookingStore) List(ctx context.Context, filter models.BookingFilter) ([]models.SessionBooking, int, error) {
	out := make([]models.SessionBooking, 0, len(m.bookings))
	for _, b := range m.bookings {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (m *mockBookingStore) FindByID(ctx context.Context, id string) (*models.SessionBooking, error) {
	booking, ok := m.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return booking, nil
}

func (m *mockBookingStore) ExistsActive(ctx context.Context, sessionID, childID string) (bool, error) {
	return m.active[sessionID+":"+childID], nil
}

func (m *mockBookingStore) Create(ctx context.Context, booking *models.SessionBooking) error {
	booking.ID = "bk-new"
	m.created = append(m.created, booking)
	return nil
}

func (m *mockBookingStore) Cancel(ctx context.Context, id string) error {
	m.cancelled = append(m.cancelled, id)
	return nil
}

func newBookingFixture() (*mockBookingStore, *mockAuditLog, *BookingService) {
	repo := &mockBookingStore{bookings: map[string]*models.SessionBooking{}, active: map[string]bool{}}
	sessions := &mockSessionLookup{sessions: map[string]*models.Session{
		testSessionID: {ID: testSessionID, SessionDate: testNow, Status: models.SessionScheduled},
	}}
	children := &mockChildRepo{children: map[string]*models.Child{
		testChildID: {ID: testChildID, Status: models.ChildActive},
	}}
	guardians := &mockChildGuardians{byUserID: map[string]*models.Guardian{
		"user-1": {ID: testGuardianID, ParentCode: "RS073"},
	}}
	audit := &mockAuditLog{}
	svc := NewBookingService(repo, sessions, children, guardians, audit, validator.New(), zap.NewNop(), 6)
	return repo, audit, svc
}

func TestBookIssuesCredentialsPerChild(t *testing.T) {
	repo, audit, svc := newBookingFixture()

	bookings, err := svc.Book(context.Background(), "user-1", testSessionID, models.BookSessionRequest{ChildIDs: []string{testChildID}})
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.NotEmpty(t, bookings[0].QRCode)
	assert.Len(t, bookings[0].OTPCode, 6)
	assert.Equal(t, models.BookingBooked, bookings[0].Status)
	assert.Equal(t, testGuardianID, bookings[0].GuardianID)
	assert.Len(t, repo.created, 1)
	assert.Contains(t, audit.actions(), models.AuditActionBookingCreate)
}

func TestBookRejectsDuplicateBooking(t *testing.T) {
	repo, _, svc := newBookingFixture()
	repo.active[testSessionID+":"+testChildID] = true

	_, err := svc.Book(context.Background(), "user-1", testSessionID, models.BookSessionRequest{ChildIDs: []string{testChildID}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestBookRejectsEndedSession(t *testing.T) {
	sessions := &mockSessionLookup{sessions: map[string]*models.Session{
		testSessionID: {ID: testSessionID, Status: models.SessionEnded},
	}}
	children := &mockChildRepo{children: map[string]*models.Child{testChildID: {ID: testChildID, Status: models.ChildActive}}}
	guardians := &mockChildGuardians{byUserID: map[string]*models.Guardian{"user-1": {ID: testGuardianID}}}
	svc := NewBookingService(&mockBookingStore{}, sessions, children, guardians, &mockAuditLog{}, validator.New(), zap.NewNop(), 6)

	_, err := svc.Book(context.Background(), "user-1", testSessionID, models.BookSessionRequest{ChildIDs: []string{testChildID}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionNotOpen.Code, appErrors.FromError(err).Code)
}

func TestBookRejectsPendingChild(t *testing.T) {
	repo := &mockBookingStore{active: map[string]bool{}}
	sessions := &mockSessionLookup{sessions: map[string]*models.Session{
		testSessionID: {ID: testSessionID, Status: models.SessionScheduled},
	}}
	children := &mockChildRepo{children: map[string]*models.Child{testChildID: {ID: testChildID, Status: models.ChildPending}}}
	guardians := &mockChildGuardians{byUserID: map[string]*models.Guardian{"user-1": {ID: testGuardianID}}}
	svc := NewBookingService(repo, sessions, children, guardians, &mockAuditLog{}, validator.New(), zap.NewNop(), 6)

	_, err := svc.Book(context.Background(), "user-1", testSessionID, models.BookSessionRequest{ChildIDs: []string{testChildID}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCancelBookedOnly(t *testing.T) {
	repo, audit, svc := newBookingFixture()
	repo.bookings["bk-1"] = &models.SessionBooking{ID: "bk-1", Status: models.BookingBooked}
	repo.bookings["bk-2"] = &models.SessionBooking{ID: "bk-2", Status: models.BookingCheckedIn}

	require.NoError(t, svc.Cancel(context.Background(), testActorID, "bk-1"))
	assert.Contains(t, repo.cancelled, "bk-1")
	assert.Contains(t, audit.actions(), models.AuditActionBookingCancel)

	err := svc.Cancel(context.Background(), testActorID, "bk-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}
