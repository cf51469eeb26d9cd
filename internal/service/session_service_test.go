package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/covenantkids/checkin-api/internal/models"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
)

type mockSessionStore struct {
	sessions      map[string]*models.Session
	todaySessions []models.Session
	created       []*models.Session
	updated       []*models.Session
	statusSet     map[string]models.SessionStatus
}

func (m *mockSessionStore) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	out := make([]models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockSessionStore) FindByID(ctx context.Context, id string) (*models.Session, error) {
	session, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return session, nil
}

func (m *mockSessionStore) ListByDate(ctx context.Context, date time.Time) ([]models.Session, error) {
	return m.todaySessions, nil
}

func (m *mockSessionStore) Create(ctx context.Context, session *models.Session) error {
	session.ID = "sess-new"
	m.created = append(m.created, session)
	return nil
}

func (m *mockSessionStore) Update(ctx context.Context, session *models.Session) error {
	m.updated = append(m.updated, session)
	return nil
}

func (m *mockSessionStore) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	if m.statusSet == nil {
		m.statusSet = make(map[string]models.SessionStatus)
	}
	m.statusSet[id] = status
	return nil
}

func TestSessionCreateScheduled(t *testing.T) {
	repo := &mockSessionStore{sessions: map[string]*models.Session{}}
	audit := &mockAuditLog{}
	svc := NewSessionService(repo, audit, validator.New(), zap.NewNop())

	session, err := svc.Create(context.Background(), testActorID, models.CreateSessionRequest{
		Title:       "Sunday Kids",
		SessionDate: "2025-03-09",
		StartTime:   "09:00",
		EndTime:     "11:00",
		SessionType: "sunday_service",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionScheduled, session.Status)
	assert.Len(t, repo.created, 1)
	assert.Contains(t, audit.actions(), models.AuditActionSessionCreate)
}

func TestSessionCreateRejectsInvertedTimes(t *testing.T) {
	svc := NewSessionService(&mockSessionStore{}, &mockAuditLog{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), testActorID, models.CreateSessionRequest{
		Title:       "Sunday Kids",
		SessionDate: "2025-03-09",
		StartTime:   "11:00",
		EndTime:     "09:00",
		SessionType: "sunday_service",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSessionUpdateTerminalRejected(t *testing.T) {
	repo := &mockSessionStore{sessions: map[string]*models.Session{
		"s1": {ID: "s1", Status: models.SessionEnded},
	}}
	svc := NewSessionService(repo, &mockAuditLog{}, validator.New(), zap.NewNop())

	title := "Renamed"
	_, err := svc.Update(context.Background(), "s1", models.UpdateSessionRequest{Title: &title})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
}

func TestSessionCancel(t *testing.T) {
	repo := &mockSessionStore{sessions: map[string]*models.Session{
		"s1": {ID: "s1", Status: models.SessionScheduled},
	}}
	audit := &mockAuditLog{}
	svc := NewSessionService(repo, audit, validator.New(), zap.NewNop())

	require.NoError(t, svc.Cancel(context.Background(), testActorID, "s1"))
	assert.Equal(t, models.SessionCancelled, repo.statusSet["s1"])
	assert.Contains(t, audit.actions(), models.AuditActionSessionCancel)
}

func TestSessionCancelAlreadyTerminal(t *testing.T) {
	repo := &mockSessionStore{sessions: map[string]*models.Session{
		"s1": {ID: "s1", Status: models.SessionCancelled},
	}}
	svc := NewSessionService(repo, &mockAuditLog{}, validator.New(), zap.NewNop())

	err := svc.Cancel(context.Background(), testActorID, "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSessionToday(t *testing.T) {
	repo := &mockSessionStore{todaySessions: []models.Session{{ID: "s1", Title: "Sunday Kids"}}}
	svc := NewSessionService(repo, &mockAuditLog{}, validator.New(), zap.NewNop())

	sessions, err := svc.Today(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
}
