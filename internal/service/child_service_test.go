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

type mockChildStore struct {
	children   map[string]*models.Child
	birthdays  []models.Child
	countByPar int
	created    []*models.Child
	updated    []*models.Child
	deletedIDs []string
}

func (m *mockChildStore) List(ctx context.Context, filter models.ChildFilter) ([]models.Child, int, error) {
	out := make([]models.Child, 0, len(m.children))
	for _, c := range m.children {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockChildStore) FindByID(ctx context.Context, id string) (*models.Child, error) {
	child, ok := m.children[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return child, nil
}

func (m *mockChildStore) CountByParent(ctx context.Context, parentID string) (int, error) {
	return m.countByPar, nil
}

func (m *mockChildStore) ListBirthdays(ctx context.Context, month, day int) ([]models.Child, error) {
	return m.birthdays, nil
}

func (m *mockChildStore) Create(ctx context.Context, child *models.Child) error {
	child.ID = "child-new"
	m.created = append(m.created, child)
	if m.children == nil {
		m.children = make(map[string]*models.Child)
	}
	m.children[child.ID] = child
	return nil
}

func (m *mockChildStore) Update(ctx context.Context, child *models.Child) error {
	m.updated = append(m.updated, child)
	return nil
}

func (m *mockChildStore) Delete(ctx context.Context, id string) error {
	m.deletedIDs = append(m.deletedIDs, id)
	return nil
}

type mockChildGuardians struct {
	byID     map[string]*models.Guardian
	byUserID map[string]*models.Guardian
	links    []*models.ChildGuardian
}

func (m *mockChildGuardians) FindByID(ctx context.Context, id string) (*models.Guardian, error) {
	guardian, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return guardian, nil
}

func (m *mockChildGuardians) FindByUserID(ctx context.Context, userID string) (*models.Guardian, error) {
	guardian, ok := m.byUserID[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return guardian, nil
}

func (m *mockChildGuardians) LinkChild(ctx context.Context, link *models.ChildGuardian) error {
	m.links = append(m.links, link)
	return nil
}

type mockReviewNotifier struct {
	approved       []bool
	reasons        []string
	birthdayChilds []string
	birthdayGuards []string
}

func (m *mockReviewNotifier) NotifyRegistrationReviewed(ctx context.Context, child *models.Child, guardian *models.Guardian, approved bool, reason string) {
	m.approved = append(m.approved, approved)
	m.reasons = append(m.reasons, reason)
}

func (m *mockReviewNotifier) NotifyBirthday(ctx context.Context, child *models.Child, guardian *models.Guardian) {
	m.birthdayChilds = append(m.birthdayChilds, child.ID)
	m.birthdayGuards = append(m.birthdayGuards, guardian.ID)
}

func TestSubmitDerivesRegistrationID(t *testing.T) {
	repo := &mockChildStore{}
	guardians := &mockChildGuardians{
		byUserID: map[string]*models.Guardian{
			"user-1": {ID: testGuardianID, ParentCode: "RS073", Relationship: "mother", IsPrimary: true},
		},
	}
	audit := &mockAuditLog{}
	svc := NewChildService(repo, guardians, audit, &mockReviewNotifier{}, validator.New(), zap.NewNop())

	child, err := svc.Submit(context.Background(), "user-1", models.CreateChildRequest{
		FullName:    "Grace M",
		DateOfBirth: "2017-06-04",
		Gender:      "female",
	})
	require.NoError(t, err)
	assert.Equal(t, "RS073/01", child.RegistrationID)
	assert.Equal(t, models.ChildPending, child.Status)
	assert.Equal(t, testGuardianID, child.ParentID)

	require.Len(t, guardians.links, 1)
	assert.True(t, guardians.links[0].IsAuthorized)
	assert.Nil(t, guardians.links[0].ExpiresAt)
	assert.Contains(t, audit.actions(), models.AuditActionChildSubmit)
}

func TestSubmitSecondChildOrdinal(t *testing.T) {
	repo := &mockChildStore{countByPar: 1}
	guardians := &mockChildGuardians{
		byUserID: map[string]*models.Guardian{
			"user-1": {ID: testGuardianID, ParentCode: "RS073"},
		},
	}
	svc := NewChildService(repo, guardians, &mockAuditLog{}, &mockReviewNotifier{}, validator.New(), zap.NewNop())

	child, err := svc.Submit(context.Background(), "user-1", models.CreateChildRequest{
		FullName:    "Joshua M",
		DateOfBirth: "2019-11-21",
		Gender:      "male",
	})
	require.NoError(t, err)
	assert.Equal(t, "RS073/02", child.RegistrationID)
}

func TestSubmitWithoutGuardianProfile(t *testing.T) {
	svc := NewChildService(&mockChildStore{}, &mockChildGuardians{}, &mockAuditLog{}, &mockReviewNotifier{}, validator.New(), zap.NewNop())

	_, err := svc.Submit(context.Background(), "user-unknown", models.CreateChildRequest{
		FullName:    "Grace M",
		DateOfBirth: "2017-06-04",
		Gender:      "female",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestApprovePendingRegistration(t *testing.T) {
	repo := &mockChildStore{children: map[string]*models.Child{
		"c1": {ID: "c1", Status: models.ChildPending, ParentID: testGuardianID},
	}}
	guardians := &mockChildGuardians{byID: map[string]*models.Guardian{
		testGuardianID: {ID: testGuardianID, FullName: "Ruth M"},
	}}
	audit := &mockAuditLog{}
	notifier := &mockReviewNotifier{}
	svc := NewChildService(repo, guardians, audit, notifier, validator.New(), zap.NewNop())

	child, err := svc.Approve(context.Background(), testActorID, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.ChildActive, child.Status)
	require.NotNil(t, child.ReviewedBy)
	assert.Equal(t, testActorID, *child.ReviewedBy)
	assert.NotNil(t, child.ReviewedAt)

	require.Len(t, notifier.approved, 1)
	assert.True(t, notifier.approved[0])
	assert.Contains(t, audit.actions(), models.AuditActionChildApprove)
}

func TestRejectRecordsReason(t *testing.T) {
	repo := &mockChildStore{children: map[string]*models.Child{
		"c1": {ID: "c1", Status: models.ChildPending, ParentID: testGuardianID},
	}}
	guardians := &mockChildGuardians{byID: map[string]*models.Guardian{
		testGuardianID: {ID: testGuardianID},
	}}
	notifier := &mockReviewNotifier{}
	svc := NewChildService(repo, guardians, &mockAuditLog{}, notifier, validator.New(), zap.NewNop())

	child, err := svc.Reject(context.Background(), testActorID, "c1", models.ReviewChildRequest{Reason: "missing consent form"})
	require.NoError(t, err)
	assert.Equal(t, models.ChildRejected, child.Status)
	require.Len(t, notifier.reasons, 1)
	assert.Equal(t, "missing consent form", notifier.reasons[0])
}

func TestReviewAlreadyReviewed(t *testing.T) {
	repo := &mockChildStore{children: map[string]*models.Child{
		"c1": {ID: "c1", Status: models.ChildActive},
	}}
	svc := NewChildService(repo, &mockChildGuardians{}, &mockAuditLog{}, &mockReviewNotifier{}, validator.New(), zap.NewNop())

	_, err := svc.Approve(context.Background(), testActorID, "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
}

func TestSendBirthdayGreetings(t *testing.T) {
	repo := &mockChildStore{birthdays: []models.Child{
		{ID: "c1", FullName: "Grace M", ParentID: testGuardianID},
		{ID: "c2", FullName: "Orphaned Row", ParentID: "guardian-missing"},
	}}
	guardians := &mockChildGuardians{byID: map[string]*models.Guardian{
		testGuardianID: {ID: testGuardianID, Email: "ruth@example.com"},
	}}
	notifier := &mockReviewNotifier{}
	svc := NewChildService(repo, guardians, &mockAuditLog{}, notifier, validator.New(), zap.NewNop())

	sent, err := svc.SendBirthdayGreetings(context.Background(), time.Date(2026, 6, 4, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"c1"}, notifier.birthdayChilds)
	assert.Equal(t, []string{testGuardianID}, notifier.birthdayGuards)
}

func TestBirthdaysEmptyDay(t *testing.T) {
	svc := NewChildService(&mockChildStore{}, &mockChildGuardians{}, &mockAuditLog{}, &mockReviewNotifier{}, validator.New(), zap.NewNop())

	children, err := svc.Birthdays(context.Background(), time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotNil(t, children)
	assert.Empty(t, children)
}

func TestDeleteChildAudited(t *testing.T) {
	repo := &mockChildStore{children: map[string]*models.Child{
		"c1": {ID: "c1", Status: models.ChildActive},
	}}
	audit := &mockAuditLog{}
	svc := NewChildService(repo, &mockChildGuardians{}, audit, &mockReviewNotifier{}, validator.New(), zap.NewNop())

	err := svc.Delete(context.Background(), testActorID, "c1")
	require.NoError(t, err)
	assert.Contains(t, repo.deletedIDs, "c1")
	assert.Contains(t, audit.actions(), models.AuditActionChildDelete)
}
