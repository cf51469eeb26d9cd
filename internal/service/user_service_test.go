package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/covenantkids/checkin-api/internal/models"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
)

type mockUserRepo struct {
	users   map[string]*models.User
	byEmail map[string]*models.User
	deleted []string
	audits  []*models.AuditLog
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:   make(map[string]*models.User),
		byEmail: make(map[string]*models.User),
	}
}

func (m *mockUserRepo) add(user *models.User) {
	m.users[user.ID] = user
	m.byEmail[user.Email] = user
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	m.add(user)
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

func TestUserServiceCreate(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Create(context.Background(), models.CreateUserRequest{
		Email:    "Teacher@Example.com",
		Password: "secret123",
		FullName: "Grace Teacher",
		Role:     models.RoleTeacher,
	}, testActorID)
	require.NoError(t, err)

	assert.Equal(t, "teacher@example.com", user.Email)
	assert.Equal(t, models.RoleTeacher, user.Role)
	assert.True(t, user.Active)
	assert.NotEmpty(t, user.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))

	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.audits[0].Action)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(&models.User{ID: "u-1", Email: "taken@example.com", Role: models.RoleTeacher})
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Create(context.Background(), models.CreateUserRequest{
		Email:    "taken@example.com",
		Password: "secret123",
		FullName: "Dup",
		Role:     models.RoleTeacher,
	}, testActorID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateInvalidRole(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil)

	_, err := svc.Create(context.Background(), models.CreateUserRequest{
		Email:    "new@example.com",
		Password: "secret123",
		FullName: "New",
		Role:     models.UserRole("SUPERUSER"),
	}, testActorID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateAppliesPartialFields(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(&models.User{ID: "u-1", Email: "t@example.com", FullName: "Old Name", Role: models.RoleTeacher, Active: true})
	svc := NewUserService(repo, nil, nil)

	newRole := models.RoleAdmin
	user, err := svc.Update(context.Background(), "u-1", models.UpdateUserRequest{Role: &newRole}, testActorID)
	require.NoError(t, err)

	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Equal(t, "Old Name", user.FullName)

	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionUserUpdate, repo.audits[0].Action)
}

func TestUserServiceUpdateUnknownUser(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil)

	name := "Nobody"
	_, err := svc.Update(context.Background(), "missing", models.UpdateUserRequest{FullName: &name}, testActorID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeactivate(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(&models.User{ID: "u-1", Email: "t@example.com", Role: models.RoleTeacher, Active: true})
	svc := NewUserService(repo, nil, nil)

	require.NoError(t, svc.Deactivate(context.Background(), "u-1", testActorID))

	assert.Equal(t, []string{"u-1"}, repo.deleted)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionUserDelete, repo.audits[0].Action)
}

func TestUserServiceListDefaultsPagination(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(&models.User{ID: "u-1", Email: "a@example.com", Role: models.RoleTeacher})
	svc := NewUserService(repo, nil, nil)

	users, pagination, err := svc.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)

	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}
