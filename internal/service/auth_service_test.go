package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/covenantkids/checkin-api/internal/models"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	userByID         *models.User
	findByEmailErr   error
	refreshTokens    map[string]*models.RefreshToken
	auditLogs        []*models.AuditLog
	lastLoginUpdated bool
	revokedUserIDs   []string
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail != nil {
		return m.userByEmail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.userByEmail != nil && m.userByEmail.ID == id {
		m.userByEmail.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUserIDs = append(m.revokedUserIDs, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockPendingStore struct {
	sessions map[string]*models.PendingAuth
	findErr  error
	deleted  []string
}

func (m *mockPendingStore) StorePendingAuth(ctx context.Context, mfaToken string, pending *models.PendingAuth, ttl time.Duration) error {
	if m.sessions == nil {
		m.sessions = make(map[string]*models.PendingAuth)
	}
	m.sessions[mfaToken] = pending
	return nil
}

func (m *mockPendingStore) FindPendingAuth(ctx context.Context, mfaToken string) (*models.PendingAuth, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	pending, ok := m.sessions[mfaToken]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrCodeExpired, "mfa session not found")
	}
	return pending, nil
}

func (m *mockPendingStore) DeletePendingAuth(ctx context.Context, mfaToken string) error {
	m.deleted = append(m.deleted, mfaToken)
	delete(m.sessions, mfaToken)
	return nil
}

type mockDispatcher struct {
	otps []string
}

func (m *mockDispatcher) DispatchLoginOTP(ctx context.Context, user *models.User, otp string) {
	m.otps = append(m.otps, otp)
}

func newAuthService(repo *mockAuthRepo, pending *mockPendingStore, dispatcher *mockDispatcher) *AuthService {
	return NewAuthService(repo, pending, dispatcher, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		MFAOTPExpiry:       10 * time.Minute,
		OTPLength:          6,
	})
}

func TestAuthLoginOpensPendingSession(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "parent@example.com", PasswordHash: string(password), Active: true, Role: models.RoleParent}}
	pending := &mockPendingStore{}
	dispatcher := &mockDispatcher{}
	svc := newAuthService(repo, pending, dispatcher)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "parent@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.MFAToken)
	require.Len(t, dispatcher.otps, 1)
	assert.Len(t, dispatcher.otps[0], 6)

	stored, ok := pending.sessions[res.MFAToken]
	require.True(t, ok)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, dispatcher.otps[0], stored.OTP)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "parent@example.com", PasswordHash: string(password), Active: false}}
	svc := newAuthService(repo, &mockPendingStore{}, &mockDispatcher{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "parent@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthVerifyMFAIssuesTokens(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "parent@example.com", Active: true, Role: models.RoleParent}}
	pending := &mockPendingStore{sessions: map[string]*models.PendingAuth{
		"handle": {UserID: "u1", Email: "parent@example.com", OTP: "482913"},
	}}
	svc := newAuthService(repo, pending, &mockDispatcher{})

	res, err := svc.VerifyMFA(context.Background(), models.VerifyMFARequest{MFAToken: "handle", OTP: "482913"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "u1", res.User.ID)
	assert.Contains(t, pending.deleted, "handle")
	assert.True(t, repo.lastLoginUpdated)

	require.NotEmpty(t, repo.auditLogs)
	assert.Equal(t, models.AuditActionMFAVerify, repo.auditLogs[0].Action)
}

func TestAuthVerifyMFANormalizesOTP(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Email: "parent@example.com", Active: true}}
	pending := &mockPendingStore{sessions: map[string]*models.PendingAuth{
		"handle": {UserID: "u1", OTP: "123456"},
	}}
	svc := newAuthService(repo, pending, &mockDispatcher{})

	res, err := svc.VerifyMFA(context.Background(), models.VerifyMFARequest{MFAToken: "handle", OTP: "12a3456789"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
}

func TestAuthVerifyMFAWrongCode(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", Active: true}}
	pending := &mockPendingStore{sessions: map[string]*models.PendingAuth{
		"handle": {UserID: "u1", OTP: "482913"},
	}}
	svc := newAuthService(repo, pending, &mockDispatcher{})

	_, err := svc.VerifyMFA(context.Background(), models.VerifyMFARequest{MFAToken: "handle", OTP: "000000"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	assert.Empty(t, pending.deleted)
}

func TestAuthVerifyMFAExpiredSession(t *testing.T) {
	repo := &mockAuthRepo{}
	pending := &mockPendingStore{}
	svc := newAuthService(repo, pending, &mockDispatcher{})

	_, err := svc.VerifyMFA(context.Background(), models.VerifyMFARequest{MFAToken: "gone", OTP: "482913"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCodeExpired.Code, appErrors.FromError(err).Code)
}

func TestAuthRefreshTokenRotates(t *testing.T) {
	user := &models.User{ID: "u1", Email: "parent@example.com", Active: true, Role: models.RoleParent}
	repo := &mockAuthRepo{userByID: user, refreshTokens: map[string]*models.RefreshToken{
		"old": {ID: "rt1", UserID: "u1", Token: "old", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(repo, &mockPendingStore{}, &mockDispatcher{})

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "old", res.RefreshToken)
	assert.True(t, repo.refreshTokens["old"].Revoked)
}

func TestAuthRefreshTokenRevoked(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"old": {ID: "rt1", UserID: "u1", Token: "old", Revoked: true, ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthService(repo, &mockPendingStore{}, &mockDispatcher{})

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthChangePassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("old-secret"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u1", PasswordHash: string(oldHash), Active: true}}
	svc := newAuthService(repo, &mockPendingStore{}, &mockDispatcher{})

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "old-secret", NewPassword: "new-secret"})
	require.NoError(t, err)
	assert.NotEqual(t, string(oldHash), repo.userByEmail.PasswordHash)
	assert.Contains(t, repo.revokedUserIDs, "u1")
}

func TestAuthValidateToken(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo, &mockPendingStore{}, &mockDispatcher{})
	user := &models.User{ID: "u1", Email: "parent@example.com", Role: models.RoleParent}

	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleParent, claims.Role)

	_, err = svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.True(t, errors.As(err, new(*appErrors.Error)))
}
