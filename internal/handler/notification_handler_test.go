package handler

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/covenantkids/checkin-api/internal/middleware"
	"github.com/covenantkids/checkin-api/internal/models"
	"github.com/covenantkids/checkin-api/internal/service"
)

type stubNotificationRepo struct {
	lastFilter models.NotificationFilter
	byID       map[string]*models.Notification
	markedRead []string
	allRead    []string
}

func (s *stubNotificationRepo) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	s.lastFilter = filter
	return nil, 0, nil
}

func (s *stubNotificationRepo) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	notification, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return notification, nil
}

func (s *stubNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	return nil
}

func (s *stubNotificationRepo) MarkRead(ctx context.Context, id string, at time.Time) error {
	s.markedRead = append(s.markedRead, id)
	return nil
}

func (s *stubNotificationRepo) MarkAllRead(ctx context.Context, guardianID, userID string, at time.Time) error {
	s.allRead = append(s.allRead, guardianID+":"+userID)
	return nil
}

func (s *stubNotificationRepo) UpdateDelivery(ctx context.Context, id string, emailSent, smsSent bool, status string) error {
	return nil
}

// stubGuardianDirectory backs the guardian lookup that maps a user
// account to its guardian profile.
type stubGuardianDirectory struct {
	byUserID map[string]*models.Guardian
}

func (s *stubGuardianDirectory) List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, int, error) {
	return nil, 0, nil
}

func (s *stubGuardianDirectory) FindByID(ctx context.Context, id string) (*models.Guardian, error) {
	return nil, sql.ErrNoRows
}

func (s *stubGuardianDirectory) FindByUserID(ctx context.Context, userID string) (*models.Guardian, error) {
	guardian, ok := s.byUserID[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return guardian, nil
}

func (s *stubGuardianDirectory) FindByParentCode(ctx context.Context, code string) (*models.Guardian, error) {
	return nil, sql.ErrNoRows
}

func (s *stubGuardianDirectory) ExistsByContact(ctx context.Context, email, phone string) (bool, error) {
	return false, nil
}

func (s *stubGuardianDirectory) ListForChild(ctx context.Context, childID string) ([]models.Guardian, error) {
	return nil, nil
}

func (s *stubGuardianDirectory) Create(ctx context.Context, guardian *models.Guardian) error {
	return nil
}

func (s *stubGuardianDirectory) Update(ctx context.Context, guardian *models.Guardian) error {
	return nil
}

func (s *stubGuardianDirectory) LinkChild(ctx context.Context, link *models.ChildGuardian) error {
	return nil
}

func (s *stubGuardianDirectory) RevokeLink(ctx context.Context, childID, guardianID string) error {
	return nil
}

func newNotificationHandler(repo *stubNotificationRepo, guardians *stubGuardianDirectory) *NotificationHandler {
	notificationSvc := service.NewNotificationService(repo, nil, nil, nil, service.NotificationConfig{Enabled: true})
	guardianSvc := service.NewGuardianService(guardians, &stubAudit{}, nil, nil, service.GuardianConfig{})
	return NewNotificationHandler(notificationSvc, guardianSvc)
}

func parentClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-parent", Role: models.RoleParent}
}

func TestNotificationListResolvesGuardianFromToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &stubNotificationRepo{}
	guardians := &stubGuardianDirectory{byUserID: map[string]*models.Guardian{
		"user-parent": {ID: handlerGuardianID, ParentCode: "RS073"},
	}}
	handler := newNotificationHandler(repo, guardians)

	c, w := newGinContext(http.MethodGet, "/notifications", nil)
	c.Set(middleware.ContextUserKey, parentClaims())

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, handlerGuardianID, repo.lastFilter.GuardianID)
	require.Equal(t, "user-parent", repo.lastFilter.UserID)
}

func TestNotificationListIgnoresGuardianQueryParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &stubNotificationRepo{}
	guardians := &stubGuardianDirectory{byUserID: map[string]*models.Guardian{
		"user-parent": {ID: handlerGuardianID},
	}}
	handler := newNotificationHandler(repo, guardians)

	c, w := newGinContext(http.MethodGet, "/notifications?guardian_id=guardian-other", nil)
	c.Set(middleware.ContextUserKey, parentClaims())

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, handlerGuardianID, repo.lastFilter.GuardianID)
}

func TestNotificationListStaffWithoutGuardianProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &stubNotificationRepo{}
	handler := newNotificationHandler(repo, &stubGuardianDirectory{})

	c, w := newGinContext(http.MethodGet, "/notifications", nil)
	c.Set(middleware.ContextUserKey, staffClaims())

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, repo.lastFilter.GuardianID)
	require.Equal(t, "teacher-1", repo.lastFilter.UserID)
}

func TestNotificationMarkReadForeignRecipient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	other := "guardian-other"
	repo := &stubNotificationRepo{byID: map[string]*models.Notification{
		"n1": {ID: "n1", GuardianID: &other},
	}}
	guardians := &stubGuardianDirectory{byUserID: map[string]*models.Guardian{
		"user-parent": {ID: handlerGuardianID},
	}}
	handler := newNotificationHandler(repo, guardians)

	c, w := newGinContext(http.MethodPost, "/notifications/n1/read", nil)
	c.Params = gin.Params{{Key: "id", Value: "n1"}}
	c.Set(middleware.ContextUserKey, parentClaims())

	handler.MarkRead(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, repo.markedRead)
}

func TestNotificationMarkReadOwned(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mine := handlerGuardianID
	repo := &stubNotificationRepo{byID: map[string]*models.Notification{
		"n1": {ID: "n1", GuardianID: &mine},
	}}
	guardians := &stubGuardianDirectory{byUserID: map[string]*models.Guardian{
		"user-parent": {ID: handlerGuardianID},
	}}
	handler := newNotificationHandler(repo, guardians)

	c, w := newGinContext(http.MethodPost, "/notifications/n1/read", nil)
	c.Params = gin.Params{{Key: "id", Value: "n1"}}
	c.Set(middleware.ContextUserKey, parentClaims())

	handler.MarkRead(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, []string{"n1"}, repo.markedRead)
}

func TestNotificationMarkAllReadScopedToCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &stubNotificationRepo{}
	guardians := &stubGuardianDirectory{byUserID: map[string]*models.Guardian{
		"user-parent": {ID: handlerGuardianID},
	}}
	handler := newNotificationHandler(repo, guardians)

	c, w := newGinContext(http.MethodPost, "/notifications/read-all", nil)
	c.Set(middleware.ContextUserKey, parentClaims())

	handler.MarkAllRead(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, []string{handlerGuardianID + ":user-parent"}, repo.allRead)
}
