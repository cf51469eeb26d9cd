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

type guardianRepository interface {
	List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, int, error)
	FindByID(ctx context.Context, id string) (*models.Guardian, error)
	FindByUserID(ctx context.Context, userID string) (*models.Guardian, error)
	FindByParentCode(ctx context.Context, code string) (*models.Guardian, error)
	ExistsByContact(ctx context.Context, email, phone string) (bool, error)
	ListForChild(ctx context.Context, childID string) ([]models.Guardian, error)
	Create(ctx context.Context, guardian *models.Guardian) error
	Update(ctx context.Context, guardian *models.Guardian) error
	LinkChild(ctx context.Context, link *models.ChildGuardian) error
	RevokeLink(ctx context.Context, childID, guardianID string) error
}

// GuardianConfig tunes guardian authorization windows.
type GuardianConfig struct {
	SecondaryAuthWindow time.Duration
}

// GuardianService manages guardian records and per-child authorization.
// Primary guardians never expire; secondary guardians carry a bounded
// window that can be renewed.
type GuardianService struct {
	repo      guardianRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	config    GuardianConfig
	now       func() time.Time
}

// NewGuardianService constructs a GuardianService.
func NewGuardianService(repo guardianRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, config GuardianConfig) *GuardianService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.SecondaryAuthWindow <= 0 {
		config.SecondaryAuthWindow = 90 * 24 * time.Hour
	}
	return &GuardianService{repo: repo, audit: audit, validator: validate, logger: logger, config: config, now: func() time.Time { return time.Now().UTC() }}
}

// List returns guardians matching the filter.
func (s *GuardianService) List(ctx context.Context, filter models.GuardianFilter) ([]models.Guardian, *models.Pagination, error) {
	guardians, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list guardians")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return guardians, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get fetches a single guardian.
func (s *GuardianService) Get(ctx context.Context, id string) (*models.Guardian, error) {
	guardian, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "guardian not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian")
	}
	return guardian, nil
}

// GetByUser returns the guardian profile linked to a user account.
func (s *GuardianService) GetByUser(ctx context.Context, userID string) (*models.Guardian, error) {
	guardian, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no guardian profile for user")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian")
	}
	return guardian, nil
}

// GetByCode looks a guardian up by their family code, the RSxxx value
// printed on registration cards. Desk staff use it when a parent arrives
// without a phone.
func (s *GuardianService) GetByCode(ctx context.Context, code string) (*models.Guardian, error) {
	guardian, err := s.repo.FindByParentCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no guardian with this code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian")
	}
	return guardian, nil
}

// ListForChild partitions a child's guardians into active and expired
// sets. Expired guardians are reported but never selectable for pickup.
func (s *GuardianService) ListForChild(ctx context.Context, childID string) (*models.GuardianPartition, error) {
	guardians, err := s.repo.ListForChild(ctx, childID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list guardians for child")
	}

	partition := &models.GuardianPartition{
		Active:  []models.Guardian{},
		Expired: []models.Guardian{},
	}
	now := s.now()
	for _, guardian := range guardians {
		if guardian.Expired(now) {
			partition.Expired = append(partition.Expired, guardian)
		} else {
			partition.Active = append(partition.Active, guardian)
		}
	}
	return partition, nil
}

// CreateSecondary registers a time-bounded secondary guardian for a
// child. Duplicate email or phone contacts are rejected.
func (s *GuardianService) CreateSecondary(ctx context.Context, actorID string, req models.CreateGuardianRequest) (*models.Guardian, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid guardian payload")
	}

	exists, err := s.repo.ExistsByContact(ctx, req.Email, req.Phone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check guardian contact")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a guardian with this email or phone already exists")
	}

	code, err := generateParentCode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create guardian code")
	}

	window := s.config.SecondaryAuthWindow
	if req.WindowDays > 0 {
		window = time.Duration(req.WindowDays) * 24 * time.Hour
	}
	expiry := s.now().Add(window)

	guardian := &models.Guardian{
		ParentCode:   code,
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Relationship: req.Relationship,
		IsPrimary:    false,
		ActiveUntil:  &expiry,
	}
	if err := s.repo.Create(ctx, guardian); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create guardian")
	}

	if err := s.repo.LinkChild(ctx, &models.ChildGuardian{
		ChildID:      req.ChildID,
		GuardianID:   guardian.ID,
		Relationship: req.Relationship,
		IsAuthorized: true,
		ExpiresAt:    &expiry,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link guardian to child")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionGuardianCreate,
		Resource:   "guardian",
		ResourceID: &guardian.ID,
		NewValues:  []byte(`{"child_id":"` + req.ChildID + `"}`),
	}); err != nil {
		s.logger.Warn("failed to record guardian create audit log", zap.Error(err))
	}

	return guardian, nil
}

// Renew extends a secondary guardian's authorization window from now.
// Primary guardians have nothing to renew.
func (s *GuardianService) Renew(ctx context.Context, actorID, id string, req models.RenewGuardianRequest) (*models.Guardian, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid renew payload")
	}

	guardian, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if guardian.IsPrimary {
		return nil, appErrors.Clone(appErrors.ErrConflict, "primary guardians never expire")
	}

	window := s.config.SecondaryAuthWindow
	if req.WindowDays > 0 {
		window = time.Duration(req.WindowDays) * 24 * time.Hour
	}
	expiry := s.now().Add(window)
	guardian.ActiveUntil = &expiry

	if err := s.repo.Update(ctx, guardian); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to renew guardian")
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionGuardianRenew,
		Resource:   "guardian",
		ResourceID: &guardian.ID,
		NewValues:  []byte(`{"active_until":"` + expiry.Format(time.RFC3339) + `"}`),
	}); err != nil {
		s.logger.Warn("failed to record guardian renew audit log", zap.Error(err))
	}

	return guardian, nil
}

// Revoke removes a guardian's authorization for a child.
func (s *GuardianService) Revoke(ctx context.Context, actorID, childID, guardianID string) error {
	if _, err := s.Get(ctx, guardianID); err != nil {
		return err
	}
	if err := s.repo.RevokeLink(ctx, childID, guardianID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke guardian link")
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionGuardianRevoke,
		Resource:   "guardian",
		ResourceID: &guardianID,
		NewValues:  []byte(`{"child_id":"` + childID + `"}`),
	}); err != nil {
		s.logger.Warn("failed to record guardian revoke audit log", zap.Error(err))
	}
	return nil
}
