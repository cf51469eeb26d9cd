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

type childRepository interface {
	List(ctx context.Context, filter models.ChildFilter) ([]models.Child, int, error)
	FindByID(ctx context.Context, id string) (*models.Child, error)
	CountByParent(ctx context.Context, parentID string) (int, error)
	ListBirthdays(ctx context.Context, month, day int) ([]models.Child, error)
	Create(ctx context.Context, child *models.Child) error
	Update(ctx context.Context, child *models.Child) error
	Delete(ctx context.Context, id string) error
}

type childGuardianRepository interface {
	FindByID(ctx context.Context, id string) (*models.Guardian, error)
	FindByUserID(ctx context.Context, userID string) (*models.Guardian, error)
	LinkChild(ctx context.Context, link *models.ChildGuardian) error
}

type childNotifier interface {
	NotifyRegistrationReviewed(ctx context.Context, child *models.Child, guardian *models.Guardian, approved bool, reason string)
	NotifyBirthday(ctx context.Context, child *models.Child, guardian *models.Guardian)
}

// ChildService owns the registration approval workflow. Parent
// submissions land as pending and only admins move them to active or
// rejected.
type ChildService struct {
	repo      childRepository
	guardians childGuardianRepository
	audit     auditRecorder
	notifier  childNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChildService constructs a ChildService.
func NewChildService(repo childRepository, guardians childGuardianRepository, audit auditRecorder, notifier childNotifier, validate *validator.Validate, logger *zap.Logger) *ChildService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ChildService{repo: repo, guardians: guardians, audit: audit, notifier: notifier, validator: validate, logger: logger}
}

// List returns children matching the filter with pagination metadata.
func (s *ChildService) List(ctx context.Context, filter models.ChildFilter) ([]models.Child, *models.Pagination, error) {
	children, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list children")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return children, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get fetches a single child.
func (s *ChildService) Get(ctx context.Context, id string) (*models.Child, error) {
	child, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}
	return child, nil
}

// Submit registers a child on behalf of the submitting user's guardian
// profile. The record starts pending and carries a registration ID
// derived from the guardian's parent code and child ordinal.
func (s *ChildService) Submit(ctx context.Context, submitterUserID string, req models.CreateChildRequest) (*models.Child, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid child payload")
	}

	guardian, err := s.guardians.FindByUserID(ctx, submitterUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no guardian profile linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load guardian profile")
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date_of_birth must be YYYY-MM-DD")
	}

	count, err := s.repo.CountByParent(ctx, guardian.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive registration id")
	}

	now := time.Now().UTC()
	child := &models.Child{
		RegistrationID: models.FormatRegistrationID(guardian.ParentCode, count+1),
		FullName:       req.FullName,
		DateOfBirth:    dob,
		Gender:         req.Gender,
		GroupID:        req.GroupID,
		ParentID:       guardian.ID,
		Status:         models.ChildPending,
		Notes:          req.Notes,
		SubmittedBy:    submitterUserID,
		SubmittedAt:    now,
	}
	if err := s.repo.Create(ctx, child); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create child")
	}

	if err := s.guardians.LinkChild(ctx, &models.ChildGuardian{
		ChildID:      child.ID,
		GuardianID:   guardian.ID,
		Relationship: guardian.Relationship,
		IsAuthorized: true,
	}); err != nil {
		s.logger.Warn("failed to link submitting guardian", zap.Error(err), zap.String("child_id", child.ID))
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &submitterUserID,
		Action:     models.AuditActionChildSubmit,
		Resource:   "child",
		ResourceID: &child.ID,
		NewValues:  []byte(`{"status":"pending"}`),
	}); err != nil {
		s.logger.Warn("failed to record child submit audit log", zap.Error(err))
	}

	return child, nil
}

// Update applies partial updates to a child record.
func (s *ChildService) Update(ctx context.Context, id string, req models.UpdateChildRequest) (*models.Child, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid child payload")
	}

	child, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		child.FullName = *req.FullName
	}
	if req.Gender != nil {
		child.Gender = *req.Gender
	}
	if req.GroupID != nil {
		child.GroupID = req.GroupID
	}
	if req.Notes != nil {
		child.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, child); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update child")
	}
	return child, nil
}

// Approve moves a pending registration to active.
func (s *ChildService) Approve(ctx context.Context, reviewerID, id string) (*models.Child, error) {
	return s.review(ctx, reviewerID, id, true, "")
}

// Reject moves a pending registration to rejected.
func (s *ChildService) Reject(ctx context.Context, reviewerID, id string, req models.ReviewChildRequest) (*models.Child, error) {
	return s.review(ctx, reviewerID, id, false, req.Reason)
}

func (s *ChildService) review(ctx context.Context, reviewerID, id string, approve bool, reason string) (*models.Child, error) {
	child, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if child.Status != models.ChildPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "registration has already been reviewed")
	}

	now := time.Now().UTC()
	child.ReviewedBy = &reviewerID
	child.ReviewedAt = &now
	action := models.AuditActionChildApprove
	if approve {
		child.Status = models.ChildActive
	} else {
		child.Status = models.ChildRejected
		action = models.AuditActionChildReject
	}

	if err := s.repo.Update(ctx, child); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update child")
	}

	if guardian, err := s.guardians.FindByID(ctx, child.ParentID); err == nil && s.notifier != nil {
		s.notifier.NotifyRegistrationReviewed(ctx, child, guardian, approve, reason)
	}

	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &reviewerID,
		Action:     action,
		Resource:   "child",
		ResourceID: &child.ID,
		NewValues:  []byte(`{"status":"` + string(child.Status) + `"}`),
	}); err != nil {
		s.logger.Warn("failed to record review audit log", zap.Error(err))
	}

	return child, nil
}

// Birthdays lists active children whose birthday falls on the given day.
func (s *ChildService) Birthdays(ctx context.Context, on time.Time) ([]models.Child, error) {
	children, err := s.repo.ListBirthdays(ctx, int(on.Month()), on.Day())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list birthdays")
	}
	if children == nil {
		children = []models.Child{}
	}
	return children, nil
}

// SendBirthdayGreetings notifies the primary guardian of every child
// whose birthday falls on the given day and returns how many greetings
// went out. Guardians that fail to load are skipped, not fatal.
func (s *ChildService) SendBirthdayGreetings(ctx context.Context, on time.Time) (int, error) {
	children, err := s.Birthdays(ctx, on)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range children {
		guardian, err := s.guardians.FindByID(ctx, children[i].ParentID)
		if err != nil {
			s.logger.Warn("failed to load guardian for birthday greeting",
				zap.Error(err), zap.String("child_id", children[i].ID))
			continue
		}
		if s.notifier != nil {
			s.notifier.NotifyBirthday(ctx, &children[i], guardian)
			sent++
		}
	}
	return sent, nil
}

// Delete removes a child record. Admin only; workflows never delete.
func (s *ChildService) Delete(ctx context.Context, actorID, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete child")
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionChildDelete,
		Resource:   "child",
		ResourceID: &id,
	}); err != nil {
		s.logger.Warn("failed to record child delete audit log", zap.Error(err))
	}
	return nil
}
