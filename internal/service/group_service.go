package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/covenantkids/checkin-api/internal/models"
	appErrors "github.com/covenantkids/checkin-api/pkg/errors"
)

type groupRepository interface {
	List(ctx context.Context) ([]models.Group, error)
	FindByID(ctx context.Context, id string) (*models.Group, error)
	Create(ctx context.Context, group *models.Group) error
}

// GroupService manages ministry class groups.
type GroupService struct {
	repo      groupRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService creates an instance of GroupService.
func NewGroupService(repo groupRepository, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GroupService{repo: repo, validator: validate, logger: logger}
}

// List returns all groups.
func (s *GroupService) List(ctx context.Context) ([]models.Group, error) {
	groups, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// Get returns a group by ID.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// Create adds a new group.
func (s *GroupService) Create(ctx context.Context, req models.CreateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}

	group := &models.Group{
		ID:     uuid.NewString(),
		Name:   req.Name,
		Room:   req.Room,
		AgeMin: req.AgeMin,
		AgeMax: req.AgeMax,
	}

	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}

	return group, nil
}
