package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/textutil"
)

type studentRepository interface {
	List(ctx context.Context, userID string, filter models.StudentFilter) ([]models.Student, error)
	FindByID(ctx context.Context, userID, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

// StudentService handles roster use-cases.
type StudentService struct {
	repo      studentRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns the roster. A non-empty name restricts it to the student with that normalised name.
func (s *StudentService) List(ctx context.Context, userID, name string) ([]models.Student, error) {
	filter := models.StudentFilter{}
	if strings.TrimSpace(name) != "" {
		filter.Name = textutil.NormalizeName(name)
	}
	students, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// Get returns one student of the roster.
func (s *StudentService) Get(ctx context.Context, userID, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a student. Names are unique per roster after normalisation.
func (s *StudentService) Create(ctx context.Context, userID string, req models.CreateStudentRequest) (*models.Student, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student := &models.Student{
		UserID:         userID,
		Name:           req.Name,
		NormalizedName: textutil.NormalizeName(req.Name),
		Age:            req.Age,
		Gender:         strings.TrimSpace(req.Gender),
		PhoneNumber:    strings.TrimSpace(req.PhoneNumber),
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.invalidate(ctx, userID)
	return student, nil
}

// Update edits a student. Nil request fields are left unchanged.
func (s *StudentService) Update(ctx context.Context, userID, id string, req models.UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "name must not be blank")
		}
		student.Name = name
		student.NormalizedName = textutil.NormalizeName(name)
	}
	if req.Age != nil {
		student.Age = *req.Age
	}
	if req.Gender != nil {
		student.Gender = strings.TrimSpace(*req.Gender)
	}
	if req.PhoneNumber != nil {
		student.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
	}

	if err := s.repo.Update(ctx, student); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this name already exists")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.invalidate(ctx, userID)
	return student, nil
}

func (s *StudentService) invalidate(ctx context.Context, userID string) {
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("student cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}
