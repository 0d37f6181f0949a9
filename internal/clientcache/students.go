package clientcache

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/localcache"
	"github.com/noah-isme/attendance-api/internal/models"
)

type studentAPI interface {
	ListStudents(ctx context.Context, name string) ([]models.Student, error)
	UpdateStudent(ctx context.Context, id string, req models.UpdateStudentRequest) (*models.Student, error)
}

// StudentService caches the roster.
type StudentService struct {
	api    studentAPI
	store  *localcache.Store
	logger *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(api studentAPI, store *localcache.Store, logger *zap.Logger) *StudentService {
	return &StudentService{api: api, store: store, logger: orNop(logger)}
}

// GetStudents returns the whole roster.
func (s *StudentService) GetStudents(ctx context.Context) ([]models.Student, error) {
	return cached(ctx, s.store, s.logger, KeyStudents, StudentsTTL, func(ctx context.Context) ([]models.Student, error) {
		students, err := s.api.ListStudents(ctx, "")
		if students == nil && err == nil {
			students = []models.Student{}
		}
		return students, err
	})
}

// UpdateStudent edits a student and drops the cached roster.
func (s *StudentService) UpdateStudent(ctx context.Context, id string, req models.UpdateStudentRequest) (*models.Student, error) {
	student, err := s.api.UpdateStudent(ctx, id, req)
	if err != nil {
		return nil, err
	}
	_ = s.InvalidateCache(ctx)
	return student, nil
}

// InvalidateCache drops the cached roster.
func (s *StudentService) InvalidateCache(ctx context.Context) error {
	return remove(ctx, s.store, s.logger, KeyStudents)
}
