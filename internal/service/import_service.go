package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/textutil"
)

type importStudentRepository interface {
	FindByNormalizedNames(ctx context.Context, userID string, names []string) ([]models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

// ImportConfig tunes roster imports.
type ImportConfig struct {
	Concurrency  int
	MaxFileBytes int64
}

// ImportService loads rosters from CSV or XLSX uploads.
type ImportService struct {
	repo    importStudentRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ImportConfig
}

// NewImportService constructs an ImportService.
func NewImportService(repo importStudentRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg ImportConfig) *ImportService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 5 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{repo: repo, cache: cache, metrics: metrics, logger: logger, cfg: cfg}
}

// MaxFileBytes reports the upload size limit.
func (s *ImportService) MaxFileBytes() int64 {
	return s.cfg.MaxFileBytes
}

type cleanRow struct {
	row        int
	name       string
	normalized string
	age        int
	gender     string
	phone      string
}

// Import parses the upload and creates or updates one student per unique name.
// Rows fail independently; the result reports what was skipped and why.
func (s *ImportService) Import(ctx context.Context, userID, filename string, r io.Reader) (*models.ImportResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxFileBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
	if int64(len(data)) > s.cfg.MaxFileBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxFileBytes))
	}

	rows, err := ParseRoster(filename, data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	result := &models.ImportResult{TotalRecords: len(rows), SkippedRecordsDetails: []models.SkippedRecord{}}
	cleaned := make([]cleanRow, 0, len(rows))
	for _, row := range rows {
		c, reason := clean(row)
		if reason != "" {
			skipRecord(result, row.Row, strings.TrimSpace(row.Name), reason)
			continue
		}
		cleaned = append(cleaned, c)
	}
	result.CleanedRecords = len(cleaned)

	unique := dedupe(cleaned, result)
	result.UniqueRecords = len(unique)

	existing, err := s.existingByName(ctx, userID, unique)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, row := range unique {
		row := row
		g.Go(func() error {
			err := s.upsert(gctx, userID, row, existing[row.normalized])
			mu.Lock()
			defer mu.Unlock()
			result.ProcessedRecords++
			if err != nil {
				skipRecord(result, row.row, row.name, err.Error())
				return nil
			}
			result.ImportedOrUpdatedRecords++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(result.SkippedRecordsDetails, func(i, j int) bool {
		return result.SkippedRecordsDetails[i].Row < result.SkippedRecordsDetails[j].Row
	})

	if result.ImportedOrUpdatedRecords > 0 {
		if err := s.cache.InvalidateUser(ctx, userID); err != nil {
			s.logger.Warn("import cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	s.metrics.ObserveImport(result.ImportedOrUpdatedRecords, result.SkippedRecords)
	s.logger.Info("roster imported",
		zap.String("user_id", userID),
		zap.Int("total", result.TotalRecords),
		zap.Int("imported", result.ImportedOrUpdatedRecords),
		zap.Int("skipped", result.SkippedRecords),
	)
	return result, nil
}

func (s *ImportService) existingByName(ctx context.Context, userID string, rows []cleanRow) (map[string]models.Student, error) {
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.normalized
	}
	students, err := s.repo.FindByNormalizedNames(ctx, userID, names)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing students")
	}
	byName := make(map[string]models.Student, len(students))
	for _, st := range students {
		byName[st.NormalizedName] = st
	}
	return byName, nil
}

func (s *ImportService) upsert(ctx context.Context, userID string, row cleanRow, existing models.Student) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	student := existing
	student.UserID = userID
	student.Name = row.name
	student.NormalizedName = row.normalized
	student.Age = row.age
	student.Gender = row.gender
	student.PhoneNumber = row.phone

	if student.ID != "" {
		if err := s.repo.Update(ctx, &student); err != nil {
			s.logger.Debug("import update failed", zap.Int("row", row.row), zap.Error(err))
			return errors.New("failed to update student")
		}
		return nil
	}

	err := s.repo.Create(ctx, &student)
	if errors.Is(err, repository.ErrDuplicate) {
		// created concurrently since the prefetch; fall back to updating it
		found, findErr := s.repo.FindByNormalizedNames(ctx, userID, []string{row.normalized})
		if findErr == nil && len(found) == 1 {
			student.ID = found[0].ID
			student.CreatedAt = found[0].CreatedAt
			err = s.repo.Update(ctx, &student)
		}
	}
	if err != nil {
		s.logger.Debug("import create failed", zap.Int("row", row.row), zap.Error(err))
		return errors.New("failed to create student")
	}
	return nil
}

func skipRecord(result *models.ImportResult, row int, name, reason string) {
	result.SkippedRecords++
	result.SkippedRecordsDetails = append(result.SkippedRecordsDetails, models.SkippedRecord{Row: row, Name: name, Reason: reason})
}

// clean trims a parsed row and validates it. A non-empty reason means the row is skipped.
func clean(row models.ImportRow) (cleanRow, string) {
	name := strings.Join(strings.Fields(row.Name), " ")
	if name == "" {
		return cleanRow{}, "missing name"
	}
	age := 0
	if raw := strings.TrimSpace(row.Age); raw != "" {
		parsed, err := strconv.Atoi(strings.TrimSuffix(raw, ".0"))
		if err != nil || parsed < 0 || parsed > 150 {
			return cleanRow{}, "invalid age"
		}
		age = parsed
	}
	return cleanRow{
		row:        row.Row,
		name:       name,
		normalized: textutil.NormalizeName(name),
		age:        age,
		gender:     strings.TrimSpace(row.Gender),
		phone:      strings.TrimSpace(row.PhoneNumber),
	}, ""
}

// dedupe keeps the last row per normalised name and records the earlier ones as skipped.
func dedupe(rows []cleanRow, result *models.ImportResult) []cleanRow {
	last := make(map[string]int, len(rows))
	for i, row := range rows {
		last[row.normalized] = i
	}
	unique := make([]cleanRow, 0, len(last))
	for i, row := range rows {
		if keep := last[row.normalized]; keep != i {
			skipRecord(result, row.row, row.name, fmt.Sprintf("duplicate of row %d", rows[keep].row))
			continue
		}
		unique = append(unique, row)
	}
	return unique
}
