package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/attendance-api/internal/models"
)

const studentColumns = `id, user_id, name, normalized_name, age, gender, phone_number, created_at, updated_at`

// StudentRepository manages persistence for student records. Every query is scoped to one user.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns the user's students ordered by name.
func (r *StudentRepository) List(ctx context.Context, userID string, filter models.StudentFilter) ([]models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE user_id = $1`
	args := []interface{}{userID}
	if filter.Name != "" {
		query += fmt.Sprintf(" AND normalized_name = $%d", len(args)+1)
		args = append(args, filter.Name)
	}
	query += " ORDER BY name ASC"

	students := make([]models.Student, 0)
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student owned by the user.
func (r *StudentRepository) FindByID(ctx context.Context, userID, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE user_id = $1 AND id = $2`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// FindByNormalizedNames returns the user's students whose normalised name is in the list.
func (r *StudentRepository) FindByNormalizedNames(ctx context.Context, userID string, names []string) ([]models.Student, error) {
	students := make([]models.Student, 0)
	if len(names) == 0 {
		return students, nil
	}
	query := `SELECT ` + studentColumns + ` FROM students WHERE user_id = $1 AND normalized_name = ANY($2)`
	if err := r.db.SelectContext(ctx, &students, query, userID, pq.Array(names)); err != nil {
		return nil, fmt.Errorf("find students by name: %w", err)
	}
	return students, nil
}

// Create inserts a new student. A name already on the roster yields ErrDuplicate.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, user_id, name, normalized_name, age, gender, phone_number, created_at, updated_at)
        VALUES (:id, :user_id, :name, :normalized_name, :age, :gender, :phone_number, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student. sql.ErrNoRows is returned when nothing matched.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, normalized_name = :normalized_name, age = :age, gender = :gender, phone_number = :phone_number, updated_at = :updated_at
        WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update student rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
