package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
)

var studentRowColumns = []string{"id", "user_id", "name", "normalized_name", "age", "gender", "phone_number", "created_at", "updated_at"}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("s1", "u1", "John Doe", "doe john", 12, "male", "0812", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + studentColumns + " FROM students WHERE user_id = $1 ORDER BY name ASC")).
		WithArgs("u1").
		WillReturnRows(rows)

	students, err := repo.List(context.Background(), "u1", models.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "doe john", students[0].NormalizedName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListByName(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE user_id = $1 AND normalized_name = $2 ORDER BY name ASC")).
		WithArgs("u1", "doe john").
		WillReturnRows(sqlmock.NewRows(studentRowColumns))

	students, err := repo.List(context.Background(), "u1", models.StudentFilter{Name: "doe john"})
	require.NoError(t, err)
	assert.Empty(t, students)
	assert.NotNil(t, students)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByNormalizedNames(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	students, err := repo.FindByNormalizedNames(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Empty(t, students)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("normalized_name = ANY($2)")).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(studentRowColumns).AddRow("s1", "u1", "Ada", "ada", 10, "", "", now, now))

	students, err = repo.FindByNormalizedNames(context.Background(), "u1", []string{"ada", "bob"})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), "u1", "John Doe", "doe john", 12, "male", "0812", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{UserID: "u1", Name: "John Doe", NormalizedName: "doe john", Age: 12, Gender: "male", PhoneNumber: "0812"}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &models.Student{UserID: "u1", Name: "John", NormalizedName: "john"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestStudentRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE students SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Student{ID: "s1", UserID: "u1", Name: "John", NormalizedName: "john"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
