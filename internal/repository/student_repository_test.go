package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
)

var studentColumnNames = []string{"id", "carnet", "full_name", "email", "phone", "student_type", "password_hash", "active", "created_at", "updated_at"}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentColumnNames).
		AddRow("stu-1", "2025-001", "Ana López", "ana@example.com", nil, string(models.StudentTypeInternal), "hash", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + studentColumns + " FROM students WHERE (LOWER(full_name) LIKE $1 OR LOWER(carnet) LIKE $1) AND student_type = $2 ORDER BY full_name ASC LIMIT 10 OFFSET 10")).
		WithArgs("%ana%", models.StudentTypeInternal).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE (LOWER(full_name) LIKE $1 OR LOWER(carnet) LIKE $1) AND student_type = $2")).
		WithArgs("%ana%", models.StudentTypeInternal).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Search: "Ana", StudentType: models.StudentTypeInternal, Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "2025-001", students[0].Carnet)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByCarnet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE carnet = $1 LIMIT 1")).
		WithArgs("2025-404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByCarnet(context.Background(), "2025-404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), "2025-002", "Luis Gómez", nil, nil, models.StudentTypeExternal, "hash", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{Carnet: "2025-002", FullName: "Luis Gómez", StudentType: models.StudentTypeExternal, PasswordHash: "hash", Active: true}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.False(t, student.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
