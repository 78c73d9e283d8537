package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
)

func TestWithEnrollmentLockCommits(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	store := NewEnrollmentStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e WHERE e.id = $1 FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRow(sqlmock.NewRows(enrollmentRowColumns), "enr-1", "0.00", "2565.00", models.EnrollmentStatusPendingPayment))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments p WHERE p.enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithEnrollmentLock(context.Background(), "enr-1", func(tx EnrollmentTx) error {
		payments, err := tx.ListPayments(context.Background())
		if err != nil {
			return err
		}
		assert.Empty(t, payments)
		e := tx.Enrollment()
		e.TotalPaid = decimal.RequireFromString("565.00")
		e.BalanceDue = decimal.RequireFromString("2000.00")
		e.Status = models.EnrollmentStatusActive
		return tx.UpdateEnrollment(context.Background())
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithEnrollmentLockRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	store := NewEnrollmentStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRow(sqlmock.NewRows(enrollmentRowColumns), "enr-1", "0.00", "2565.00", models.EnrollmentStatusPendingPayment))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := store.WithEnrollmentLock(context.Background(), "enr-1", func(tx EnrollmentTx) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithEnrollmentLockMissingEnrollment(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	store := NewEnrollmentStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	called := false
	err := store.WithEnrollmentLock(context.Background(), "missing", func(tx EnrollmentTx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaymentReversedRequiresUnreversedPayment(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	store := NewEnrollmentStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRow(sqlmock.NewRows(enrollmentRowColumns), "enr-1", "565.00", "2000.00", models.EnrollmentStatusActive))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET reversal_id = $2")).
		WithArgs("pay-1", "adj-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithEnrollmentLock(context.Background(), "enr-1", func(tx EnrollmentTx) error {
		return tx.MarkPaymentReversed(context.Background(), "pay-1", "adj-1")
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
