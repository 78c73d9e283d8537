package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
)

// EnrollmentTx exposes the reads and writes allowed while an enrollment row is locked.
type EnrollmentTx interface {
	Enrollment() *models.Enrollment
	ListPayments(ctx context.Context) ([]models.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	FindApprovedForObligation(ctx context.Context, key models.ObligationKey, excludeID string) (*models.Payment, error)
	InsertPayment(ctx context.Context, payment *models.Payment) error
	SavePaymentReview(ctx context.Context, payment *models.Payment) error
	MarkPaymentReversed(ctx context.Context, paymentID, adjustmentID string) error
	InsertAdjustment(ctx context.Context, adjustment *models.LedgerAdjustment) error
	UpdateEnrollment(ctx context.Context) error
	InsertAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EnrollmentStore serializes every mutation of one enrollment's ledger, payments and
// requisitos behind a row lock.
type EnrollmentStore struct {
	db *sqlx.DB
}

// NewEnrollmentStore constructs the store.
func NewEnrollmentStore(db *sqlx.DB) *EnrollmentStore {
	return &EnrollmentStore{db: db}
}

// WithEnrollmentLock opens a transaction, locks the enrollment row and runs fn. The
// transaction commits when fn returns nil and rolls back otherwise. sql.ErrNoRows is
// returned untouched when the enrollment does not exist.
func (s *EnrollmentStore) WithEnrollmentLock(ctx context.Context, enrollmentID string, fn func(tx EnrollmentTx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`SELECT %s FROM enrollments e WHERE e.id = $1 FOR UPDATE`, enrollmentColumns)
	var enrollment models.Enrollment
	if err = tx.GetContext(ctx, &enrollment, query, enrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock enrollment: %w", err)
	}

	if err = fn(&enrollmentTx{tx: tx, enrollment: &enrollment}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment transaction: %w", err)
	}
	return nil
}

type enrollmentTx struct {
	tx         *sqlx.Tx
	enrollment *models.Enrollment
}

func (t *enrollmentTx) Enrollment() *models.Enrollment {
	return t.enrollment
}

func (t *enrollmentTx) ListPayments(ctx context.Context) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p WHERE p.enrollment_id = $1 ORDER BY p.submitted_at ASC`, paymentColumns)
	var payments []models.Payment
	if err := t.tx.SelectContext(ctx, &payments, query, t.enrollment.ID); err != nil {
		return nil, fmt.Errorf("list enrollment payments: %w", err)
	}
	return payments, nil
}

func (t *enrollmentTx) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p WHERE p.id = $1 AND p.enrollment_id = $2`, paymentColumns)
	var payment models.Payment
	if err := t.tx.GetContext(ctx, &payment, query, paymentID, t.enrollment.ID); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (t *enrollmentTx) FindApprovedForObligation(ctx context.Context, key models.ObligationKey, excludeID string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p
        WHERE p.enrollment_id = $1 AND p.concept = $2 AND COALESCE(p.installment_number, 0) = $3
        AND p.status = $4 AND p.reversal_id IS NULL AND p.id <> $5 LIMIT 1`, paymentColumns)
	var payment models.Payment
	if err := t.tx.GetContext(ctx, &payment, query, t.enrollment.ID, key.Concept, key.Installment, models.PaymentStatusApproved, excludeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find approved payment: %w", err)
	}
	return &payment, nil
}

func (t *enrollmentTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.SubmittedAt.IsZero() {
		payment.SubmittedAt = now
	}
	payment.EnrollmentID = t.enrollment.ID
	payment.CreatedAt = now
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, enrollment_id, student_id, course_id, concept, installment_number, amount,
        transaction_number, voucher_url, declared_sender, declared_bank, declared_amount, declared_date,
        destination_account, notes, status, submitted_at, created_at, updated_at)
        VALUES (:id, :enrollment_id, :student_id, :course_id, :concept, :installment_number, :amount,
        :transaction_number, :voucher_url, :declared_sender, :declared_bank, :declared_amount, :declared_date,
        :destination_account, :notes, :status, :submitted_at, :created_at, :updated_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (t *enrollmentTx) SavePaymentReview(ctx context.Context, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payments SET status = $2, rejection_reason = $3, reviewed_by = $4, reviewed_at = $5, updated_at = $6
        WHERE id = $1`
	if _, err := t.tx.ExecContext(ctx, query, payment.ID, payment.Status, payment.RejectionReason, payment.ReviewedBy, payment.ReviewedAt, payment.UpdatedAt); err != nil {
		return fmt.Errorf("save payment review: %w", err)
	}
	return nil
}

func (t *enrollmentTx) MarkPaymentReversed(ctx context.Context, paymentID, adjustmentID string) error {
	const query = `UPDATE payments SET reversal_id = $2, updated_at = $3 WHERE id = $1 AND reversal_id IS NULL`
	res, err := t.tx.ExecContext(ctx, query, paymentID, adjustmentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark payment reversed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (t *enrollmentTx) InsertAdjustment(ctx context.Context, adjustment *models.LedgerAdjustment) error {
	if adjustment.ID == "" {
		adjustment.ID = uuid.NewString()
	}
	adjustment.EnrollmentID = t.enrollment.ID
	if adjustment.CreatedAt.IsZero() {
		adjustment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO ledger_adjustments (id, enrollment_id, payment_id, kind, amount, reason, created_by, created_at)
        VALUES (:id, :enrollment_id, :payment_id, :kind, :amount, :reason, :created_by, :created_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, adjustment); err != nil {
		return fmt.Errorf("insert ledger adjustment: %w", err)
	}
	return nil
}

func (t *enrollmentTx) UpdateEnrollment(ctx context.Context) error {
	t.enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET student_discount_pct = :student_discount_pct, final_price = :final_price,
        installment_amount = :installment_amount, student_discount_id = :student_discount_id,
        student_discount_literal = :student_discount_literal, adjustments_total = :adjustments_total,
        total_due = :total_due, total_paid = :total_paid, balance_due = :balance_due, status = :status,
        final_grade = :final_grade, requisitos = :requisitos, updated_at = :updated_at
        WHERE id = :id`
	if _, err := t.tx.NamedExecContext(ctx, query, t.enrollment); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

func (t *enrollmentTx) InsertAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, actor_id, actor_kind, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :actor_id, :actor_kind, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := t.tx.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
