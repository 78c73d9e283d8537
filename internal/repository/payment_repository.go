package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
)

const paymentColumns = `p.id, p.enrollment_id, p.student_id, p.course_id, p.concept, p.installment_number, p.amount,
        p.transaction_number, p.voucher_url, p.declared_sender, p.declared_bank, p.declared_amount, p.declared_date,
        p.destination_account, p.notes, p.status, p.rejection_reason, p.submitted_at, p.reviewed_by, p.reviewed_at,
        p.reversal_id, p.created_at, p.updated_at`

// PaymentRepository provides read access to submitted payments. Writes go through EnrollmentStore.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByID returns a payment by identifier.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p WHERE p.id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// List returns payments filtered by enrollment, student, course and status.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	var conditions []string
	var args []interface{}

	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("p.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM payments p%s ORDER BY p.submitted_at DESC LIMIT %d OFFSET %d`, paymentColumns, clause, size, offset)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM payments p%s", clause), args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// ListByEnrollment returns the full payment history of an enrollment, oldest first.
func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p WHERE p.enrollment_id = $1 ORDER BY p.submitted_at ASC`, paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment payments: %w", err)
	}
	return payments, nil
}

// ListAdjustments returns the compensating entries of an enrollment, oldest first.
func (r *PaymentRepository) ListAdjustments(ctx context.Context, enrollmentID string) ([]models.LedgerAdjustment, error) {
	const query = `SELECT id, enrollment_id, payment_id, kind, amount, reason, created_by, created_at
        FROM ledger_adjustments WHERE enrollment_id = $1 ORDER BY created_at ASC`
	var adjustments []models.LedgerAdjustment
	if err := r.db.SelectContext(ctx, &adjustments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list ledger adjustments: %w", err)
	}
	return adjustments, nil
}
