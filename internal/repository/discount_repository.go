package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
)

const discountColumns = `id, name, percentage, course_id, student_ids, valid_from, valid_until, active, created_at, updated_at`

// DiscountRepository handles persistence of reusable discounts.
type DiscountRepository struct {
	db *sqlx.DB
}

// NewDiscountRepository constructs the repository.
func NewDiscountRepository(db *sqlx.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

// FindByID returns a discount by identifier.
func (r *DiscountRepository) FindByID(ctx context.Context, id string) (*models.Discount, error) {
	query := fmt.Sprintf(`SELECT %s FROM discounts WHERE id = $1`, discountColumns)
	var discount models.Discount
	if err := r.db.GetContext(ctx, &discount, query, id); err != nil {
		return nil, err
	}
	return &discount, nil
}

// List returns discounts filtered by course and active flag.
func (r *DiscountRepository) List(ctx context.Context, filter models.DiscountFilter) ([]models.Discount, int, error) {
	var conditions []string
	var args []interface{}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("(course_id = $%d OR course_id IS NULL)", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := normalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM discounts%s ORDER BY created_at DESC LIMIT %d OFFSET %d`, discountColumns, clause, size, (page-1)*size)
	var discounts []models.Discount
	if err := r.db.SelectContext(ctx, &discounts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list discounts: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM discounts"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count discounts: %w", err)
	}
	return discounts, total, nil
}

// Create inserts a new discount.
func (r *DiscountRepository) Create(ctx context.Context, discount *models.Discount) error {
	if discount.ID == "" {
		discount.ID = uuid.NewString()
	}
	if discount.StudentIDs == nil {
		discount.StudentIDs = []string{}
	}
	now := time.Now().UTC()
	discount.CreatedAt = now
	discount.UpdatedAt = now
	const query = `INSERT INTO discounts (id, name, percentage, course_id, student_ids, valid_from, valid_until, active, created_at, updated_at)
        VALUES (:id, :name, :percentage, :course_id, :student_ids, :valid_from, :valid_until, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, discount); err != nil {
		return fmt.Errorf("create discount: %w", err)
	}
	return nil
}

// SetActive toggles whether the discount may be resolved.
func (r *DiscountRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE discounts SET active = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC()); err != nil {
		return fmt.Errorf("set discount active: %w", err)
	}
	return nil
}

// AddStudent appends a student to the allow-list if missing.
func (r *DiscountRepository) AddStudent(ctx context.Context, id, studentID string) error {
	const query = `UPDATE discounts SET student_ids = array_append(student_ids, $2), updated_at = $3
        WHERE id = $1 AND NOT ($2 = ANY(student_ids))`
	if _, err := r.db.ExecContext(ctx, query, id, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add discount student: %w", err)
	}
	return nil
}

// RemoveStudent drops a student from the allow-list.
func (r *DiscountRepository) RemoveStudent(ctx context.Context, id, studentID string) error {
	const query = `UPDATE discounts SET student_ids = array_remove(student_ids, $2), updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("remove discount student: %w", err)
	}
	return nil
}
