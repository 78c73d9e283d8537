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

const courseColumns = `id, name, description, cost_internal, cost_external, down_payment_internal, down_payment_external,
        installment_count, discount_id, discount_percentage, requirement_labels, active, start_date, end_date,
        created_at, updated_at`

// CourseRepository handles persistence of courses and their price tables.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by identifier.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns courses filtered by name and active flag.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
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

	query := fmt.Sprintf(`SELECT %s FROM courses%s ORDER BY name ASC LIMIT %d OFFSET %d`, courseColumns, clause, size, (page-1)*size)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses"+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, name, description, cost_internal, cost_external, down_payment_internal,
        down_payment_external, installment_count, discount_id, discount_percentage, requirement_labels, active,
        start_date, end_date, created_at, updated_at)
        VALUES (:id, :name, :description, :cost_internal, :cost_external, :down_payment_internal,
        :down_payment_external, :installment_count, :discount_id, :discount_percentage, :requirement_labels, :active,
        :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a course. Existing enrollments keep their snapshots.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = :name, description = :description, cost_internal = :cost_internal,
        cost_external = :cost_external, down_payment_internal = :down_payment_internal,
        down_payment_external = :down_payment_external, installment_count = :installment_count,
        discount_id = :discount_id, discount_percentage = :discount_percentage,
        requirement_labels = :requirement_labels, active = :active, start_date = :start_date,
        end_date = :end_date, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Roster lists the non-cancelled enrollments of a course with their ledger totals.
func (r *CourseRepository) Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.id AS enrollment_id, e.student_id, s.full_name AS student_name, s.carnet AS student_carnet,
        e.student_type, e.status, e.total_due, e.total_paid, e.balance_due
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.course_id = $1 AND e.status <> $2
        ORDER BY s.full_name ASC`
	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query, courseID, models.EnrollmentStatusCancelled); err != nil {
		return nil, fmt.Errorf("list course roster: %w", err)
	}
	return entries, nil
}
