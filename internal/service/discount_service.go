package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

type discountRepository interface {
	FindByID(ctx context.Context, id string) (*models.Discount, error)
	List(ctx context.Context, filter models.DiscountFilter) ([]models.Discount, int, error)
	Create(ctx context.Context, discount *models.Discount) error
	SetActive(ctx context.Context, id string, active bool) error
	AddStudent(ctx context.Context, id, studentID string) error
	RemoveStudent(ctx context.Context, id, studentID string) error
}

// DiscountService manages reusable discounts. Changes never touch enrollments that already
// resolved a discount; they only affect later resolutions.
type DiscountService struct {
	repo      discountRepository
	courses   courseReader
	students  studentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDiscountService constructs the discount service.
func NewDiscountService(repo discountRepository, courses courseReader, students studentReader, validate *validator.Validate, logger *zap.Logger) *DiscountService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscountService{repo: repo, courses: courses, students: students, validator: validate, logger: logger}
}

// List returns discounts. Admin only.
func (s *DiscountService) List(ctx context.Context, actor models.Actor, filter models.DiscountFilter) ([]models.Discount, *models.Pagination, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, nil, err
	}
	discounts, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list discounts")
	}
	return discounts, pagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a discount. Admin only.
func (s *DiscountService) Get(ctx context.Context, actor models.Actor, id string) (*models.Discount, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	discount, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "discount")
	}
	return discount, nil
}

// Create registers an active discount.
func (s *DiscountService) Create(ctx context.Context, actor models.Actor, req dto.DiscountRequest) (*models.Discount, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid discount payload")
	}
	if req.Percentage.IsNegative() || req.Percentage.GreaterThan(hundred) {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid discount percentage"),
			map[string]interface{}{"percentage": "must be between 0 and 100"})
	}
	if req.ValidFrom != nil && req.ValidUntil != nil && models.DateOnly(*req.ValidUntil).Before(models.DateOnly(*req.ValidFrom)) {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid validity window"),
			map[string]interface{}{"valid_until": "must not be before valid_from"})
	}
	courseID := normalizeID(req.CourseID)
	if courseID != nil {
		if _, err := s.courses.FindByID(ctx, *courseID); err != nil {
			return nil, referenceError(err, "course")
		}
	}
	studentIDs := make([]string, 0, len(req.StudentIDs))
	seen := map[string]bool{}
	for _, raw := range req.StudentIDs {
		id := strings.TrimSpace(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		studentIDs = append(studentIDs, id)
	}

	discount := &models.Discount{
		Name:       strings.TrimSpace(req.Name),
		Percentage: req.Percentage,
		CourseID:   courseID,
		StudentIDs: studentIDs,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		Active:     true,
	}
	if err := s.repo.Create(ctx, discount); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create discount")
	}
	s.logger.Info("discount created", zap.String("discount_id", discount.ID), zap.String("percentage", discount.Percentage.String()))
	return discount, nil
}

// SetActive toggles a discount.
func (s *DiscountService) SetActive(ctx context.Context, actor models.Actor, id string, req dto.DiscountActiveRequest) (*models.Discount, error) {
	return s.mutate(ctx, actor, id, func() error {
		return s.repo.SetActive(ctx, id, req.Active)
	})
}

// AddStudent allow-lists a student on a discount.
func (s *DiscountService) AddStudent(ctx context.Context, actor models.Actor, id string, req dto.DiscountStudentRequest) (*models.Discount, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid discount student payload")
	}
	return s.mutate(ctx, actor, id, func() error {
		if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
			return referenceError(err, "student")
		}
		return s.repo.AddStudent(ctx, id, req.StudentID)
	})
}

// RemoveStudent drops a student from a discount allow-list.
func (s *DiscountService) RemoveStudent(ctx context.Context, actor models.Actor, id, studentID string) (*models.Discount, error) {
	return s.mutate(ctx, actor, id, func() error {
		return s.repo.RemoveStudent(ctx, id, studentID)
	})
}

func (s *DiscountService) mutate(ctx context.Context, actor models.Actor, id string, fn func() error) (*models.Discount, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, loadError(err, "discount")
	}
	if err := fn(); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update discount")
	}
	discount, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "discount")
	}
	return discount, nil
}

// referenceError maps a missing referenced record to a validation error.
func referenceError(err error, resource string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrValidation, "referenced "+resource+" does not exist")
	}
	return loadError(err, resource)
}
