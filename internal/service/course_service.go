package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error)
}

// CourseService manages course price tables and rosters.
type CourseService struct {
	repo      courseRepository
	discounts discountLookup
	cache     *CacheService
	rosterTTL time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs the course service. cache may be nil.
func NewCourseService(repo courseRepository, discounts discountLookup, cache *CacheService, rosterTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, discounts: discounts, cache: cache, rosterTTL: rosterTTL, validator: validate, logger: logger}
}

// List returns courses. Students only see active ones.
func (s *CourseService) List(ctx context.Context, actor models.Actor, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	if !actor.IsAdmin() {
		active := true
		filter.Active = &active
	}
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, pagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "course")
	}
	return course, nil
}

// Create registers a course. Courses start active unless the request says otherwise.
func (s *CourseService) Create(ctx context.Context, actor models.Actor, req dto.CourseRequest) (*models.Course, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	course := &models.Course{Active: true}
	if err := s.apply(ctx, course, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.logger.Info("course created", zap.String("course_id", course.ID))
	return course, nil
}

// Update replaces the price table and template of a course. Enrollments already created keep
// their pricing snapshot and requisito list.
func (s *CourseService) Update(ctx context.Context, actor models.Actor, id string, req dto.CourseRequest) (*models.Course, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "course")
	}
	if err := s.apply(ctx, course, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Roster lists the enrolled students of a course with their payment progress.
func (s *CourseService) Roster(ctx context.Context, actor models.Actor, courseID string) ([]models.RosterEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	key := RosterCacheKey(courseID)
	var cached []models.RosterEntry
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	if _, err := s.repo.FindByID(ctx, courseID); err != nil {
		return nil, loadError(err, "course")
	}
	entries, err := s.repo.Roster(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	if entries == nil {
		entries = []models.RosterEntry{}
	}
	for i := range entries {
		entries[i].PaymentProgress = paymentProgress(entries[i].TotalPaid, entries[i].TotalDue)
	}
	s.cache.Set(ctx, key, entries, s.rosterTTL)
	return entries, nil
}

func (s *CourseService) apply(ctx context.Context, course *models.Course, req dto.CourseRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if err := validatePriceTable(req); err != nil {
		return err
	}
	discountID := normalizeID(req.DiscountID)
	if discountID != nil {
		if _, err := s.discounts.FindByID(ctx, *discountID); err != nil {
			return referenceError(err, "discount")
		}
	}

	course.Name = strings.TrimSpace(req.Name)
	course.Description = req.Description
	course.CostInternal = models.RoundMoney(req.CostInternal)
	course.CostExternal = models.RoundMoney(req.CostExternal)
	course.DownPaymentInternal = models.RoundMoney(req.DownPaymentInternal)
	course.DownPaymentExternal = models.RoundMoney(req.DownPaymentExternal)
	course.InstallmentCount = req.InstallmentCount
	course.DiscountID = discountID
	course.DiscountPercentage = req.DiscountPercentage
	course.RequirementLabels = trimLabels(req.RequirementLabels)
	if req.Active != nil {
		course.Active = *req.Active
	}
	course.StartDate = req.StartDate
	course.EndDate = req.EndDate
	return nil
}

func validatePriceTable(req dto.CourseRequest) error {
	details := map[string]interface{}{}
	for field, value := range map[string]decimal.Decimal{
		"cost_internal":         req.CostInternal,
		"cost_external":         req.CostExternal,
		"down_payment_internal": req.DownPaymentInternal,
		"down_payment_external": req.DownPaymentExternal,
	} {
		if value.IsNegative() {
			details[field] = "must not be negative"
		}
	}
	if req.DownPaymentInternal.GreaterThan(req.CostInternal) {
		details["down_payment_internal"] = "must not exceed cost_internal"
	}
	if req.DownPaymentExternal.GreaterThan(req.CostExternal) {
		details["down_payment_external"] = "must not exceed cost_external"
	}
	if req.DiscountPercentage.Valid && (req.DiscountPercentage.Decimal.IsNegative() || req.DiscountPercentage.Decimal.GreaterThan(hundred)) {
		details["discount_percentage"] = "must be between 0 and 100"
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		details["end_date"] = "must not be before start_date"
	}
	if len(details) > 0 {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "invalid course price table"), details)
	}
	return nil
}

func trimLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// paymentProgress is paid/due as a percentage. A course with nothing due counts as fully paid.
func paymentProgress(paid, due decimal.Decimal) decimal.Decimal {
	if !due.IsPositive() {
		return hundred
	}
	progress := paid.Div(due).Mul(hundred)
	if progress.GreaterThan(hundred) {
		progress = hundred
	}
	return models.RoundMoney(progress)
}
