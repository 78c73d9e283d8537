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
	"github.com/noah-isme/enrollment-finance-api/internal/repository"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsActive(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
}

type enrollmentLocker interface {
	WithEnrollmentLock(ctx context.Context, enrollmentID string, fn func(tx repository.EnrollmentTx) error) error
}

type paymentHistoryReader interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error)
	ListAdjustments(ctx context.Context, enrollmentID string) ([]models.LedgerAdjustment, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type discountResolver interface {
	Resolve(ctx context.Context, source models.DiscountSource, scope DiscountScope) (DiscountResolution, error)
}

// EnrollmentService creates enrollments and runs the administrative operations on their ledger.
type EnrollmentService struct {
	repo      enrollmentRepository
	store     enrollmentLocker
	payments  paymentHistoryReader
	students  studentReader
	courses   courseReader
	discounts discountResolver
	validator *validator.Validate
	metrics   *MetricsService
	cache     *CacheService
	audit     *AuditService
	now       func() time.Time
	logger    *zap.Logger
}

// EnrollmentServiceOption configures optional collaborators.
type EnrollmentServiceOption func(*EnrollmentService)

// WithEnrollmentMetrics records enrollment counters.
func WithEnrollmentMetrics(metrics *MetricsService) EnrollmentServiceOption {
	return func(s *EnrollmentService) { s.metrics = metrics }
}

// WithEnrollmentCache invalidates cached course rosters after ledger changes.
func WithEnrollmentCache(cache *CacheService) EnrollmentServiceOption {
	return func(s *EnrollmentService) { s.cache = cache }
}

// WithEnrollmentAudit records audit entries for enrollment changes.
func WithEnrollmentAudit(audit *AuditService) EnrollmentServiceOption {
	return func(s *EnrollmentService) { s.audit = audit }
}

// WithEnrollmentClock overrides the clock used for timestamps.
func WithEnrollmentClock(now func() time.Time) EnrollmentServiceOption {
	return func(s *EnrollmentService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, store enrollmentLocker, payments paymentHistoryReader, students studentReader, courses courseReader, discounts discountResolver, validate *validator.Validate, logger *zap.Logger, opts ...EnrollmentServiceOption) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EnrollmentService{
		repo:      repo,
		store:     store,
		payments:  payments,
		students:  students,
		courses:   courses,
		discounts: discounts,
		validator: validate,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns enrollments with pagination metadata. Students only see their own.
func (s *EnrollmentService) List(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if !actor.IsAdmin() {
		if actor.Kind != models.ActorStudent || actor.ID == "" {
			return nil, nil, appErrors.ErrUnauthorized
		}
		filter.StudentID = actor.ID
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, pagination(filter.Page, filter.PageSize, total), nil
}

// Get returns an enrollment with student and course names.
func (s *EnrollmentService) Get(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "enrollment")
	}
	if err := authorizeStudentResource(actor, detail.StudentID); err != nil {
		return nil, err
	}
	return detail, nil
}

// Create prices and persists a new enrollment. Both discounts are resolved once here and
// frozen in the snapshot.
func (s *EnrollmentService) Create(ctx context.Context, actor models.Actor, req dto.CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, loadError(err, "student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "student is inactive")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		return nil, loadError(err, "course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "course is not open for enrollment")
	}

	exists, err := s.repo.ExistsActive(ctx, student.ID, course.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in course")
	}

	courseDiscount, err := s.discounts.Resolve(ctx, course.DiscountSource(), DiscountScope{CourseID: course.ID})
	if err != nil {
		return nil, err
	}
	studentSource := models.DiscountSource{DiscountID: normalizeID(req.DiscountID), Percentage: req.DiscountPercentage}
	studentDiscount, err := s.discounts.Resolve(ctx, studentSource, DiscountScope{CourseID: course.ID, StudentID: student.ID})
	if err != nil {
		return nil, err
	}

	snapshot, err := BuildPricingSnapshot(*course, student.StudentType, courseDiscount.Percentage, studentDiscount.Percentage)
	if err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		StudentID:              student.ID,
		CourseID:               course.ID,
		PricingSnapshot:        snapshot,
		CourseDiscountID:       course.DiscountID,
		CourseDiscountLiteral:  course.DiscountPercentage,
		StudentDiscountID:      studentSource.DiscountID,
		StudentDiscountLiteral: studentSource.Percentage,
		Status:                 models.EnrollmentStatusPendingPayment,
		Requisitos:             models.NewRequisitos(course.RequirementLabels),
		EnrolledAt:             s.now().UTC(),
	}
	RecomputeBalance(enrollment)
	if models.IsSettled(enrollment.BalanceDue) {
		enrollment.Status = models.EnrollmentStatusCompleted
	}

	if err := s.repo.Create(ctx, enrollment); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.metrics.EnrollmentCreated(string(student.StudentType))
	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditActionEnrollmentCreate,
		Resource:   "enrollment",
		ResourceID: enrollment.ID,
		NewValues:  enrollment,
	})
	s.cache.Invalidate(ctx, RosterCacheKey(course.ID))
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", student.ID),
		zap.String("course_id", course.ID),
		zap.String("final_price", snapshot.FinalPrice.StringFixed(models.MoneyScale)),
		zap.String("course_discount_source", courseDiscount.Source),
		zap.String("student_discount_source", studentDiscount.Source),
	)

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// NextObligation reports what the student has to pay next, if anything.
func (s *EnrollmentService) NextObligation(ctx context.Context, actor models.Actor, id string) (*dto.NextObligationResponse, error) {
	enrollment, payments, err := s.loadWithPayments(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	resp := &dto.NextObligationResponse{EnrollmentID: enrollment.ID, BalanceDue: enrollment.BalanceDue}
	if enrollment.Status != models.EnrollmentStatusCancelled {
		resp.Obligation = NextObligation(enrollment, payments)
	}
	return resp, nil
}

// Schedule lists every obligation of the enrollment with its coverage.
func (s *EnrollmentService) Schedule(ctx context.Context, actor models.Actor, id string) ([]models.ScheduledObligation, error) {
	enrollment, payments, err := s.loadWithPayments(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return ObligationSchedule(enrollment, payments), nil
}

// RequisitoSummary counts the enrollment's requisitos by state.
func (s *EnrollmentService) RequisitoSummary(ctx context.Context, actor models.Actor, id string) (*models.RequisitoSummary, error) {
	enrollment, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	summary := SummarizeRequisitos(enrollment.Requisitos)
	return &summary, nil
}

// PaymentSummary aggregates payments by status next to the ledger totals.
func (s *EnrollmentService) PaymentSummary(ctx context.Context, actor models.Actor, id string) (*models.PaymentSummary, error) {
	enrollment, payments, err := s.loadWithPayments(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	summary := &models.PaymentSummary{
		EnrollmentID:   enrollment.ID,
		TotalPayments:  len(payments),
		ApprovedAmount: decimal.Zero,
		TotalDue:       enrollment.TotalDue,
		TotalPaid:      enrollment.TotalPaid,
		BalanceDue:     enrollment.BalanceDue,
	}
	for _, p := range payments {
		switch p.Status {
		case models.PaymentStatusPending:
			summary.Pending++
		case models.PaymentStatusApproved:
			summary.Approved++
			if p.ReversalID == nil {
				summary.ApprovedAmount = summary.ApprovedAmount.Add(p.Amount)
			}
		case models.PaymentStatusRejected:
			summary.Rejected++
		}
	}
	return summary, nil
}

// ListAdjustments returns the compensating entries booked on the enrollment.
func (s *EnrollmentService) ListAdjustments(ctx context.Context, actor models.Actor, id string) ([]models.LedgerAdjustment, error) {
	if _, err := s.load(ctx, actor, id); err != nil {
		return nil, err
	}
	adjustments, err := s.payments.ListAdjustments(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list adjustments")
	}
	return adjustments, nil
}

// Statement gathers the enrollment, its schedule and its full payment history.
func (s *EnrollmentService) Statement(ctx context.Context, actor models.Actor, id string) (*dto.EnrollmentStatement, error) {
	detail, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByEnrollment(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	adjustments, err := s.payments.ListAdjustments(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list adjustments")
	}
	return &dto.EnrollmentStatement{
		Enrollment:  *detail,
		Schedule:    ObligationSchedule(&detail.Enrollment, payments),
		Payments:    payments,
		Adjustments: adjustments,
	}, nil
}

// UpdateStudentDiscount re-resolves the student level discount and reprices the enrollment
// from its stored snapshot. Amounts already paid are kept.
func (s *EnrollmentService) UpdateStudentDiscount(ctx context.Context, actor models.Actor, id string, req dto.UpdateStudentDiscountRequest) (*models.EnrollmentDetail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	source := models.DiscountSource{DiscountID: normalizeID(req.DiscountID), Percentage: req.DiscountPercentage}

	err := s.store.WithEnrollmentLock(ctx, id, func(tx repository.EnrollmentTx) error {
		enrollment := tx.Enrollment()
		if enrollment.Status == models.EnrollmentStatusCancelled {
			return appErrors.Clone(appErrors.ErrInvalidState, "enrollment is cancelled")
		}
		resolution, err := s.discounts.Resolve(ctx, source, DiscountScope{CourseID: enrollment.CourseID, StudentID: enrollment.StudentID})
		if err != nil {
			return err
		}
		before := enrollment.PricingSnapshot
		snapshot, err := RepriceSnapshot(enrollment.PricingSnapshot, resolution.Percentage)
		if err != nil {
			return err
		}
		if err := ApplyRepricing(enrollment, snapshot); err != nil {
			return err
		}
		enrollment.StudentDiscountID = source.DiscountID
		enrollment.StudentDiscountLiteral = source.Percentage
		if err := tx.UpdateEnrollment(ctx); err != nil {
			return err
		}
		return s.auditInTx(ctx, tx, AuditEntry{
			Actor:      actor,
			Action:     models.AuditActionEnrollmentDiscount,
			Resource:   "enrollment",
			ResourceID: enrollment.ID,
			OldValues:  before,
			NewValues:  enrollment.PricingSnapshot,
		})
	})
	if err != nil {
		return nil, lockError(err, "update enrollment discount")
	}
	return s.afterLedgerChange(ctx, id)
}

// ChangeStatus suspends, cancels or reactivates an enrollment. COMPLETED is only reached
// through the ledger.
func (s *EnrollmentService) ChangeStatus(ctx context.Context, actor models.Actor, id string, req dto.ChangeEnrollmentStatusRequest) (*models.EnrollmentDetail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	err := s.store.WithEnrollmentLock(ctx, id, func(tx repository.EnrollmentTx) error {
		enrollment := tx.Enrollment()
		previous := enrollment.Status
		next, err := nextStatus(enrollment, req.Status)
		if err != nil {
			return err
		}
		enrollment.Status = next
		if err := tx.UpdateEnrollment(ctx); err != nil {
			return err
		}
		return s.auditInTx(ctx, tx, AuditEntry{
			Actor:      actor,
			Action:     models.AuditActionEnrollmentStatus,
			Resource:   "enrollment",
			ResourceID: enrollment.ID,
			OldValues:  map[string]interface{}{"status": previous},
			NewValues:  map[string]interface{}{"status": next, "reason": strings.TrimSpace(req.Reason)},
		})
	})
	if err != nil {
		return nil, lockError(err, "change enrollment status")
	}
	return s.afterLedgerChange(ctx, id)
}

// nextStatus validates an administrative transition and returns the resulting state.
// Reactivation derives the state from the ledger.
func nextStatus(enrollment *models.Enrollment, target models.EnrollmentStatus) (models.EnrollmentStatus, error) {
	current := enrollment.Status
	switch target {
	case models.EnrollmentStatusSuspended:
		if current != models.EnrollmentStatusPendingPayment && current != models.EnrollmentStatusActive {
			return "", appErrors.Clone(appErrors.ErrInvalidState, "only open enrollments can be suspended")
		}
		return target, nil
	case models.EnrollmentStatusCancelled:
		if current == models.EnrollmentStatusCancelled || current == models.EnrollmentStatusCompleted {
			return "", appErrors.Clone(appErrors.ErrInvalidState, "enrollment is "+strings.ToLower(string(current))+" and cannot be cancelled")
		}
		return target, nil
	case models.EnrollmentStatusActive:
		if current != models.EnrollmentStatusSuspended {
			return "", appErrors.Clone(appErrors.ErrInvalidState, "only suspended enrollments can be reactivated")
		}
		switch {
		case models.IsSettled(enrollment.BalanceDue):
			return models.EnrollmentStatusCompleted, nil
		case enrollment.TotalPaid.IsPositive():
			return models.EnrollmentStatusActive, nil
		default:
			return models.EnrollmentStatusPendingPayment, nil
		}
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "status "+string(target)+" cannot be set manually")
	}
}

// SetFinalGrade records a grade between 0 and 100.
func (s *EnrollmentService) SetFinalGrade(ctx context.Context, actor models.Actor, id string, req dto.SetFinalGradeRequest) (*models.EnrollmentDetail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if req.Grade.IsNegative() || req.Grade.GreaterThan(hundred) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade must be between 0 and 100")
	}
	grade := models.RoundMoney(req.Grade)

	err := s.store.WithEnrollmentLock(ctx, id, func(tx repository.EnrollmentTx) error {
		enrollment := tx.Enrollment()
		previous := enrollment.FinalGrade
		enrollment.FinalGrade = decimal.NewNullDecimal(grade)
		if err := tx.UpdateEnrollment(ctx); err != nil {
			return err
		}
		return s.auditInTx(ctx, tx, AuditEntry{
			Actor:      actor,
			Action:     models.AuditActionEnrollmentGrade,
			Resource:   "enrollment",
			ResourceID: enrollment.ID,
			OldValues:  map[string]interface{}{"final_grade": previous},
			NewValues:  map[string]interface{}{"final_grade": grade},
		})
	})
	if err != nil {
		return nil, lockError(err, "set final grade")
	}
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "enrollment")
	}
	return detail, nil
}

// AdjustBalance books a credit that lowers the amount due.
func (s *EnrollmentService) AdjustBalance(ctx context.Context, actor models.Actor, id string, req dto.AdjustBalanceRequest) (*models.LedgerAdjustment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid adjustment payload")
	}
	adjustment := models.LedgerAdjustment{
		Kind:      models.AdjustmentCredit,
		Amount:    models.RoundMoney(req.Amount),
		Reason:    strings.TrimSpace(req.Reason),
		CreatedBy: actor.ID,
		CreatedAt: s.now().UTC(),
	}

	err := s.store.WithEnrollmentLock(ctx, id, func(tx repository.EnrollmentTx) error {
		enrollment := tx.Enrollment()
		before := ledgerState(enrollment)
		if err := ApplyAdjustment(enrollment, adjustment); err != nil {
			return err
		}
		if err := tx.InsertAdjustment(ctx, &adjustment); err != nil {
			return err
		}
		if err := tx.UpdateEnrollment(ctx); err != nil {
			return err
		}
		return s.auditInTx(ctx, tx, AuditEntry{
			Actor:      actor,
			Action:     models.AuditActionLedgerAdjustment,
			Resource:   "enrollment",
			ResourceID: enrollment.ID,
			OldValues:  before,
			NewValues:  map[string]interface{}{"adjustment": adjustment, "ledger": ledgerState(enrollment)},
		})
	})
	if err != nil {
		return nil, lockError(err, "adjust enrollment balance")
	}

	s.metrics.LedgerAdjusted(string(adjustment.Kind))
	if _, err := s.afterLedgerChange(ctx, id); err != nil {
		s.logger.Warn("failed to reload enrollment after adjustment", zap.String("enrollment_id", id), zap.Error(err))
	}
	return &adjustment, nil
}

func (s *EnrollmentService) load(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "enrollment")
	}
	if err := authorizeStudentResource(actor, enrollment.StudentID); err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *EnrollmentService) loadWithPayments(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, []models.Payment, error) {
	enrollment, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	payments, err := s.payments.ListByEnrollment(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return enrollment, payments, nil
}

// afterLedgerChange drops the cached roster and returns the fresh detail.
func (s *EnrollmentService) afterLedgerChange(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "enrollment")
	}
	s.cache.Invalidate(ctx, RosterCacheKey(detail.CourseID))
	return detail, nil
}

func (s *EnrollmentService) auditInTx(ctx context.Context, tx repository.EnrollmentTx, entry AuditEntry) error {
	return tx.InsertAuditLog(ctx, newAuditLog(ctx, entry, s.logger))
}

func ledgerState(e *models.Enrollment) map[string]interface{} {
	return map[string]interface{}{
		"status":            e.Status,
		"final_price":       e.FinalPrice,
		"adjustments_total": e.AdjustmentsTotal,
		"total_due":         e.TotalDue,
		"total_paid":        e.TotalPaid,
		"balance_due":       e.BalanceDue,
	}
}

func normalizeID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func pagination(page, size, total int) *models.Pagination {
	return models.NewPagination(page, size, total)
}
