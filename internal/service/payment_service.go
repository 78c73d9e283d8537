package service

import (
	"context"
	"database/sql"
	"errors"
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

type paymentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error)
}

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type documentSaver interface {
	Save(ctx context.Context, folder, owner string, upload DocumentUpload) (*StoredDocument, error)
	Discard(ctx context.Context, doc *StoredDocument)
}

// Review decisions reported to metrics.
const (
	reviewApproved = "approved"
	reviewRejected = "rejected"
)

// PaymentService runs the submit and review workflow for payment vouchers. Every step that
// reads the payment history to make a decision runs inside the enrollment lock together with
// its writes.
type PaymentService struct {
	repo        paymentRepository
	enrollments enrollmentReader
	store       enrollmentLocker
	documents   documentSaver
	validator   *validator.Validate
	metrics     *MetricsService
	cache       *CacheService
	audit       *AuditService
	now         func() time.Time
	logger      *zap.Logger
}

// PaymentServiceOption configures optional collaborators.
type PaymentServiceOption func(*PaymentService)

// WithPaymentDocuments enables voucher file uploads.
func WithPaymentDocuments(documents documentSaver) PaymentServiceOption {
	return func(s *PaymentService) { s.documents = documents }
}

// WithPaymentMetrics records submission and review counters.
func WithPaymentMetrics(metrics *MetricsService) PaymentServiceOption {
	return func(s *PaymentService) { s.metrics = metrics }
}

// WithPaymentCache invalidates cached course rosters after approvals.
func WithPaymentCache(cache *CacheService) PaymentServiceOption {
	return func(s *PaymentService) { s.cache = cache }
}

// WithPaymentAudit records submissions through the audit queue.
func WithPaymentAudit(audit *AuditService) PaymentServiceOption {
	return func(s *PaymentService) { s.audit = audit }
}

// WithPaymentClock overrides the clock used for review timestamps.
func WithPaymentClock(now func() time.Time) PaymentServiceOption {
	return func(s *PaymentService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, enrollments enrollmentReader, store enrollmentLocker, validate *validator.Validate, logger *zap.Logger, opts ...PaymentServiceOption) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PaymentService{
		repo:        repo,
		enrollments: enrollments,
		store:       store,
		validator:   validate,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit records a voucher against the next unmet obligation of the enrollment. The amount
// and concept are computed here; declared values are stored for reconciliation only.
func (s *PaymentService) Submit(ctx context.Context, actor models.Actor, enrollmentID string, req dto.SubmitPaymentRequest, voucher *DocumentUpload) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	declared, err := parseDeclared(req)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, loadError(err, "enrollment")
	}
	if err := authorizeStudentResource(actor, enrollment.StudentID); err != nil {
		return nil, err
	}
	if err := checkAcceptsPayments(enrollment); err != nil {
		return nil, err
	}

	var doc *StoredDocument
	if voucher != nil {
		if s.documents == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "voucher uploads are not enabled")
		}
		doc, err = s.documents.Save(ctx, DocumentFolderVouchers, enrollment.StudentID, *voucher)
		if err != nil {
			return nil, err
		}
	}

	var payment *models.Payment
	err = s.store.WithEnrollmentLock(ctx, enrollmentID, func(tx repository.EnrollmentTx) error {
		locked := tx.Enrollment()
		if err := checkAcceptsPayments(locked); err != nil {
			return err
		}
		history, err := tx.ListPayments(ctx)
		if err != nil {
			return err
		}
		obligation := NextObligation(locked, history)
		if obligation == nil {
			return appErrors.Clone(appErrors.ErrNoPendingObligation, "")
		}
		if err := checkExpectedConcept(req.Concept, obligation, history); err != nil {
			return err
		}

		payment = declared
		payment.StudentID = locked.StudentID
		payment.CourseID = locked.CourseID
		payment.Concept = obligation.Concept
		payment.InstallmentNumber = obligation.InstallmentNumber
		payment.Amount = obligation.Amount
		payment.TransactionNumber = strings.TrimSpace(req.TransactionNumber)
		payment.Status = models.PaymentStatusPending
		payment.SubmittedAt = s.now().UTC()
		if doc != nil {
			url := doc.URL
			payment.VoucherURL = &url
		}
		return tx.InsertPayment(ctx, payment)
	})
	if err != nil {
		if s.documents != nil {
			s.documents.Discard(ctx, doc)
		}
		return nil, lockError(err, "submit payment")
	}

	s.metrics.PaymentSubmitted(obligationKind(payment.InstallmentNumber))
	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditActionPaymentSubmit,
		Resource:   "payment",
		ResourceID: payment.ID,
		NewValues:  payment,
	})
	s.logger.Info("payment submitted",
		zap.String("payment_id", payment.ID),
		zap.String("enrollment_id", enrollmentID),
		zap.String("concept", payment.Concept),
		zap.String("amount", payment.Amount.StringFixed(models.MoneyScale)),
	)
	return payment, nil
}

// Approve accepts a pending payment and books it on the enrollment ledger. The review, the
// ledger update and the audit row commit together.
func (s *PaymentService) Approve(ctx context.Context, actor models.Actor, paymentID string) (*models.Payment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	current, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, loadError(err, "payment")
	}

	var approved *models.Payment
	var courseID string
	err = s.store.WithEnrollmentLock(ctx, current.EnrollmentID, func(tx repository.EnrollmentTx) error {
		payment, err := lockedPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusPending {
			return paymentStateError(payment, "approved")
		}
		enrollment := tx.Enrollment()
		if enrollment.Status == models.EnrollmentStatusCancelled {
			return appErrors.Clone(appErrors.ErrInvalidState, "enrollment is cancelled")
		}
		existing, err := tx.FindApprovedForObligation(ctx, payment.ObligationKey(), payment.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return duplicateObligation(payment, existing.ID)
		}

		before := ledgerState(enrollment)
		reviewedAt := s.now().UTC()
		reviewer := actor.ID
		payment.Status = models.PaymentStatusApproved
		payment.ReviewedBy = &reviewer
		payment.ReviewedAt = &reviewedAt
		payment.RejectionReason = nil
		if err := tx.SavePaymentReview(ctx, payment); err != nil {
			if repository.IsUniqueViolation(err) {
				return duplicateObligation(payment, "")
			}
			return err
		}
		if err := ApplyPayment(enrollment, payment.Amount); err != nil {
			return err
		}
		if err := tx.UpdateEnrollment(ctx); err != nil {
			return err
		}
		if err := tx.InsertAuditLog(ctx, newAuditLog(ctx, AuditEntry{
			Actor:      actor,
			Action:     models.AuditActionPaymentApprove,
			Resource:   "payment",
			ResourceID: payment.ID,
			OldValues:  before,
			NewValues:  map[string]interface{}{"payment": payment, "ledger": ledgerState(enrollment)},
		}, s.logger)); err != nil {
			return err
		}
		approved = payment
		courseID = enrollment.CourseID
		return nil
	})
	if err != nil {
		return nil, lockError(err, "approve payment")
	}

	s.metrics.PaymentReviewed(reviewApproved, approved.Amount.InexactFloat64())
	s.cache.Invalidate(ctx, RosterCacheKey(courseID))
	s.logger.Info("payment approved",
		zap.String("payment_id", approved.ID),
		zap.String("enrollment_id", approved.EnrollmentID),
		zap.String("reviewer", actor.ID),
	)
	return approved, nil
}

// Reject declines a pending payment, freeing its obligation for a new submission.
func (s *PaymentService) Reject(ctx context.Context, actor models.Actor, paymentID string, req dto.RejectPaymentRequest) (*models.Payment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	current, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, loadError(err, "payment")
	}

	var rejected *models.Payment
	err = s.store.WithEnrollmentLock(ctx, current.EnrollmentID, func(tx repository.EnrollmentTx) error {
		payment, err := lockedPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusPending {
			return paymentStateError(payment, "rejected")
		}
		reviewedAt := s.now().UTC()
		reviewer := actor.ID
		payment.Status = models.PaymentStatusRejected
		payment.ReviewedBy = &reviewer
		payment.ReviewedAt = &reviewedAt
		payment.RejectionReason = &reason
		if err := tx.SavePaymentReview(ctx, payment); err != nil {
			return err
		}
		if err := tx.InsertAuditLog(ctx, newAuditLog(ctx, AuditEntry{
			Actor:      actor,
			Action:     models.AuditActionPaymentReject,
			Resource:   "payment",
			ResourceID: payment.ID,
			NewValues:  payment,
		}, s.logger)); err != nil {
			return err
		}
		rejected = payment
		return nil
	})
	if err != nil {
		return nil, lockError(err, "reject payment")
	}

	s.metrics.PaymentReviewed(reviewRejected, 0)
	return rejected, nil
}

// Reverse books a compensating entry for an approved payment. The payment keeps its review
// history and its obligation becomes payable again.
func (s *PaymentService) Reverse(ctx context.Context, actor models.Actor, paymentID string, req dto.ReversePaymentRequest) (*models.LedgerAdjustment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reversal reason is required")
	}
	current, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, loadError(err, "payment")
	}

	var adjustment models.LedgerAdjustment
	var courseID string
	err = s.store.WithEnrollmentLock(ctx, current.EnrollmentID, func(tx repository.EnrollmentTx) error {
		payment, err := lockedPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusApproved || payment.ReversalID != nil {
			return appErrors.Clone(appErrors.ErrInvalidState, "only approved payments that were not reversed can be reversed")
		}
		enrollment := tx.Enrollment()
		before := ledgerState(enrollment)
		id := payment.ID
		adjustment = models.LedgerAdjustment{
			PaymentID: &id,
			Kind:      models.AdjustmentReversal,
			Amount:    payment.Amount,
			Reason:    reason,
			CreatedBy: actor.ID,
			CreatedAt: s.now().UTC(),
		}
		if err := ApplyAdjustment(enrollment, adjustment); err != nil {
			return err
		}
		if err := tx.InsertAdjustment(ctx, &adjustment); err != nil {
			return err
		}
		if err := tx.MarkPaymentReversed(ctx, payment.ID, adjustment.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidState, "payment was already reversed")
			}
			return err
		}
		if err := tx.UpdateEnrollment(ctx); err != nil {
			return err
		}
		courseID = enrollment.CourseID
		return tx.InsertAuditLog(ctx, newAuditLog(ctx, AuditEntry{
			Actor:      actor,
			Action:     models.AuditActionLedgerAdjustment,
			Resource:   "payment",
			ResourceID: payment.ID,
			OldValues:  before,
			NewValues:  map[string]interface{}{"adjustment": adjustment, "ledger": ledgerState(enrollment)},
		}, s.logger))
	})
	if err != nil {
		return nil, lockError(err, "reverse payment")
	}

	s.metrics.LedgerAdjusted(string(adjustment.Kind))
	s.cache.Invalidate(ctx, RosterCacheKey(courseID))
	return &adjustment, nil
}

// Get returns one payment.
func (s *PaymentService) Get(ctx context.Context, actor models.Actor, id string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err, "payment")
	}
	if err := authorizeStudentResource(actor, payment.StudentID); err != nil {
		return nil, err
	}
	return payment, nil
}

// List returns payments matching filter. Students only see their own.
func (s *PaymentService) List(ctx context.Context, actor models.Actor, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	if !actor.IsAdmin() {
		if actor.Kind != models.ActorStudent || actor.ID == "" {
			return nil, nil, appErrors.ErrUnauthorized
		}
		filter.StudentID = actor.ID
	}
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, pagination(filter.Page, filter.PageSize, total), nil
}

// ListForEnrollment returns the payment history of one enrollment.
func (s *PaymentService) ListForEnrollment(ctx context.Context, actor models.Actor, enrollmentID string) ([]models.Payment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, loadError(err, "enrollment")
	}
	if err := authorizeStudentResource(actor, enrollment.StudentID); err != nil {
		return nil, err
	}
	payments, err := s.repo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

func checkAcceptsPayments(enrollment *models.Enrollment) error {
	switch enrollment.Status {
	case models.EnrollmentStatusCancelled:
		return appErrors.Clone(appErrors.ErrInvalidState, "enrollment is cancelled")
	case models.EnrollmentStatusCompleted:
		return appErrors.Clone(appErrors.ErrNoPendingObligation, "enrollment is fully paid")
	}
	return nil
}

// checkExpectedConcept rejects a submission made for a different obligation than the one
// currently due. A concept that is already covered reports the covering payment.
func checkExpectedConcept(expected string, next *models.Obligation, history []models.Payment) error {
	expected = strings.TrimSpace(expected)
	if expected == "" || strings.EqualFold(expected, next.Concept) {
		return nil
	}
	for _, p := range history {
		if p.Covers() && strings.EqualFold(p.Concept, expected) {
			return appErrors.WithDetails(
				appErrors.Clone(appErrors.ErrDuplicateObligation, expected+" is already covered"),
				map[string]interface{}{"existing_payment_id": p.ID, "concept": p.Concept},
			)
		}
	}
	return appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrValidation, "next payable obligation is "+next.Concept),
		map[string]interface{}{"expected_concept": next.Concept, "amount": next.Amount.StringFixed(models.MoneyScale)},
	)
}

func parseDeclared(req dto.SubmitPaymentRequest) (*models.Payment, error) {
	payment := &models.Payment{
		DeclaredSender:     optionalString(req.DeclaredSender),
		DeclaredBank:       optionalString(req.DeclaredBank),
		DestinationAccount: optionalString(req.DestinationAccount),
		Notes:              optionalString(req.Notes),
	}
	if raw := strings.TrimSpace(req.DeclaredAmount); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "declared amount is not a number")
		}
		payment.DeclaredAmount = decimal.NewNullDecimal(models.RoundMoney(amount))
	}
	if raw := strings.TrimSpace(req.DeclaredDate); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "declared date must be YYYY-MM-DD")
		}
		payment.DeclaredDate = &date
	}
	return payment, nil
}

func lockedPayment(ctx context.Context, tx repository.EnrollmentTx, paymentID string) (*models.Payment, error) {
	payment, err := tx.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, err
	}
	return payment, nil
}

func paymentStateError(payment *models.Payment, action string) error {
	return appErrors.WithDetails(
		appErrors.Clone(appErrors.ErrInvalidState, "payment is "+strings.ToLower(string(payment.Status))+" and cannot be "+action),
		map[string]interface{}{"status": payment.Status},
	)
}

func duplicateObligation(payment *models.Payment, existingID string) error {
	details := map[string]interface{}{"concept": payment.Concept}
	if existingID != "" {
		details["existing_payment_id"] = existingID
	}
	return appErrors.WithDetails(appErrors.Clone(appErrors.ErrDuplicateObligation, payment.Concept+" is already paid"), details)
}

func obligationKind(installment *int) string {
	if installment == nil {
		return "down_payment"
	}
	return "installment"
}

func optionalString(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
