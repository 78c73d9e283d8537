package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
	"github.com/noah-isme/enrollment-finance-api/internal/repository"
)

var (
	fixedNow     = time.Date(2025, 3, 10, 15, 4, 5, 0, time.UTC)
	adminActor   = models.Actor{Kind: models.ActorAdmin, ID: "admin-1", Role: models.RoleAdmin}
	studentActor = models.Actor{Kind: models.ActorStudent, ID: "stu-1", Role: models.RoleStudent}
	otherStudent = models.Actor{Kind: models.ActorStudent, ID: "stu-2", Role: models.RoleStudent}
)

func fixedClock() time.Time { return fixedNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// memoryLedger is an in-memory stand-in for the enrollment, payment and adjustment tables.
// WithEnrollmentLock serializes callers and restores the previous state when fn fails.
type memoryLedger struct {
	mu          sync.Mutex
	enrollments map[string]*models.Enrollment
	payments    []*models.Payment
	adjustments []models.LedgerAdjustment
	audits      []*models.AuditLog
	seq         int
	updateErr   error
	listErr     error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{enrollments: map[string]*models.Enrollment{}}
}

func (l *memoryLedger) nextID(prefix string) string {
	l.seq++
	return fmt.Sprintf("%s-%d", prefix, l.seq)
}

func (l *memoryLedger) put(e *models.Enrollment) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enrollments[e.ID] = cloneEnrollment(e)
}

func (l *memoryLedger) seedPayment(p models.Payment) *models.Payment {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p.ID == "" {
		p.ID = l.nextID("pay")
	}
	stored := p
	l.payments = append(l.payments, &stored)
	out := stored
	return &out
}

func (l *memoryLedger) enrollment(id string) *models.Enrollment {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.enrollments[id]
	if !ok {
		return nil
	}
	return cloneEnrollment(e)
}

func (l *memoryLedger) auditActions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.audits))
	for _, a := range l.audits {
		out = append(out, a.Action)
	}
	return out
}

func cloneEnrollment(e *models.Enrollment) *models.Enrollment {
	c := *e
	c.Requisitos = append(models.Requisitos(nil), e.Requisitos...)
	return &c
}

// enrollmentRepository

func (l *memoryLedger) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listErr != nil {
		return nil, 0, l.listErr
	}
	out := make([]models.EnrollmentDetail, 0)
	for _, e := range l.enrollments {
		if filter.StudentID != "" && e.StudentID != filter.StudentID {
			continue
		}
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *cloneEnrollment(e)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (l *memoryLedger) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	e := l.enrollment(id)
	if e == nil {
		return nil, sql.ErrNoRows
	}
	return e, nil
}

func (l *memoryLedger) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e := l.enrollment(id)
	if e == nil {
		return nil, sql.ErrNoRows
	}
	return &models.EnrollmentDetail{Enrollment: *e, StudentName: "Student " + e.StudentID, StudentCarnet: "C-" + e.StudentID, CourseName: "Course " + e.CourseID}, nil
}

func (l *memoryLedger) ExistsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID && e.Status != models.EnrollmentStatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (l *memoryLedger) Create(ctx context.Context, e *models.Enrollment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.ID == "" {
		e.ID = l.nextID("enr")
	}
	l.enrollments[e.ID] = cloneEnrollment(e)
	return nil
}

// paymentRepository and paymentHistoryReader

type paymentLookup struct{ l *memoryLedger }

func (p paymentLookup) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	p.l.mu.Lock()
	defer p.l.mu.Unlock()
	for _, pay := range p.l.payments {
		if pay.ID == id {
			out := *pay
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (p paymentLookup) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	p.l.mu.Lock()
	defer p.l.mu.Unlock()
	out := make([]models.Payment, 0)
	for _, pay := range p.l.payments {
		if filter.StudentID != "" && pay.StudentID != filter.StudentID {
			continue
		}
		if filter.EnrollmentID != "" && pay.EnrollmentID != filter.EnrollmentID {
			continue
		}
		if filter.Status != "" && pay.Status != filter.Status {
			continue
		}
		out = append(out, *pay)
	}
	return out, len(out), nil
}

func (p paymentLookup) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	p.l.mu.Lock()
	defer p.l.mu.Unlock()
	return p.l.paymentsFor(enrollmentID), nil
}

func (p paymentLookup) ListAdjustments(ctx context.Context, enrollmentID string) ([]models.LedgerAdjustment, error) {
	p.l.mu.Lock()
	defer p.l.mu.Unlock()
	out := make([]models.LedgerAdjustment, 0)
	for _, a := range p.l.adjustments {
		if a.EnrollmentID == enrollmentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (l *memoryLedger) paymentsFor(enrollmentID string) []models.Payment {
	out := make([]models.Payment, 0)
	for _, pay := range l.payments {
		if pay.EnrollmentID == enrollmentID {
			out = append(out, *pay)
		}
	}
	return out
}

// enrollmentLocker

func (l *memoryLedger) WithEnrollmentLock(ctx context.Context, enrollmentID string, fn func(tx repository.EnrollmentTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, ok := l.enrollments[enrollmentID]
	if !ok {
		return sql.ErrNoRows
	}
	saved := l.snapshot()
	tx := &memoryTx{l: l, enrollment: cloneEnrollment(stored)}
	if err := fn(tx); err != nil {
		l.restore(saved)
		return err
	}
	return nil
}

type ledgerSnapshot struct {
	enrollments map[string]*models.Enrollment
	payments    []*models.Payment
	adjustments []models.LedgerAdjustment
	audits      []*models.AuditLog
}

func (l *memoryLedger) snapshot() ledgerSnapshot {
	s := ledgerSnapshot{enrollments: make(map[string]*models.Enrollment, len(l.enrollments))}
	for id, e := range l.enrollments {
		s.enrollments[id] = cloneEnrollment(e)
	}
	for _, p := range l.payments {
		c := *p
		s.payments = append(s.payments, &c)
	}
	s.adjustments = append(s.adjustments, l.adjustments...)
	s.audits = append(s.audits, l.audits...)
	return s
}

func (l *memoryLedger) restore(s ledgerSnapshot) {
	l.enrollments = s.enrollments
	l.payments = s.payments
	l.adjustments = s.adjustments
	l.audits = s.audits
}

type memoryTx struct {
	l          *memoryLedger
	enrollment *models.Enrollment
}

func (t *memoryTx) Enrollment() *models.Enrollment { return t.enrollment }

func (t *memoryTx) ListPayments(ctx context.Context) ([]models.Payment, error) {
	return t.l.paymentsFor(t.enrollment.ID), nil
}

func (t *memoryTx) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	for _, p := range t.l.payments {
		if p.ID == paymentID && p.EnrollmentID == t.enrollment.ID {
			out := *p
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *memoryTx) FindApprovedForObligation(ctx context.Context, key models.ObligationKey, excludeID string) (*models.Payment, error) {
	for _, p := range t.l.payments {
		if p.EnrollmentID == t.enrollment.ID && p.ID != excludeID && p.Status == models.PaymentStatusApproved &&
			p.ReversalID == nil && p.ObligationKey() == key {
			out := *p
			return &out, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = t.l.nextID("pay")
	}
	payment.EnrollmentID = t.enrollment.ID
	stored := *payment
	t.l.payments = append(t.l.payments, &stored)
	return nil
}

func (t *memoryTx) SavePaymentReview(ctx context.Context, payment *models.Payment) error {
	if payment.Status == models.PaymentStatusApproved {
		for _, p := range t.l.payments {
			if p.ID != payment.ID && p.EnrollmentID == payment.EnrollmentID && p.Status == models.PaymentStatusApproved &&
				p.ReversalID == nil && p.ObligationKey() == payment.ObligationKey() {
				return &pq.Error{Code: "23505"}
			}
		}
	}
	for _, p := range t.l.payments {
		if p.ID == payment.ID {
			*p = *payment
			return nil
		}
	}
	return sql.ErrNoRows
}

func (t *memoryTx) MarkPaymentReversed(ctx context.Context, paymentID, adjustmentID string) error {
	for _, p := range t.l.payments {
		if p.ID == paymentID && p.ReversalID == nil {
			id := adjustmentID
			p.ReversalID = &id
			return nil
		}
	}
	return sql.ErrNoRows
}

func (t *memoryTx) InsertAdjustment(ctx context.Context, adjustment *models.LedgerAdjustment) error {
	if adjustment.ID == "" {
		adjustment.ID = t.l.nextID("adj")
	}
	adjustment.EnrollmentID = t.enrollment.ID
	t.l.adjustments = append(t.l.adjustments, *adjustment)
	return nil
}

func (t *memoryTx) UpdateEnrollment(ctx context.Context) error {
	if t.l.updateErr != nil {
		return t.l.updateErr
	}
	t.l.enrollments[t.enrollment.ID] = cloneEnrollment(t.enrollment)
	return nil
}

func (t *memoryTx) InsertAuditLog(ctx context.Context, log *models.AuditLog) error {
	t.l.audits = append(t.l.audits, log)
	return nil
}

// catalog stubs

type studentStub map[string]*models.Student

func (s studentStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if st, ok := s[id]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

type courseStub map[string]*models.Course

func (s courseStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := s[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type discountStub map[string]*models.Discount

func (s discountStub) FindByID(ctx context.Context, id string) (*models.Discount, error) {
	if d, ok := s[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

// financeFixture wires the enrollment, payment and requisito services over one ledger.
type financeFixture struct {
	ledger      *memoryLedger
	students    studentStub
	courses     courseStub
	discounts   discountStub
	enrollments *EnrollmentService
	payments    *PaymentService
	requisitos  *RequisitoService
}

func newFinanceFixture() *financeFixture {
	f := &financeFixture{
		ledger: newMemoryLedger(),
		students: studentStub{
			"stu-1": {ID: "stu-1", Carnet: "2025-001", FullName: "Ana López", StudentType: models.StudentTypeInternal, Active: true},
			"stu-2": {ID: "stu-2", Carnet: "2025-002", FullName: "Luis Pérez", StudentType: models.StudentTypeExternal, Active: true},
		},
		courses: courseStub{
			"course-1": {
				ID:                  "course-1",
				Name:                "Diplomado en Finanzas",
				CostInternal:        dec("1000"),
				CostExternal:        dec("1200"),
				DownPaymentInternal: dec("200"),
				DownPaymentExternal: dec("300"),
				InstallmentCount:    4,
				RequirementLabels:   []string{"DPI", "Título universitario"},
				Active:              true,
			},
		},
		discounts: discountStub{},
	}
	resolver := NewDiscountResolver(f.discounts, true, nil)
	resolver.now = fixedClock
	payments := paymentLookup{l: f.ledger}
	f.enrollments = NewEnrollmentService(f.ledger, f.ledger, payments, f.students, f.courses, resolver, nil, nil,
		WithEnrollmentClock(fixedClock))
	f.payments = NewPaymentService(payments, f.ledger, f.ledger, nil, nil, WithPaymentClock(fixedClock))
	f.requisitos = NewRequisitoService(f.ledger, f.ledger, nil, nil)
	f.requisitos.now = fixedClock
	return f
}

// pricedEnrollment builds an internal student enrollment without discounts.
func pricedEnrollment(cost, down string, count int) *models.Enrollment {
	snapshot, err := BuildPricingSnapshot(models.Course{
		CostInternal:        dec(cost),
		DownPaymentInternal: dec(down),
		InstallmentCount:    count,
	}, models.StudentTypeInternal, decimal.Zero, decimal.Zero)
	if err != nil {
		panic(err)
	}
	e := &models.Enrollment{
		ID:              "enr-1",
		StudentID:       "stu-1",
		CourseID:        "course-1",
		PricingSnapshot: snapshot,
		Status:          models.EnrollmentStatusPendingPayment,
		Requisitos:      models.NewRequisitos([]string{"DPI", "Título universitario"}),
	}
	RecomputeBalance(e)
	return e
}

// obligationPayment builds a payment for the matrícula when n is 0, otherwise for installment n.
func obligationPayment(id string, n int, amount string, status models.PaymentStatus) models.Payment {
	p := models.Payment{
		ID:           id,
		EnrollmentID: "enr-1",
		StudentID:    "stu-1",
		CourseID:     "course-1",
		Concept:      models.ConceptDownPayment,
		Amount:       dec(amount),
		Status:       status,
	}
	if n > 0 {
		num := n
		p.Concept = models.InstallmentConcept(n)
		p.InstallmentNumber = &num
	}
	return p
}
