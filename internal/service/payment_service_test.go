package service

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/enrollment-finance-api/internal/dto"
	"github.com/noah-isme/enrollment-finance-api/internal/models"
	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

type recordingDocuments struct {
	saved     []string
	discarded []string
}

func (r *recordingDocuments) Save(ctx context.Context, folder, owner string, upload DocumentUpload) (*StoredDocument, error) {
	key := folder + "/" + owner + "/" + upload.Filename
	r.saved = append(r.saved, key)
	return &StoredDocument{Key: key, URL: "http://files.test/" + key, ContentType: "application/pdf", Size: upload.Size}, nil
}

func (r *recordingDocuments) Discard(ctx context.Context, doc *StoredDocument) {
	if doc != nil {
		r.discarded = append(r.discarded, doc.Key)
	}
}

func (f *financeFixture) submit(t *testing.T, enrollmentID, txn string) *models.Payment {
	t.Helper()
	payment, err := f.payments.Submit(context.Background(), studentActor, enrollmentID, dto.SubmitPaymentRequest{TransactionNumber: txn}, nil)
	require.NoError(t, err)
	return payment
}

func TestPaymentWorkflowFullSchedule(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")

	down := f.submit(t, enrollment.ID, "TX-0")
	assert.Equal(t, models.ConceptDownPayment, down.Concept)
	assert.True(t, down.Amount.Equal(dec("200")))
	assert.Equal(t, models.PaymentStatusPending, down.Status)
	assert.Equal(t, "stu-1", down.StudentID)
	assert.Equal(t, "course-1", down.CourseID)

	approved, err := f.payments.Approve(context.Background(), adminActor, down.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, "admin-1", *approved.ReviewedBy)
	require.NotNil(t, approved.ReviewedAt)
	assert.Equal(t, fixedNow, *approved.ReviewedAt)
	assert.Equal(t, models.EnrollmentStatusActive, f.ledger.enrollment(enrollment.ID).Status)

	for i := 1; i <= 4; i++ {
		p := f.submit(t, enrollment.ID, "TX")
		require.NotNil(t, p.InstallmentNumber)
		assert.Equal(t, i, *p.InstallmentNumber)
		assert.True(t, p.Amount.Equal(dec("200")))
		_, err := f.payments.Approve(context.Background(), adminActor, p.ID)
		require.NoError(t, err)
	}

	stored := f.ledger.enrollment(enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusCompleted, stored.Status)
	assert.True(t, stored.BalanceDue.IsZero())
	assert.True(t, stored.TotalPaid.Equal(dec("1000")))

	_, err = f.payments.Submit(context.Background(), studentActor, enrollment.ID, dto.SubmitPaymentRequest{TransactionNumber: "TX-9"}, nil)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNoPendingObligation.Code))
}

func TestPaymentCreditWhileInstallmentsPending(t *testing.T) {
	f := newFinanceFixture()
	ctx := context.Background()
	enrollment := f.enroll(t, "stu-1")

	down := f.submit(t, enrollment.ID, "TX-0")
	_, err := f.payments.Approve(ctx, adminActor, down.ID)
	require.NoError(t, err)

	pending := make([]*models.Payment, 0, 4)
	for i := 1; i <= 3; i++ {
		pending = append(pending, f.submit(t, enrollment.ID, "TX"))
	}
	_, err = f.enrollments.AdjustBalance(ctx, adminActor, enrollment.ID, dto.AdjustBalanceRequest{Amount: dec("150"), Reason: "beca parcial"})
	require.NoError(t, err)

	last := f.submit(t, enrollment.ID, "TX-4")
	require.NotNil(t, last.InstallmentNumber)
	assert.Equal(t, 4, *last.InstallmentNumber)
	assert.True(t, last.Amount.Equal(dec("50")), last.Amount.String())
	pending = append(pending, last)

	for _, p := range pending {
		_, err := f.payments.Approve(ctx, adminActor, p.ID)
		require.NoError(t, err)
	}

	stored := f.ledger.enrollment(enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusCompleted, stored.Status)
	assert.True(t, stored.TotalDue.Equal(dec("850")), stored.TotalDue.String())
	assert.True(t, stored.TotalPaid.Equal(dec("850")), stored.TotalPaid.String())
	assert.True(t, stored.BalanceDue.IsZero())
}

func TestPaymentSubmitIgnoresDeclaredAmount(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")

	p, err := f.payments.Submit(context.Background(), studentActor, enrollment.ID, dto.SubmitPaymentRequest{
		TransactionNumber: " TX-1 ",
		DeclaredAmount:    "5000",
		DeclaredDate:      "2025-03-09",
		DeclaredBank:      "Banco Industrial",
	}, nil)
	require.NoError(t, err)
	assert.True(t, p.Amount.Equal(dec("200")))
	require.True(t, p.DeclaredAmount.Valid)
	assert.True(t, p.DeclaredAmount.Decimal.Equal(dec("5000")))
	require.NotNil(t, p.DeclaredDate)
	assert.Equal(t, 9, p.DeclaredDate.Day())
	assert.Equal(t, "TX-1", p.TransactionNumber)
	require.NotNil(t, p.DeclaredBank)
}

func TestPaymentSubmitRejections(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")

	_, err := f.payments.Submit(context.Background(), otherStudent, enrollment.ID, dto.SubmitPaymentRequest{TransactionNumber: "TX"}, nil)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrOwnershipViolation.Code))

	_, err = f.payments.Submit(context.Background(), studentActor, enrollment.ID, dto.SubmitPaymentRequest{}, nil)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	_, err = f.payments.Submit(context.Background(), studentActor, "missing", dto.SubmitPaymentRequest{TransactionNumber: "TX"}, nil)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))

	_, err = f.enrollments.ChangeStatus(context.Background(), adminActor, enrollment.ID, dto.ChangeEnrollmentStatusRequest{Status: models.EnrollmentStatusCancelled})
	require.NoError(t, err)
	_, err = f.payments.Submit(context.Background(), studentActor, enrollment.ID, dto.SubmitPaymentRequest{TransactionNumber: "TX"}, nil)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState.Code))
}

func TestPaymentSubmitChecksExpectedConcept(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")

	_, err := f.payments.Submit(context.Background(), studentActor, enrollment.ID, dto.SubmitPaymentRequest{TransactionNumber: "TX", Concept: "Cuota 3"}, nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, models.ConceptDownPayment, appErr.Details["expected_concept"])

	first, err := f.payments.Submit(context.Background(), studentActor, enrollment.ID, dto.SubmitPaymentRequest{TransactionNumber: "TX", Concept: models.ConceptDownPayment}, nil)
	require.NoError(t, err)

	_, err = f.payments.Submit(context.Background(), studentActor, enrollment.ID, dto.SubmitPaymentRequest{TransactionNumber: "TX", Concept: models.ConceptDownPayment}, nil)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrDuplicateObligation.Code, appErr.Code)
	assert.Equal(t, first.ID, appErr.Details["existing_payment_id"])
}

func TestPaymentSubmitStoresAndDiscardsVoucher(t *testing.T) {
	f := newFinanceFixture()
	docs := &recordingDocuments{}
	f.payments = NewPaymentService(paymentLookup{l: f.ledger}, f.ledger, f.ledger, nil, nil,
		WithPaymentDocuments(docs), WithPaymentClock(fixedClock))
	enrollment := f.enroll(t, "stu-1")
	voucher := &DocumentUpload{Filename: "boleta.pdf", Size: 4, Content: bytes.NewReader([]byte("%PDF"))}

	p, err := f.payments.Submit(context.Background(), studentActor, enrollment.ID, dto.SubmitPaymentRequest{TransactionNumber: "TX"}, voucher)
	require.NoError(t, err)
	require.NotNil(t, p.VoucherURL)
	assert.Equal(t, "http://files.test/vouchers/stu-1/boleta.pdf", *p.VoucherURL)
	assert.Empty(t, docs.discarded)

	_, err = f.payments.Submit(context.Background(), studentActor, enrollment.ID, dto.SubmitPaymentRequest{TransactionNumber: "TX", Concept: "Cuota 4"}, voucher)
	require.Error(t, err)
	assert.Equal(t, []string{"vouchers/stu-1/boleta.pdf"}, docs.discarded)
}

func TestPaymentApproveRequiresPending(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")
	p := f.submit(t, enrollment.ID, "TX")

	_, err := f.payments.Approve(context.Background(), studentActor, p.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))

	_, err = f.payments.Approve(context.Background(), adminActor, p.ID)
	require.NoError(t, err)
	paid := f.ledger.enrollment(enrollment.ID).TotalPaid

	for i := 0; i < 2; i++ {
		_, err = f.payments.Approve(context.Background(), adminActor, p.ID)
		assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState.Code))
		assert.True(t, f.ledger.enrollment(enrollment.ID).TotalPaid.Equal(paid))
	}

	_, err = f.payments.Approve(context.Background(), adminActor, "missing")
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound.Code))
}

func TestPaymentApproveOnCancelledEnrollment(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")
	p := f.submit(t, enrollment.ID, "TX")
	_, err := f.enrollments.ChangeStatus(context.Background(), adminActor, enrollment.ID, dto.ChangeEnrollmentStatusRequest{Status: models.EnrollmentStatusCancelled})
	require.NoError(t, err)

	_, err = f.payments.Approve(context.Background(), adminActor, p.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState.Code))
	assert.True(t, f.ledger.enrollment(enrollment.ID).TotalPaid.IsZero())
}

func TestPaymentApproveIsAtomicWithLedger(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")
	p := f.submit(t, enrollment.ID, "TX")
	f.ledger.updateErr = assert.AnError

	_, err := f.payments.Approve(context.Background(), adminActor, p.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))

	stored, err := f.payments.Get(context.Background(), adminActor, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
	assert.Nil(t, stored.ReviewedBy)
	assert.Empty(t, f.ledger.auditActions())
}

func TestPaymentRejectFreesObligation(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")

	_, err := f.payments.Reject(context.Background(), adminActor, "does-not-exist", dto.RejectPaymentRequest{Reason: "  "})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	p := f.submit(t, enrollment.ID, "TX")
	rejected, err := f.payments.Reject(context.Background(), adminActor, p.ID, dto.RejectPaymentRequest{Reason: "monto no coincide"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "monto no coincide", *rejected.RejectionReason)
	assert.Equal(t, models.EnrollmentStatusPendingPayment, f.ledger.enrollment(enrollment.ID).Status)

	_, err = f.payments.Reject(context.Background(), adminActor, p.ID, dto.RejectPaymentRequest{Reason: "again"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState.Code))

	retry := f.submit(t, enrollment.ID, "TX-2")
	assert.Equal(t, models.ConceptDownPayment, retry.Concept)
	assert.Equal(t, []string{models.AuditActionPaymentReject}, f.ledger.auditActions())
}

func TestPaymentReverseReopensObligation(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")
	p := f.submit(t, enrollment.ID, "TX")
	_, err := f.payments.Approve(context.Background(), adminActor, p.ID)
	require.NoError(t, err)

	_, err = f.payments.Reverse(context.Background(), adminActor, p.ID, dto.ReversePaymentRequest{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))

	adj, err := f.payments.Reverse(context.Background(), adminActor, p.ID, dto.ReversePaymentRequest{Reason: "fondos rechazados por el banco"})
	require.NoError(t, err)
	assert.Equal(t, models.AdjustmentReversal, adj.Kind)
	require.NotNil(t, adj.PaymentID)
	assert.Equal(t, p.ID, *adj.PaymentID)
	assert.True(t, adj.Amount.Equal(dec("200")))

	stored := f.ledger.enrollment(enrollment.ID)
	assert.True(t, stored.TotalPaid.Equal(dec("200")))
	assert.True(t, stored.TotalDue.Equal(dec("1200")))
	assert.True(t, stored.BalanceDue.Equal(dec("1000")))

	reversed, err := f.payments.Get(context.Background(), studentActor, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, reversed.Status)
	require.NotNil(t, reversed.ReversalID)
	assert.Equal(t, adj.ID, *reversed.ReversalID)

	next, err := f.enrollments.NextObligation(context.Background(), studentActor, enrollment.ID)
	require.NoError(t, err)
	require.NotNil(t, next.Obligation)
	assert.Equal(t, models.ConceptDownPayment, next.Obligation.Concept)

	_, err = f.payments.Reverse(context.Background(), adminActor, p.ID, dto.ReversePaymentRequest{Reason: "twice"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidState.Code))

	again := f.submit(t, enrollment.ID, "TX-2")
	_, err = f.payments.Approve(context.Background(), adminActor, again.ID)
	require.NoError(t, err)
}

func TestPaymentConcurrentSubmissionsGetDistinctObligations(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")

	const workers = 5
	var wg sync.WaitGroup
	results := make(chan *models.Payment, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := f.payments.Submit(context.Background(), studentActor, enrollment.ID, dto.SubmitPaymentRequest{TransactionNumber: "TX"}, nil)
			if err == nil {
				results <- p
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[models.ObligationKey]bool{}
	for p := range results {
		assert.False(t, seen[p.ObligationKey()], "obligation %s submitted twice", p.Concept)
		seen[p.ObligationKey()] = true
	}
	assert.Len(t, seen, workers)
}

func TestPaymentConcurrentApprovalsOfSameObligation(t *testing.T) {
	f := newFinanceFixture()
	enrollment := f.enroll(t, "stu-1")
	first := f.ledger.seedPayment(obligationPayment("", 0, "200", models.PaymentStatusPending))
	second := f.ledger.seedPayment(obligationPayment("", 0, "200", models.PaymentStatusPending))
	require.Equal(t, "enr-1", enrollment.ID)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.payments.Approve(context.Background(), adminActor, id)
		}(i, id)
	}
	wg.Wait()

	var winner string
	var loser error
	switch {
	case errs[0] == nil && errs[1] != nil:
		winner, loser = first.ID, errs[1]
	case errs[1] == nil && errs[0] != nil:
		winner, loser = second.ID, errs[0]
	default:
		t.Fatalf("expected exactly one approval, got %v and %v", errs[0], errs[1])
	}
	var appErr *appErrors.Error
	require.ErrorAs(t, loser, &appErr)
	assert.Equal(t, appErrors.ErrDuplicateObligation.Code, appErr.Code)
	assert.Equal(t, winner, appErr.Details["existing_payment_id"])
	assert.True(t, f.ledger.enrollment(enrollment.ID).TotalPaid.Equal(dec("200")))
}

func TestPaymentListScopesStudents(t *testing.T) {
	f := newFinanceFixture()
	mine := f.enroll(t, "stu-1")
	theirs := f.enroll(t, "stu-2")
	f.submit(t, mine.ID, "TX-1")
	_, err := f.payments.Submit(context.Background(), otherStudent, theirs.ID, dto.SubmitPaymentRequest{TransactionNumber: "TX-2"}, nil)
	require.NoError(t, err)

	items, pagination, err := f.payments.List(context.Background(), studentActor, models.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "stu-1", items[0].StudentID)
	assert.Equal(t, 1, pagination.TotalCount)

	all, _, err := f.payments.List(context.Background(), adminActor, models.PaymentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.payments.ListForEnrollment(context.Background(), studentActor, theirs.ID)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrOwnershipViolation.Code))
	_, err = f.payments.Get(context.Background(), studentActor, items[0].ID)
	require.NoError(t, err)
}
