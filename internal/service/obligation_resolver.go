package service

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/enrollment-finance-api/internal/models"
)

// scheduledObligations lists the matrícula followed by installments 1..N. Zero amount
// entries are skipped because nothing can be paid against them.
func scheduledObligations(snapshot models.PricingSnapshot) []models.Obligation {
	out := make([]models.Obligation, 0, snapshot.InstallmentCount+1)
	if snapshot.DownPayment.IsPositive() {
		out = append(out, models.Obligation{Concept: models.ConceptDownPayment, Amount: snapshot.DownPayment})
	}
	for i := 1; i <= snapshot.InstallmentCount; i++ {
		amount := InstallmentAmountFor(snapshot, i)
		if !amount.IsPositive() {
			continue
		}
		n := i
		out = append(out, models.Obligation{Concept: models.InstallmentConcept(n), InstallmentNumber: &n, Amount: amount})
	}
	return out
}

// coverage indexes the payments that currently occupy an obligation slot.
func coverage(payments []models.Payment) (map[models.ObligationKey]models.Payment, decimal.Decimal) {
	covered := make(map[models.ObligationKey]models.Payment, len(payments))
	pending := decimal.Zero
	for _, p := range payments {
		if !p.Covers() {
			continue
		}
		key := p.ObligationKey()
		if existing, ok := covered[key]; ok && existing.Status == models.PaymentStatusApproved {
			continue
		}
		covered[key] = p
		if p.Status == models.PaymentStatusPending {
			pending = pending.Add(p.Amount)
		}
	}
	return covered, pending
}

// NextObligation returns the lowest unmet obligation of the enrollment, or nil when every
// obligation is covered by a pending or approved payment or the balance is settled.
//
// Rejected and reversed payments free their slot, so earlier gaps are offered before later
// installments. Amounts are capped at the balance not yet claimed by pending payments, and
// the last open slot is priced at exactly that remainder. If all scheduled slots are
// approved but a balance remains (after a repricing or a reversal), an extra installment
// N+k collects it.
func NextObligation(enrollment *models.Enrollment, payments []models.Payment) *models.Obligation {
	if enrollment == nil || models.IsSettled(enrollment.BalanceDue) {
		return nil
	}
	covered, pending := coverage(payments)

	open := make([]models.Obligation, 0)
	for _, ob := range scheduledObligations(enrollment.PricingSnapshot) {
		if _, ok := covered[ob.Key()]; !ok {
			open = append(open, ob)
		}
	}

	// Pending payments will consume part of the balance once approved.
	remaining := enrollment.BalanceDue.Sub(pending)
	if models.IsSettled(remaining) {
		return nil
	}

	if len(open) > 0 {
		next := open[0]
		if len(open) == 1 || next.Amount.GreaterThan(remaining) {
			next.Amount = remaining
		}
		return &next
	}

	if !pending.IsZero() {
		return nil
	}
	n := enrollment.InstallmentCount + 1
	for {
		key := models.ObligationKey{Concept: models.InstallmentConcept(n), Installment: n}
		if _, ok := covered[key]; !ok {
			break
		}
		n++
	}
	return &models.Obligation{Concept: models.InstallmentConcept(n), InstallmentNumber: &n, Amount: enrollment.BalanceDue}
}

// ObligationSchedule reports every scheduled obligation with the payment covering it.
func ObligationSchedule(enrollment *models.Enrollment, payments []models.Payment) []models.ScheduledObligation {
	covered, _ := coverage(payments)
	scheduled := scheduledObligations(enrollment.PricingSnapshot)
	out := make([]models.ScheduledObligation, 0, len(scheduled))
	seen := make(map[models.ObligationKey]struct{}, len(scheduled))
	for _, ob := range scheduled {
		seen[ob.Key()] = struct{}{}
		out = append(out, scheduleEntry(ob, covered))
	}
	for key, p := range covered {
		if _, ok := seen[key]; ok {
			continue
		}
		extra := models.Obligation{Concept: p.Concept, InstallmentNumber: p.InstallmentNumber, Amount: p.Amount}
		out = append(out, scheduleEntry(extra, covered))
	}
	sortSchedule(out)
	return out
}

func scheduleEntry(ob models.Obligation, covered map[models.ObligationKey]models.Payment) models.ScheduledObligation {
	entry := models.ScheduledObligation{Obligation: ob, Status: models.ObligationOpen}
	if p, ok := covered[ob.Key()]; ok {
		id := p.ID
		entry.PaymentID = &id
		entry.Status = models.ObligationPending
		if p.Status == models.PaymentStatusApproved {
			entry.Status = models.ObligationApproved
			entry.Amount = p.Amount
		}
	}
	return entry
}

func sortSchedule(items []models.ScheduledObligation) {
	order := func(o models.ScheduledObligation) int {
		if o.InstallmentNumber == nil {
			return 0
		}
		return *o.InstallmentNumber
	}
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && order(items[j]) < order(items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
