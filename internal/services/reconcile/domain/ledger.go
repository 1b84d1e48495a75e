package domain

import (
	"context"
	"strings"
	"time"
)

// InvoiceQuerier looks up invoices by student and billing period.
type InvoiceQuerier interface {
	QueryByStudentAndMonth(ctx context.Context, studentEmail string, period BillingPeriod) ([]Invoice, error)
}

// BillingPeriodLedger answers whether a student was already invoiced for a
// billing period. The period comes from the payment timestamp, never the
// wall clock, so a late run still lands in the month the money arrived.
type BillingPeriodLedger struct {
	store    InvoiceQuerier
	location *time.Location
}

// NewBillingPeriodLedger builds a ledger that evaluates months in loc.
func NewBillingPeriodLedger(store InvoiceQuerier, loc *time.Location) *BillingPeriodLedger {
	if loc == nil {
		loc = time.UTC
	}
	return &BillingPeriodLedger{store: store, location: loc}
}

// Period returns the billing period for a reference timestamp.
func (l *BillingPeriodLedger) Period(reference time.Time) BillingPeriod {
	return PeriodOf(reference, l.location)
}

// HasInvoiceForPeriod reports whether any invoice exists for studentEmail in
// the billing period containing reference.
func (l *BillingPeriodLedger) HasInvoiceForPeriod(ctx context.Context, studentEmail string, reference time.Time) (bool, error) {
	invoices, err := l.InvoicesForPeriod(ctx, studentEmail, reference)
	if err != nil {
		return false, err
	}
	return len(invoices) > 0, nil
}

// InvoicesForPeriod returns the invoices backing HasInvoiceForPeriod.
func (l *BillingPeriodLedger) InvoicesForPeriod(ctx context.Context, studentEmail string, reference time.Time) ([]Invoice, error) {
	if l == nil || l.store == nil {
		return nil, ErrStoreNotConfigured
	}
	if strings.TrimSpace(studentEmail) == "" {
		return nil, ErrStudentEmailRequired
	}
	period := l.Period(reference)
	invoices, err := l.store.QueryByStudentAndMonth(ctx, studentEmail, period)
	if err != nil {
		return nil, err
	}

	want := FoldEmail(studentEmail)
	matched := invoices[:0:0]
	for _, invoice := range invoices {
		if FoldEmail(invoice.Student.Email) != want {
			continue
		}
		if !period.Contains(invoice.FeePaidDate, l.location) {
			continue
		}
		matched = append(matched, invoice)
	}
	return matched, nil
}
