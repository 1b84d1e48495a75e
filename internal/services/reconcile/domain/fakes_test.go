package domain

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"
)

type fakeMailbox struct {
	emails []CandidateEmail
	err    error
}

func (m *fakeMailbox) SearchCandidateEmails(_ context.Context, _ SearchQuery) iter.Seq2[CandidateEmail, error] {
	return func(yield func(CandidateEmail, error) bool) {
		for _, email := range m.emails {
			if !yield(email, nil) {
				return
			}
		}
		if m.err != nil {
			yield(CandidateEmail{}, m.err)
		}
	}
}

type fakeRoster struct {
	records []RosterRecord
	err     error
}

func (r *fakeRoster) ListRoster(context.Context) ([]RosterRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	return append([]RosterRecord(nil), r.records...), nil
}

func (r *fakeRoster) LookupByGuardian(_ context.Context, name, email string) ([]RosterRecord, error) {
	var out []RosterRecord
	for _, record := range r.records {
		if FoldName(record.GuardianName) == FoldName(name) && FoldEmail(record.GuardianEmail) == FoldEmail(email) {
			out = append(out, record)
		}
	}
	return out, nil
}

type memInvoiceStore struct {
	mu        sync.Mutex
	invoices  []Invoice
	queryErr  error
	appendErr error
	appends   int
}

func (s *memInvoiceStore) QueryByStudentAndMonth(_ context.Context, email string, period BillingPeriod) ([]Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []Invoice
	for _, invoice := range s.invoices {
		if FoldEmail(invoice.Student.Email) == FoldEmail(email) && invoice.Period == period {
			out = append(out, invoice)
		}
	}
	return out, nil
}

func (s *memInvoiceStore) Append(_ context.Context, invoice Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.appendErr != nil {
		return s.appendErr
	}
	for _, existing := range s.invoices {
		if existing.Number == invoice.Number {
			return ErrInvoiceNumberTaken
		}
		if FoldEmail(existing.Student.Email) == FoldEmail(invoice.Student.Email) && existing.Period == invoice.Period {
			return ErrInvoicePeriodTaken
		}
	}
	s.invoices = append(s.invoices, invoice)
	return nil
}

func (s *memInvoiceStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

type sentReceipt struct {
	recipient string
	invoice   Invoice
}

type fakeReceipts struct {
	mu   sync.Mutex
	sent []sentReceipt
	err  error
}

func (r *fakeReceipts) SendReceipt(_ context.Context, recipient string, invoice Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sentReceipt{recipient: recipient, invoice: invoice})
	return nil
}

func sequentialNumbers() InvoiceNumberFunc {
	var (
		mu   sync.Mutex
		next = 1000
	)
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("INV-%d", next), nil
	}
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
