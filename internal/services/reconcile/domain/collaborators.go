package domain

import (
	"context"
	"iter"
	"time"
)

// DefaultSubjectTerms narrow the mailbox search to auto-deposit notices.
var DefaultSubjectTerms = []string{"Interac e-Transfer", DefaultMarkerPhrase}

// SearchQuery bounds a mailbox search. From is inclusive, To exclusive.
type SearchQuery struct {
	From         time.Time
	To           time.Time
	SubjectTerms []string
}

// DefaultSearchQuery covers the current month in loc up to now.
func DefaultSearchQuery(now time.Time, loc *time.Location) SearchQuery {
	return SearchQuery{
		From:         PeriodOf(now, loc).Start(loc),
		To:           now,
		SubjectTerms: append([]string(nil), DefaultSubjectTerms...),
	}
}

// Mailbox lists candidate payment emails. The sequence is finite and may be
// iterated more than once.
type Mailbox interface {
	SearchCandidateEmails(ctx context.Context, query SearchQuery) iter.Seq2[CandidateEmail, error]
}

// RosterStore is the read-only student roster.
type RosterStore interface {
	ListRoster(ctx context.Context) ([]RosterRecord, error)
	LookupByGuardian(ctx context.Context, guardianName, guardianEmail string) ([]RosterRecord, error)
}

// InvoiceStore is the invoice collection used for dedup and append.
type InvoiceStore interface {
	InvoiceQuerier
	InvoiceAppender
}

// ReceiptSender delivers a receipt for an issued invoice. Delivery is
// attempted once.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, recipientEmail string, invoice Invoice) error
}

// Collaborators groups the external dependencies of a pipeline.
type Collaborators struct {
	Mailbox  Mailbox
	Roster   RosterStore
	Invoices InvoiceStore
	Receipts ReceiptSender
}
