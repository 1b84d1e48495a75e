// Package storage defines the persistence contracts for reconciliation:
// the roster, issued invoices, and run history.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a uniqueness violation other than the billing period.
	ErrConflict = errors.New("record conflict")
	// ErrPeriodTaken indicates an invoice already exists for the student and
	// billing period.
	ErrPeriodTaken = errors.New("billing period already invoiced")
)

// RosterRecord is one roster row.
type RosterRecord struct {
	ID             int64
	StudentName    string
	GuardianName   string
	GuardianEmail  string
	StudentEmail   string
	ExpectedAmount decimal.Decimal
	Phone          string
	Address        string
	Active         bool
	UpdatedAt      time.Time
}

// RosterStore reads and replaces the roster.
type RosterStore interface {
	ListRoster(ctx context.Context) ([]RosterRecord, error)
	LookupByGuardian(ctx context.Context, guardianName, guardianEmail string) ([]RosterRecord, error)
	ReplaceRoster(ctx context.Context, records []RosterRecord) error
}

// InvoiceRecord is one issued invoice. Document holds the persisted invoice
// JSON; the other fields are its indexed projection.
type InvoiceRecord struct {
	InvoiceNumber   string
	StudentEmail    string
	BillingPeriod   string
	FeePaidAt       time.Time
	TotalAmount     decimal.Decimal
	SourceMessageID string
	Document        []byte
	CreatedAt       time.Time
}

// InvoiceStore persists invoices. Appends are unique per invoice number and
// per (student email, billing period).
type InvoiceStore interface {
	AppendInvoice(ctx context.Context, record InvoiceRecord) error
	ListInvoicesForPeriod(ctx context.Context, studentEmail, billingPeriod string) ([]InvoiceRecord, error)
	GetInvoice(ctx context.Context, invoiceNumber string) (InvoiceRecord, error)
}

// RunRecord is one durable reconciliation run summary.
type RunRecord struct {
	ID                 int64
	RunID              string
	Trigger            string
	Status             string
	DryRun             bool
	Candidates         int
	Invoiced           int
	Skipped            int
	Failed             int
	NotificationFailed int
	LastError          string
	StartedAt          time.Time
	FinishedAt         time.Time
}

// RunStore persists reconciliation run history.
type RunStore interface {
	RecordRun(ctx context.Context, run RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
