package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PaymentStatusPaid is the only status the pipeline ever writes.
const PaymentStatusPaid = "Paid"

// InvoiceSchemaVersion is the persisted document version (`__v`).
const InvoiceSchemaVersion = 0

// StudentSnapshot copies the roster contact fields at invoice time.
type StudentSnapshot struct {
	Name    string
	Email   string
	Address string
	Phone   string
}

// InvoiceItem is a line item. Auto-issued invoices carry none.
type InvoiceItem struct {
	Description string
	Amount      decimal.Decimal
}

// Invoice is an issued invoice. The pipeline never mutates one after append.
type Invoice struct {
	Number          string
	Student         StudentSnapshot
	TotalAmount     decimal.Decimal
	Tax             decimal.Decimal
	FeePaidDate     time.Time
	PaymentStatus   string
	Items           []InvoiceItem
	DateIssued      time.Time
	SchemaVersion   int
	Period          BillingPeriod
	SourceMessageID string
}

// InvoiceDocument is the persisted invoice shape. Field names are part of
// the storage contract and must not change.
type InvoiceDocument struct {
	InvoiceNumber string                 `json:"invoicenumber"`
	Students      InvoiceStudentDocument `json:"students"`
	TotalAmount   json.Number            `json:"totalamount"`
	Tax           json.Number            `json:"tax"`
	FeePaidDate   string                 `json:"feepaiddate"`
	PaymentStatus string                 `json:"paymentstatus"`
	Items         []InvoiceItemDocument  `json:"items"`
	DateIssued    int64                  `json:"dateissued"`
	Version       int                    `json:"__v"`
}

// InvoiceStudentDocument is the `students` sub-document.
type InvoiceStudentDocument struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

// InvoiceItemDocument is one persisted line item.
type InvoiceItemDocument struct {
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
}

// Document converts the invoice to its persisted shape.
func (inv Invoice) Document() InvoiceDocument {
	items := make([]InvoiceItemDocument, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, InvoiceItemDocument{
			Description: item.Description,
			Amount:      json.Number(item.Amount.StringFixed(minorUnitPlaces)),
		})
	}
	return InvoiceDocument{
		InvoiceNumber: inv.Number,
		Students: InvoiceStudentDocument{
			Name:    inv.Student.Name,
			Address: inv.Student.Address,
			Email:   inv.Student.Email,
			Phone:   inv.Student.Phone,
		},
		TotalAmount:   json.Number(inv.TotalAmount.StringFixed(minorUnitPlaces)),
		Tax:           json.Number(inv.Tax.StringFixed(minorUnitPlaces)),
		FeePaidDate:   inv.FeePaidDate.UTC().Format(time.RFC3339Nano),
		PaymentStatus: inv.PaymentStatus,
		Items:         items,
		DateIssued:    inv.DateIssued.UnixMilli(),
		Version:       inv.SchemaVersion,
	}
}

// InvoiceFromDocument rebuilds an invoice from its persisted shape. The
// billing period is derived from the fee-paid date in loc.
func InvoiceFromDocument(doc InvoiceDocument, loc *time.Location) (Invoice, error) {
	total, err := decimal.NewFromString(doc.TotalAmount.String())
	if err != nil {
		return Invoice{}, fmt.Errorf("invoice %s total: %w", doc.InvoiceNumber, err)
	}
	tax := decimal.Zero
	if doc.Tax != "" {
		if tax, err = decimal.NewFromString(doc.Tax.String()); err != nil {
			return Invoice{}, fmt.Errorf("invoice %s tax: %w", doc.InvoiceNumber, err)
		}
	}
	feePaid, err := time.Parse(time.RFC3339Nano, doc.FeePaidDate)
	if err != nil {
		return Invoice{}, fmt.Errorf("invoice %s fee paid date: %w", doc.InvoiceNumber, err)
	}
	items := make([]InvoiceItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		amount, err := decimal.NewFromString(item.Amount.String())
		if err != nil {
			return Invoice{}, fmt.Errorf("invoice %s item amount: %w", doc.InvoiceNumber, err)
		}
		items = append(items, InvoiceItem{Description: item.Description, Amount: amount})
	}
	return Invoice{
		Number: doc.InvoiceNumber,
		Student: StudentSnapshot{
			Name:    doc.Students.Name,
			Email:   doc.Students.Email,
			Address: doc.Students.Address,
			Phone:   doc.Students.Phone,
		},
		TotalAmount:   total,
		Tax:           tax,
		FeePaidDate:   feePaid,
		PaymentStatus: doc.PaymentStatus,
		Items:         items,
		DateIssued:    time.UnixMilli(doc.DateIssued).UTC(),
		SchemaVersion: doc.Version,
		Period:        PeriodOf(feePaid, loc),
	}, nil
}

// InvoiceNumberFunc returns a fresh invoice number.
type InvoiceNumberFunc func() (string, error)

// SnowflakeNumbers returns an InvoiceNumberFunc backed by a snowflake node.
// Numbers are unique per node and increase with time.
func SnowflakeNumbers(nodeID int64) (InvoiceNumberFunc, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("invoice number node %d: %w", nodeID, err)
	}
	return func() (string, error) {
		return node.Generate().String(), nil
	}, nil
}

// InvoiceAppender persists a new invoice.
type InvoiceAppender interface {
	Append(ctx context.Context, invoice Invoice) error
}

// InvoiceFactory builds invoices from matched claims and persists them.
type InvoiceFactory struct {
	store    InvoiceAppender
	numbers  InvoiceNumberFunc
	clock    func() time.Time
	tax      decimal.Decimal
	location *time.Location
}

// InvoiceFactoryOptions configures an InvoiceFactory.
type InvoiceFactoryOptions struct {
	Numbers  InvoiceNumberFunc
	Clock    func() time.Time
	Tax      decimal.Decimal
	Location *time.Location
}

// NewInvoiceFactory builds a factory. Numbers is required.
func NewInvoiceFactory(store InvoiceAppender, opts InvoiceFactoryOptions) (*InvoiceFactory, error) {
	if store == nil {
		return nil, ErrStoreNotConfigured
	}
	if opts.Numbers == nil {
		return nil, errors.New("invoice number source is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &InvoiceFactory{
		store:    store,
		numbers:  opts.Numbers,
		clock:    clock,
		tax:      opts.Tax,
		location: loc,
	}, nil
}

// Build assembles the invoice for a matched claim without persisting it.
func (f *InvoiceFactory) Build(record RosterRecord, claim PaymentClaim) (Invoice, error) {
	number, err := f.numbers()
	if err != nil {
		return Invoice{}, fmt.Errorf("generate invoice number: %w", err)
	}
	if strings.TrimSpace(number) == "" {
		return Invoice{}, errors.New("generate invoice number: empty number")
	}
	return Invoice{
		Number: number,
		Student: StudentSnapshot{
			Name:    record.StudentName,
			Email:   record.StudentEmail,
			Address: record.Address,
			Phone:   record.Phone,
		},
		TotalAmount:     claim.Amount,
		Tax:             f.tax,
		FeePaidDate:     claim.ReceivedAt,
		PaymentStatus:   PaymentStatusPaid,
		Items:           []InvoiceItem{},
		DateIssued:      f.clock().UTC(),
		SchemaVersion:   InvoiceSchemaVersion,
		Period:          PeriodOf(claim.ReceivedAt, f.location),
		SourceMessageID: claim.SourceMessageID,
	}, nil
}

// Create builds and appends the invoice. A store conflict on the billing
// period surfaces as *DuplicateError; any other failure as *PersistenceError.
func (f *InvoiceFactory) Create(ctx context.Context, record RosterRecord, claim PaymentClaim) (Invoice, error) {
	invoice, err := f.Build(record, claim)
	if err != nil {
		return Invoice{}, &PersistenceError{Cause: err}
	}
	if err := f.store.Append(ctx, invoice); err != nil {
		if errors.Is(err, ErrInvoicePeriodTaken) {
			return Invoice{}, &DuplicateError{StudentEmail: record.StudentEmail, Period: invoice.Period}
		}
		return Invoice{}, &PersistenceError{Cause: err}
	}
	return invoice, nil
}
