package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sjpiano/paytrack/internal/services/reconcile/domain"
	"github.com/sjpiano/paytrack/internal/services/reconcile/storage"
)

// domainStoreAdapter exposes storage records as the reconcile domain's
// roster and invoice collaborators.
type domainStoreAdapter struct {
	roster   storage.RosterStore
	invoices storage.InvoiceStore
	location *time.Location
}

func newDomainStoreAdapter(roster storage.RosterStore, invoices storage.InvoiceStore, location *time.Location) *domainStoreAdapter {
	if location == nil {
		location = time.UTC
	}
	return &domainStoreAdapter{roster: roster, invoices: invoices, location: location}
}

func (a *domainStoreAdapter) ListRoster(ctx context.Context) ([]domain.RosterRecord, error) {
	if a == nil || a.roster == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.roster.ListRoster(ctx)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return toDomainRoster(records), nil
}

func (a *domainStoreAdapter) LookupByGuardian(ctx context.Context, guardianName, guardianEmail string) ([]domain.RosterRecord, error) {
	if a == nil || a.roster == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.roster.LookupByGuardian(ctx, guardianName, guardianEmail)
	if err != nil {
		return nil, mapStorageError(err)
	}
	return toDomainRoster(records), nil
}

func (a *domainStoreAdapter) QueryByStudentAndMonth(ctx context.Context, studentEmail string, period domain.BillingPeriod) ([]domain.Invoice, error) {
	if a == nil || a.invoices == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.invoices.ListInvoicesForPeriod(ctx, studentEmail, period.String())
	if err != nil {
		return nil, mapStorageError(err)
	}
	invoices := make([]domain.Invoice, 0, len(records))
	for _, record := range records {
		invoice, err := a.toDomainInvoice(record)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, nil
}

func (a *domainStoreAdapter) Append(ctx context.Context, invoice domain.Invoice) error {
	if a == nil || a.invoices == nil {
		return domain.ErrStoreNotConfigured
	}
	record, err := a.toStorageInvoice(invoice)
	if err != nil {
		return err
	}
	return mapStorageError(a.invoices.AppendInvoice(ctx, record))
}

func (a *domainStoreAdapter) toStorageInvoice(invoice domain.Invoice) (storage.InvoiceRecord, error) {
	period := invoice.Period
	if period == (domain.BillingPeriod{}) {
		period = domain.PeriodOf(invoice.FeePaidDate, a.location)
	}
	document, err := json.Marshal(invoice.Document())
	if err != nil {
		return storage.InvoiceRecord{}, fmt.Errorf("encode invoice %s: %w", invoice.Number, err)
	}
	return storage.InvoiceRecord{
		InvoiceNumber:   invoice.Number,
		StudentEmail:    invoice.Student.Email,
		BillingPeriod:   period.String(),
		FeePaidAt:       invoice.FeePaidDate,
		TotalAmount:     invoice.TotalAmount,
		SourceMessageID: invoice.SourceMessageID,
		Document:        document,
		CreatedAt:       invoice.DateIssued,
	}, nil
}

func (a *domainStoreAdapter) toDomainInvoice(record storage.InvoiceRecord) (domain.Invoice, error) {
	var document domain.InvoiceDocument
	if err := json.Unmarshal(record.Document, &document); err != nil {
		return domain.Invoice{}, fmt.Errorf("decode invoice %s: %w", record.InvoiceNumber, err)
	}
	invoice, err := domain.InvoiceFromDocument(document, a.location)
	if err != nil {
		return domain.Invoice{}, err
	}
	invoice.SourceMessageID = record.SourceMessageID
	return invoice, nil
}

func toDomainRoster(records []storage.RosterRecord) []domain.RosterRecord {
	roster := make([]domain.RosterRecord, 0, len(records))
	for _, record := range records {
		roster = append(roster, domain.RosterRecord{
			StudentName:    record.StudentName,
			GuardianName:   record.GuardianName,
			GuardianEmail:  record.GuardianEmail,
			StudentEmail:   record.StudentEmail,
			ExpectedAmount: record.ExpectedAmount,
			Phone:          record.Phone,
			Address:        record.Address,
		})
	}
	return roster
}

func mapStorageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrPeriodTaken):
		return fmt.Errorf("%w: %v", domain.ErrInvoicePeriodTaken, err)
	case errors.Is(err, storage.ErrConflict):
		return fmt.Errorf("%w: %v", domain.ErrInvoiceNumberTaken, err)
	default:
		return err
	}
}

var (
	_ domain.RosterStore  = (*domainStoreAdapter)(nil)
	_ domain.InvoiceStore = (*domainStoreAdapter)(nil)
)
