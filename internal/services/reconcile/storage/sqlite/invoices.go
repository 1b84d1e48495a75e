package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjpiano/paytrack/internal/services/reconcile/storage"
)

// AppendInvoice inserts a new invoice. A second invoice for the same student
// and billing period fails with storage.ErrPeriodTaken.
func (s *Store) AppendInvoice(ctx context.Context, record storage.InvoiceRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	record.InvoiceNumber = strings.TrimSpace(record.InvoiceNumber)
	record.StudentEmail = strings.ToLower(strings.TrimSpace(record.StudentEmail))
	record.BillingPeriod = strings.TrimSpace(record.BillingPeriod)
	if record.InvoiceNumber == "" {
		return fmt.Errorf("invoice number is required")
	}
	if record.StudentEmail == "" {
		return fmt.Errorf("student email is required")
	}
	if record.BillingPeriod == "" {
		return fmt.Errorf("billing period is required")
	}
	if len(record.Document) == 0 {
		return fmt.Errorf("invoice document is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO invoices (
	invoice_number,
	student_email,
	billing_period,
	fee_paid_at,
	total_amount,
	source_message_id,
	document,
	created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.InvoiceNumber,
		record.StudentEmail,
		record.BillingPeriod,
		record.FeePaidAt.UTC().UnixMilli(),
		record.TotalAmount.StringFixed(2),
		strings.TrimSpace(record.SourceMessageID),
		string(record.Document),
		record.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(strings.ToLower(err.Error()), "invoices.billing_period") {
				return fmt.Errorf("append invoice %s: %w", record.InvoiceNumber, storage.ErrPeriodTaken)
			}
			return fmt.Errorf("append invoice %s: %w", record.InvoiceNumber, storage.ErrConflict)
		}
		return fmt.Errorf("append invoice: %w", err)
	}
	return nil
}

// ListInvoicesForPeriod lists the student's invoices in one billing period.
func (s *Store) ListInvoicesForPeriod(ctx context.Context, studentEmail, billingPeriod string) ([]storage.InvoiceRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	studentEmail = strings.ToLower(strings.TrimSpace(studentEmail))
	if studentEmail == "" {
		return nil, fmt.Errorf("student email is required")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	invoice_number,
	student_email,
	billing_period,
	fee_paid_at,
	total_amount,
	source_message_id,
	document,
	created_at
FROM invoices
WHERE student_email = ? AND billing_period = ?
ORDER BY created_at ASC
`, studentEmail, strings.TrimSpace(billingPeriod))
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var records []storage.InvoiceRecord
	for rows.Next() {
		record, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return records, nil
}

// GetInvoice loads one invoice by number.
func (s *Store) GetInvoice(ctx context.Context, invoiceNumber string) (storage.InvoiceRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.InvoiceRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT
	invoice_number,
	student_email,
	billing_period,
	fee_paid_at,
	total_amount,
	source_message_id,
	document,
	created_at
FROM invoices
WHERE invoice_number = ?
`, strings.TrimSpace(invoiceNumber))
	record, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.InvoiceRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.InvoiceRecord{}, err
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (storage.InvoiceRecord, error) {
	var (
		record    storage.InvoiceRecord
		feePaidAt int64
		total     string
		document  string
		createdAt int64
	)
	if err := row.Scan(
		&record.InvoiceNumber,
		&record.StudentEmail,
		&record.BillingPeriod,
		&feePaidAt,
		&total,
		&record.SourceMessageID,
		&document,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.InvoiceRecord{}, err
		}
		return storage.InvoiceRecord{}, fmt.Errorf("scan invoice: %w", err)
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return storage.InvoiceRecord{}, fmt.Errorf("invoice %s total: %w", record.InvoiceNumber, err)
	}
	record.TotalAmount = amount
	record.Document = []byte(document)
	record.FeePaidAt = time.UnixMilli(feePaidAt).UTC()
	record.CreatedAt = time.UnixMilli(createdAt).UTC()
	return record, nil
}
