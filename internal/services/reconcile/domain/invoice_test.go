package domain

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testIssuedAt = time.Date(2026, time.February, 16, 9, 0, 0, 0, time.UTC)

func newTestFactory(t *testing.T, store InvoiceAppender) *InvoiceFactory {
	t.Helper()
	factory, err := NewInvoiceFactory(store, InvoiceFactoryOptions{
		Numbers: sequentialNumbers(),
		Clock:   fixedClock(testIssuedAt),
	})
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	return factory
}

func TestInvoiceFactoryCreateSnapshotsRecord(t *testing.T) {
	store := &memInvoiceStore{}
	invoice, err := newTestFactory(t, store).Create(context.Background(), yanishRecord(), yanishClaim())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if invoice.Number != "INV-1001" {
		t.Fatalf("number = %q, want %q", invoice.Number, "INV-1001")
	}
	want := StudentSnapshot{Name: "Yanish", Email: "yanish.student@example.com", Address: "1 Keys Lane", Phone: "555-0100"}
	if invoice.Student != want {
		t.Fatalf("snapshot = %+v, want %+v", invoice.Student, want)
	}
	if !invoice.FeePaidDate.Equal(testReceivedAt) {
		t.Fatalf("fee paid = %v, want %v", invoice.FeePaidDate, testReceivedAt)
	}
	if invoice.PaymentStatus != PaymentStatusPaid || !invoice.Tax.IsZero() || len(invoice.Items) != 0 {
		t.Fatalf("unexpected invoice defaults: %+v", invoice)
	}
	if store.count() != 1 {
		t.Fatalf("stored = %d, want 1", store.count())
	}
}

func TestInvoiceFactoryMapsPeriodConflictToDuplicate(t *testing.T) {
	store := &memInvoiceStore{appendErr: ErrInvoicePeriodTaken}
	_, err := newTestFactory(t, store).Create(context.Background(), yanishRecord(), yanishClaim())
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateError", err)
	}
	if dup.Period.String() != "2026-02" {
		t.Fatalf("period = %s, want 2026-02", dup.Period)
	}
}

func TestInvoiceFactoryWrapsPersistFailure(t *testing.T) {
	boom := errors.New("disk full")
	_, err := newTestFactory(t, &memInvoiceStore{appendErr: boom}).Create(context.Background(), yanishRecord(), yanishClaim())
	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want PersistenceError wrapping %v", err, boom)
	}
}

func TestInvoiceFactoryNumberCollisionIsPersistFailure(t *testing.T) {
	store := &memInvoiceStore{}
	factory, err := NewInvoiceFactory(store, InvoiceFactoryOptions{
		Numbers: func() (string, error) { return "SAME", nil },
	})
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	if _, err := factory.Create(context.Background(), yanishRecord(), yanishClaim()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	other := yanishRecord()
	other.StudentEmail = "other@example.com"
	_, err = factory.Create(context.Background(), other, yanishClaim())
	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) || !errors.Is(err, ErrInvoiceNumberTaken) {
		t.Fatalf("err = %v, want PersistenceError wrapping %v", err, ErrInvoiceNumberTaken)
	}
}

func TestNewInvoiceFactoryValidates(t *testing.T) {
	if _, err := NewInvoiceFactory(nil, InvoiceFactoryOptions{Numbers: sequentialNumbers()}); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("err = %v, want %v", err, ErrStoreNotConfigured)
	}
	if _, err := NewInvoiceFactory(&memInvoiceStore{}, InvoiceFactoryOptions{}); err == nil {
		t.Fatal("expected error without number source")
	}
}

func TestSnowflakeNumbersAreUniqueAndIncreasing(t *testing.T) {
	numbers, err := SnowflakeNumbers(7)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	seen := make(map[string]struct{}, 5000)
	var last int64
	for i := 0; i < 5000; i++ {
		number, err := numbers()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if _, ok := seen[number]; ok {
			t.Fatalf("duplicate number %s after %d draws", number, i)
		}
		seen[number] = struct{}{}
		value, err := strconv.ParseInt(number, 10, 64)
		if err != nil {
			t.Fatalf("parse %q: %v", number, err)
		}
		if value <= last {
			t.Fatalf("number %d not greater than %d", value, last)
		}
		last = value
	}
}

func TestSnowflakeNumbersRejectsNodeOutOfRange(t *testing.T) {
	if _, err := SnowflakeNumbers(4096); err == nil {
		t.Fatal("expected node range error")
	}
}

func TestInvoiceDocumentShape(t *testing.T) {
	invoice, err := newTestFactory(t, &memInvoiceStore{}).Build(yanishRecord(), yanishClaim())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := json.Marshal(invoice.Document())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"invoicenumber":"INV-1001","students":{"name":"Yanish","address":"1 Keys Lane","email":"yanish.student@example.com","phone":"555-0100"},"totalamount":200.00,"tax":0.00,"feepaiddate":"2026-02-15T14:30:00Z","paymentstatus":"Paid","items":[],"dateissued":` +
		strconv.FormatInt(testIssuedAt.UnixMilli(), 10) + `,"__v":0}`
	if string(data) != want {
		t.Fatalf("document = %s\nwant       %s", data, want)
	}
}

func TestInvoiceFromDocument(t *testing.T) {
	doc := InvoiceDocument{
		InvoiceNumber: "1764355491540",
		Students:      InvoiceStudentDocument{Name: "Yanish", Email: "y@example.com"},
		TotalAmount:   "200",
		Tax:           "0",
		FeePaidDate:   "2026-02-15T14:30:00Z",
		PaymentStatus: PaymentStatusPaid,
		DateIssued:    testIssuedAt.UnixMilli(),
	}
	invoice, err := InvoiceFromDocument(doc, time.UTC)
	if err != nil {
		t.Fatalf("from document: %v", err)
	}
	if !invoice.TotalAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("total = %s", invoice.TotalAmount)
	}
	if invoice.Period.String() != "2026-02" {
		t.Fatalf("period = %s", invoice.Period)
	}
	if !invoice.DateIssued.Equal(testIssuedAt) {
		t.Fatalf("issued = %v, want %v", invoice.DateIssued, testIssuedAt)
	}

	doc.FeePaidDate = "15 Feb 2026"
	if _, err := InvoiceFromDocument(doc, time.UTC); err == nil {
		t.Fatal("expected error for bad fee paid date")
	}
}
