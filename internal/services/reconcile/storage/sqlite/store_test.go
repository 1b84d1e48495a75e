package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjpiano/paytrack/internal/services/reconcile/storage"
)

func TestReplaceAndListRoster(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	records := []storage.RosterRecord{
		rosterRecord("Yanish", "Yanish R", "Yanish@Example.com", "200"),
		rosterRecord("Mira", "Ana Lee", "ana@example.com", "150.5"),
	}
	records[1].Active = false
	if err := store.ReplaceRoster(ctx, records); err != nil {
		t.Fatalf("replace roster: %v", err)
	}

	roster, err := store.ListRoster(ctx)
	if err != nil {
		t.Fatalf("list roster: %v", err)
	}
	if len(roster) != 1 {
		t.Fatalf("roster len = %d, want 1 active", len(roster))
	}
	if roster[0].StudentName != "Yanish" || !roster[0].ExpectedAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("roster[0] = %+v", roster[0])
	}

	if err := store.ReplaceRoster(ctx, []storage.RosterRecord{rosterRecord("Kai", "Kai Parent", "kai@example.com", "90")}); err != nil {
		t.Fatalf("replace roster again: %v", err)
	}
	roster, err = store.ListRoster(ctx)
	if err != nil {
		t.Fatalf("list roster: %v", err)
	}
	if len(roster) != 1 || roster[0].StudentName != "Kai" {
		t.Fatalf("roster after replace = %+v", roster)
	}
}

func TestReplaceRosterValidationKeepsExistingRows(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	if err := store.ReplaceRoster(ctx, []storage.RosterRecord{rosterRecord("Yanish", "Yanish R", "y@example.com", "200")}); err != nil {
		t.Fatalf("replace roster: %v", err)
	}

	bad := rosterRecord("No Email", "Parent", "p@example.com", "100")
	bad.StudentEmail = ""
	if err := store.ReplaceRoster(ctx, []storage.RosterRecord{bad}); err == nil {
		t.Fatal("expected validation error")
	}
	roster, err := store.ListRoster(ctx)
	if err != nil {
		t.Fatalf("list roster: %v", err)
	}
	if len(roster) != 1 {
		t.Fatalf("roster len = %d, want original row kept", len(roster))
	}
}

func TestLookupByGuardian(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	if err := store.ReplaceRoster(ctx, []storage.RosterRecord{
		rosterRecord("Yanish", "Yanish R", "Yanish@Example.com", "200"),
		rosterRecord("Yanisha", "Yanish  R", "yanish@example.com", "180"),
		rosterRecord("Other", "Someone", "yanish@example.com", "100"),
	}); err != nil {
		t.Fatalf("replace roster: %v", err)
	}

	records, err := store.LookupByGuardian(ctx, "yanish r", "YANISH@example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if _, err := store.LookupByGuardian(ctx, "x", " "); err == nil {
		t.Fatal("expected error for empty email")
	}
}

func TestAppendInvoiceEnforcesPeriodUniqueness(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	if err := store.AppendInvoice(ctx, invoiceRecord("INV-1", "Student@Example.com", "2026-02")); err != nil {
		t.Fatalf("append invoice: %v", err)
	}
	err := store.AppendInvoice(ctx, invoiceRecord("INV-2", "student@example.com", "2026-02"))
	if !errors.Is(err, storage.ErrPeriodTaken) {
		t.Fatalf("err = %v, want %v", err, storage.ErrPeriodTaken)
	}
	err = store.AppendInvoice(ctx, invoiceRecord("INV-1", "other@example.com", "2026-02"))
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want %v", err, storage.ErrConflict)
	}
	if err := store.AppendInvoice(ctx, invoiceRecord("INV-3", "student@example.com", "2026-03")); err != nil {
		t.Fatalf("append next period: %v", err)
	}

	invoices, err := store.ListInvoicesForPeriod(ctx, "STUDENT@example.com", "2026-02")
	if err != nil {
		t.Fatalf("list invoices: %v", err)
	}
	if len(invoices) != 1 || invoices[0].InvoiceNumber != "INV-1" {
		t.Fatalf("invoices = %+v", invoices)
	}
	if string(invoices[0].Document) != `{"invoicenumber":"INV-1"}` {
		t.Fatalf("document = %s", invoices[0].Document)
	}
}

func TestAppendInvoiceConcurrentSamePeriod(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := store.AppendInvoice(ctx, invoiceRecord("INV-"+string(rune('A'+i)), "s@example.com", "2026-02"))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1", succeeded)
	}
}

func TestGetInvoice(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	if err := store.AppendInvoice(ctx, invoiceRecord("INV-9", "s@example.com", "2026-02")); err != nil {
		t.Fatalf("append invoice: %v", err)
	}
	record, err := store.GetInvoice(ctx, "INV-9")
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if !record.TotalAmount.Equal(decimal.NewFromInt(200)) || record.BillingPeriod != "2026-02" {
		t.Fatalf("record = %+v", record)
	}
	if _, err := store.GetInvoice(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestAppendInvoiceValidation(t *testing.T) {
	store := openTempStore(t)
	if err := store.AppendInvoice(context.Background(), storage.InvoiceRecord{}); err == nil {
		t.Fatal("expected validation error for empty invoice")
	}
}

func TestRecordAndListRuns(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 2, 21, 23, 30, 0, 0, time.UTC)

	if err := store.RecordRun(context.Background(), storage.RunRecord{
		RunID:      "run-1",
		Trigger:    "schedule",
		Status:     "FAILED",
		LastError:  "mailbox unavailable",
		StartedAt:  now,
		FinishedAt: now.Add(time.Second),
	}); err != nil {
		t.Fatalf("record run: %v", err)
	}
	if err := store.RecordRun(context.Background(), storage.RunRecord{
		RunID:      "run-2",
		Trigger:    "mcp",
		Status:     "COMPLETED",
		DryRun:     true,
		Candidates: 2,
		Invoiced:   2,
		StartedAt:  now.Add(time.Minute),
	}); err != nil {
		t.Fatalf("record run second: %v", err)
	}

	runs, err := store.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs len = %d, want 2", len(runs))
	}
	if runs[0].Status != "COMPLETED" || !runs[0].DryRun || runs[0].Invoiced != 2 {
		t.Fatalf("runs[0] = %+v", runs[0])
	}
	if runs[1].LastError != "mailbox unavailable" {
		t.Fatalf("runs[1].last_error = %q", runs[1].LastError)
	}

	err = store.RecordRun(context.Background(), storage.RunRecord{RunID: "run-1", Trigger: "schedule", Status: "COMPLETED"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("err = %v, want %v", err, storage.ErrConflict)
	}
}

func TestRecordRunValidation(t *testing.T) {
	store := openTempStore(t)
	if err := store.RecordRun(context.Background(), storage.RunRecord{}); err == nil {
		t.Fatal("expected validation error for empty run")
	}
	if _, err := store.ListRuns(context.Background(), 0); err == nil {
		t.Fatal("expected error for zero limit")
	}
}

func TestNilStoreIsNotConfigured(t *testing.T) {
	var store *Store
	if _, err := store.ListRoster(context.Background()); err == nil {
		t.Fatal("expected error from nil store")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}

func TestCancelledContext(t *testing.T) {
	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.ListRuns(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reconcile.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.AppendInvoice(context.Background(), invoiceRecord("INV-1", "s@example.com", "2026-02")); err != nil {
		t.Fatalf("append invoice: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	store, err = Open(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer store.Close()
	if _, err := store.GetInvoice(context.Background(), "INV-1"); err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
}

func rosterRecord(student, guardian, guardianEmail, amount string) storage.RosterRecord {
	return storage.RosterRecord{
		StudentName:    student,
		GuardianName:   guardian,
		GuardianEmail:  guardianEmail,
		StudentEmail:   student + "@students.example.com",
		ExpectedAmount: decimal.RequireFromString(amount),
		Active:         true,
	}
}

func invoiceRecord(number, email, period string) storage.InvoiceRecord {
	return storage.InvoiceRecord{
		InvoiceNumber: number,
		StudentEmail:  email,
		BillingPeriod: period,
		FeePaidAt:     time.Date(2026, 2, 15, 14, 30, 0, 0, time.UTC),
		TotalAmount:   decimal.NewFromInt(200),
		Document:      []byte(`{"invoicenumber":"` + number + `"}`),
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reconcile.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
