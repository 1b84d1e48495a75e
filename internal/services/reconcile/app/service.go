package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjpiano/paytrack/internal/platform/timeouts"
	"github.com/sjpiano/paytrack/internal/services/reconcile/domain"
	"github.com/sjpiano/paytrack/internal/services/reconcile/storage"
)

// Store is the persistence surface the service needs.
type Store interface {
	storage.RosterStore
	storage.InvoiceStore
	storage.RunStore
}

// Dependencies are the external collaborators of a Service.
type Dependencies struct {
	Mailbox  domain.Mailbox
	Store    Store
	Receipts domain.ReceiptSender
}

// ServiceConfig tunes a Service.
type ServiceConfig struct {
	Location       *time.Location
	SubjectTerms   []string
	MarkerPhrase   string
	Tax            decimal.Decimal
	InvoiceNumbers domain.InvoiceNumberFunc
	CallTimeout    time.Duration
	Clock          func() time.Time
	Logf           func(format string, args ...any)
}

// Service is the reconciliation use-case surface shared by the reconciler
// daemon and the MCP server.
type Service struct {
	pipeline *domain.Pipeline
	mailbox  domain.Mailbox
	roster   domain.RosterStore
	runs     storage.RunStore

	location     *time.Location
	subjectTerms []string
	callTimeout  time.Duration
	clock        func() time.Time
	logf         func(format string, args ...any)
}

// NewService wires a pipeline over deps.
func NewService(deps Dependencies, cfg ServiceConfig) (*Service, error) {
	if deps.Store == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}
	terms := compactTerms(cfg.SubjectTerms)
	if len(terms) == 0 {
		terms = append([]string(nil), domain.DefaultSubjectTerms...)
	}

	adapter := newDomainStoreAdapter(deps.Store, deps.Store, location)
	pipeline, err := domain.NewPipeline(domain.Collaborators{
		Mailbox:  deps.Mailbox,
		Roster:   adapter,
		Invoices: adapter,
		Receipts: deps.Receipts,
	}, domain.PipelineConfig{
		Parser:         domain.InteracSubjectParser{MarkerPhrase: cfg.MarkerPhrase},
		Location:       location,
		Tax:            cfg.Tax,
		InvoiceNumbers: cfg.InvoiceNumbers,
		CallTimeout:    cfg.CallTimeout,
		Clock:          clock,
		Logf:           logf,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = timeouts.StoreCall
	}
	return &Service{
		pipeline:     pipeline,
		mailbox:      deps.Mailbox,
		roster:       adapter,
		runs:         deps.Store,
		location:     location,
		subjectTerms: terms,
		callTimeout:  callTimeout,
		clock:        clock,
		logf:         logf,
	}, nil
}

// Location returns the billing-period time zone.
func (s *Service) Location() *time.Location { return s.location }

// ReconcileRequest starts one run. Zero From/To select the current month.
type ReconcileRequest struct {
	Trigger string
	From    time.Time
	To      time.Time
	DryRun  bool
}

// Reconcile runs the pipeline once and records the run in history.
func (s *Service) Reconcile(ctx context.Context, req ReconcileRequest) (domain.Report, error) {
	trigger := strings.TrimSpace(req.Trigger)
	if trigger == "" {
		trigger = TriggerSchedule
	}
	report, runErr := s.pipeline.Run(ctx, domain.RunRequest{
		Query:  s.Query(req.From, req.To),
		DryRun: req.DryRun,
	})

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.callTimeout)
	defer cancel()
	if err := s.runs.RecordRun(recordCtx, toRunRecord(trigger, report)); err != nil {
		s.logf("record run %s: %v", report.RunID, err)
	}
	return report, runErr
}

// Query builds the mailbox query for a window. Zero bounds default to the
// start of the current month and now.
func (s *Service) Query(from, to time.Time) domain.SearchQuery {
	query := domain.DefaultSearchQuery(s.clock(), s.location)
	query.SubjectTerms = append([]string(nil), s.subjectTerms...)
	if !from.IsZero() {
		query.From = from
	}
	if !to.IsZero() {
		query.To = to
	}
	return query
}

// EmailPreview is a candidate email with its parse result.
type EmailPreview struct {
	Email       domain.CandidateEmail
	Claim       *domain.PaymentClaim
	ParseReason domain.ParseFailure
	ParseError  string
}

// PreviewEmails lists candidate emails in the window and parses each one
// without touching the roster or invoices.
func (s *Service) PreviewEmails(ctx context.Context, from, to time.Time) ([]EmailPreview, error) {
	searchCtx, cancel := context.WithTimeout(ctx, timeouts.MailboxSearch)
	defer cancel()

	parser := s.pipeline.Parser()
	var previews []EmailPreview
	for email, err := range s.mailbox.SearchCandidateEmails(searchCtx, s.Query(from, to)) {
		if err != nil {
			return nil, &domain.CollaboratorUnavailableError{Collaborator: "mailbox", Cause: err}
		}
		preview := EmailPreview{Email: email}
		claim, err := parser.Parse(email)
		if err != nil {
			preview.ParseError = err.Error()
			var parseErr *domain.ParseError
			if errors.As(err, &parseErr) {
				preview.ParseReason = parseErr.Reason
			}
		} else {
			preview.Claim = &claim
		}
		previews = append(previews, preview)
	}
	return previews, nil
}

// StudentMatch is the matcher verdict for a hypothetical claim, together
// with every record registered to the guardian email.
type StudentMatch struct {
	Claim           domain.PaymentClaim
	Result          domain.MatchResult
	GuardianRecords []domain.RosterRecord
}

// FindStudent runs the roster matcher for a payer, reply-to, and amount.
func (s *Service) FindStudent(ctx context.Context, payerName, replyTo, amount string) (StudentMatch, error) {
	payerName = strings.TrimSpace(payerName)
	if payerName == "" {
		return StudentMatch{}, fmt.Errorf("parent name is required")
	}
	email, err := domain.NormalizeAddress(replyTo)
	if err != nil {
		return StudentMatch{}, err
	}
	value, err := domain.ParseAmount(amount)
	if err != nil {
		return StudentMatch{}, err
	}
	claim := domain.PaymentClaim{PayerName: payerName, CounterpartyEmail: email, Amount: value}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	roster, err := s.roster.ListRoster(callCtx)
	if err != nil {
		return StudentMatch{}, &domain.CollaboratorUnavailableError{Collaborator: "roster", Cause: err}
	}
	guardian, err := s.roster.LookupByGuardian(callCtx, payerName, email)
	if err != nil {
		return StudentMatch{}, &domain.CollaboratorUnavailableError{Collaborator: "roster", Cause: err}
	}
	return StudentMatch{Claim: claim, Result: domain.Match(claim, roster), GuardianRecords: guardian}, nil
}

// InvoiceCheck is the ledger view for one student and billing period.
type InvoiceCheck struct {
	Period   domain.BillingPeriod
	Invoices []domain.Invoice
}

// CheckInvoice reports the invoices issued to a student in the billing
// period containing reference. A zero reference means now.
func (s *Service) CheckInvoice(ctx context.Context, studentEmail string, reference time.Time) (InvoiceCheck, error) {
	if reference.IsZero() {
		reference = s.clock()
	}
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	ledger := s.pipeline.Ledger()
	invoices, err := ledger.InvoicesForPeriod(callCtx, studentEmail, reference)
	if err != nil {
		return InvoiceCheck{}, err
	}
	return InvoiceCheck{Period: ledger.Period(reference), Invoices: invoices}, nil
}

// ListRuns returns recent run history, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.runs.ListRuns(callCtx, limit)
}

func compactTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if term = strings.TrimSpace(term); term != "" {
			out = append(out, term)
		}
	}
	return out
}
