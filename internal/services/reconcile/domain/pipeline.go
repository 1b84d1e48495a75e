package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	platformotel "github.com/sjpiano/paytrack/internal/platform/otel"
	"github.com/sjpiano/paytrack/internal/platform/timeouts"
)

// PipelineConfig tunes a Pipeline. Zero values pick defaults.
type PipelineConfig struct {
	Parser         ClaimParser
	Location       *time.Location
	Tax            decimal.Decimal
	InvoiceNumbers InvoiceNumberFunc
	CallTimeout    time.Duration
	SearchTimeout  time.Duration
	ReceiptTimeout time.Duration
	Clock          func() time.Time
	NewRunID       func() string
	Logf           func(format string, args ...any)
}

// RunRequest describes one reconciliation run.
type RunRequest struct {
	Query  SearchQuery
	DryRun bool
}

// Pipeline drives candidate emails through parse, match, dedup, invoice and
// notify. A Pipeline is safe for concurrent runs.
type Pipeline struct {
	mailbox  Mailbox
	roster   RosterStore
	receipts ReceiptSender
	parser   ClaimParser
	ledger   *BillingPeriodLedger
	factory  *InvoiceFactory
	locks    *keyedMutex
	tracer   trace.Tracer

	location       *time.Location
	callTimeout    time.Duration
	searchTimeout  time.Duration
	receiptTimeout time.Duration
	clock          func() time.Time
	newRunID       func() string
	logf           func(format string, args ...any)
}

// run is the explicit per-run context threaded through every step.
type run struct {
	request RunRequest
	roster  []RosterRecord
	report  *Report
}

// NewPipeline wires a pipeline over its collaborators.
func NewPipeline(collab Collaborators, cfg PipelineConfig) (*Pipeline, error) {
	if collab.Mailbox == nil || collab.Roster == nil || collab.Invoices == nil || collab.Receipts == nil {
		return nil, ErrStoreNotConfigured
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	factory, err := NewInvoiceFactory(collab.Invoices, InvoiceFactoryOptions{
		Numbers:  cfg.InvoiceNumbers,
		Clock:    clock,
		Tax:      cfg.Tax,
		Location: loc,
	})
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		mailbox:        collab.Mailbox,
		roster:         collab.Roster,
		receipts:       collab.Receipts,
		parser:         cfg.Parser,
		ledger:         NewBillingPeriodLedger(collab.Invoices, loc),
		factory:        factory,
		locks:          newKeyedMutex(),
		tracer:         platformotel.Tracer("services/reconcile"),
		location:       loc,
		callTimeout:    durationOr(cfg.CallTimeout, timeouts.StoreCall),
		searchTimeout:  durationOr(cfg.SearchTimeout, timeouts.MailboxSearch),
		receiptTimeout: durationOr(cfg.ReceiptTimeout, timeouts.ReceiptSend),
		clock:          clock,
		newRunID:       cfg.NewRunID,
		logf:           cfg.Logf,
	}
	if p.parser == nil {
		p.parser = InteracSubjectParser{}
	}
	if p.newRunID == nil {
		p.newRunID = uuid.NewString
	}
	if p.logf == nil {
		p.logf = log.Printf
	}
	return p, nil
}

// Location returns the time zone billing periods are evaluated in.
func (p *Pipeline) Location() *time.Location { return p.location }

// Ledger returns the idempotency ledger the pipeline gates on.
func (p *Pipeline) Ledger() *BillingPeriodLedger { return p.ledger }

// Parser returns the claim parser.
func (p *Pipeline) Parser() ClaimParser { return p.parser }

// Run reconciles every candidate email matching the request. Emails are
// processed sequentially and each one exactly once. Cancellation is honored
// between emails; an email already in flight completes.
//
// The returned error is non-nil only when the run as a whole failed or was
// cancelled. Per-email failures live in the report.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(req.Query.SubjectTerms) == 0 {
		req.Query.SubjectTerms = append([]string(nil), DefaultSubjectTerms...)
	}
	report := &Report{
		RunID:     p.newRunID(),
		StartedAt: p.clock().UTC(),
		Query:     req.Query,
		DryRun:    req.DryRun,
	}

	ctx, span := p.tracer.Start(ctx, "reconcile.run", trace.WithAttributes(
		attribute.String("reconcile.run_id", report.RunID),
		attribute.Bool("reconcile.dry_run", req.DryRun),
	))
	defer span.End()

	candidates, err := p.collectCandidates(ctx, req.Query)
	if err != nil {
		return p.fail(ctx, span, report, err)
	}
	if len(candidates) == 0 {
		report.finish(p.clock().UTC(), nil, false)
		p.logf("run %s: no candidate emails", report.RunID)
		span.SetAttributes(attribute.String("reconcile.status", string(report.Status)))
		return *report, nil
	}

	roster, err := p.loadRoster(ctx)
	if err != nil {
		return p.fail(ctx, span, report, err)
	}

	current := &run{request: req, roster: roster, report: report}
	for _, email := range candidates {
		if err := ctx.Err(); err != nil {
			report.finish(p.clock().UTC(), nil, true)
			p.logf("run %s: cancelled after %d of %d emails", report.RunID, len(report.Outcomes), len(candidates))
			span.SetStatus(codes.Error, "cancelled")
			return *report, fmt.Errorf("reconcile run %s: %w", report.RunID, err)
		}
		outcome := p.process(context.WithoutCancel(ctx), current, email)
		report.record(outcome)
		p.logOutcome(report.RunID, outcome)
	}

	report.finish(p.clock().UTC(), nil, false)
	p.logf("run %s: status=%s candidates=%d invoiced=%d skipped=%d failed=%d notify_failed=%d",
		report.RunID, report.Status, report.Summary.Candidates, report.Summary.Invoiced,
		report.Summary.SkippedTotal(), report.Summary.Failed, report.Summary.NotificationFailed)
	span.SetAttributes(
		attribute.String("reconcile.status", string(report.Status)),
		attribute.Int("reconcile.candidates", report.Summary.Candidates),
		attribute.Int("reconcile.invoiced", report.Summary.Invoiced),
	)
	return *report, nil
}

func (p *Pipeline) fail(ctx context.Context, span trace.Span, report *Report, err error) (Report, error) {
	aborted := ctx.Err() != nil
	if aborted {
		report.finish(p.clock().UTC(), nil, true)
	} else {
		report.finish(p.clock().UTC(), err, false)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	p.logf("run %s: %v", report.RunID, err)
	return *report, fmt.Errorf("reconcile run %s: %w", report.RunID, err)
}

// collectCandidates drains the mailbox up front so the run works on a fixed
// candidate list. Repeated message ids are dropped.
func (p *Pipeline) collectCandidates(ctx context.Context, query SearchQuery) ([]CandidateEmail, error) {
	searchCtx, cancel := context.WithTimeout(ctx, p.searchTimeout)
	defer cancel()

	seen := make(map[string]struct{})
	var candidates []CandidateEmail
	for email, err := range p.mailbox.SearchCandidateEmails(searchCtx, query) {
		if err != nil {
			return nil, &CollaboratorUnavailableError{Collaborator: "mailbox", Cause: err}
		}
		if email.MessageID != "" {
			if _, ok := seen[email.MessageID]; ok {
				continue
			}
			seen[email.MessageID] = struct{}{}
		}
		candidates = append(candidates, email)
	}
	return candidates, nil
}

func (p *Pipeline) loadRoster(ctx context.Context) ([]RosterRecord, error) {
	rosterCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	roster, err := p.roster.ListRoster(rosterCtx)
	if err != nil {
		return nil, &CollaboratorUnavailableError{Collaborator: "roster", Cause: err}
	}
	return roster, nil
}

func (p *Pipeline) process(ctx context.Context, current *run, email CandidateEmail) (outcome Outcome) {
	ctx, span := p.tracer.Start(ctx, "reconcile.email", trace.WithAttributes(
		attribute.String("reconcile.message_id", email.MessageID),
	))
	defer func() {
		span.SetAttributes(attribute.String("reconcile.state", string(outcome.State)))
		if outcome.SkipReason != "" {
			span.SetAttributes(attribute.String("reconcile.skip_reason", string(outcome.SkipReason)))
		}
		if outcome.Failed() {
			span.SetStatus(codes.Error, outcome.Error)
		}
		span.End()
	}()

	outcome = Outcome{MessageID: email.MessageID, Subject: email.Subject, ReceivedAt: email.ReceivedAt}
	outcome.advance(StateReceived)

	claim, err := p.parser.Parse(email)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			outcome.ParseReason = parseErr.Reason
		}
		outcome.skip(SkipParseFailed, err)
		return outcome
	}
	outcome.PayerName = claim.PayerName
	outcome.Amount = claim.Amount
	outcome.advance(StateParsed)

	result := Match(claim, current.roster)
	if !result.Matched {
		outcome.MatchReason = result.Reason
		outcome.skip(SkipNoMatch, result.Err())
		return outcome
	}
	record := result.Record
	outcome.StudentName = record.StudentName
	outcome.StudentEmail = record.StudentEmail
	outcome.advance(StateMatched)

	period := p.ledger.Period(claim.ReceivedAt)
	outcome.Period = period.String()

	unlock := p.locks.Lock(FoldEmail(record.StudentEmail) + "|" + period.String())
	invoice, ok := p.gateAndCreate(ctx, current, record, claim, period, &outcome)
	unlock()
	if !ok {
		return outcome
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.receiptTimeout)
	err = p.receipts.SendReceipt(sendCtx, record.StudentEmail, invoice)
	cancel()
	if err != nil {
		notifyErr := &NotificationError{Recipient: record.StudentEmail, Cause: err}
		outcome.NotifyFailed = true
		outcome.Warning = notifyErr.Error()
		span.RecordError(notifyErr)
	} else {
		outcome.advance(StateNotified)
	}
	outcome.advance(StateDone)
	return outcome
}

// gateAndCreate runs the dedup check and the invoice append. Callers hold the
// (student, period) lock across it.
func (p *Pipeline) gateAndCreate(ctx context.Context, current *run, record RosterRecord, claim PaymentClaim, period BillingPeriod, outcome *Outcome) (Invoice, bool) {
	checkCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	exists, err := p.ledger.HasInvoiceForPeriod(checkCtx, record.StudentEmail, claim.ReceivedAt)
	cancel()
	if err != nil {
		outcome.skip(SkipLedgerUnavailable, &LedgerError{Cause: err})
		return Invoice{}, false
	}
	outcome.advance(StateDedupChecked)
	if exists {
		outcome.skip(SkipDuplicate, &DuplicateError{StudentEmail: record.StudentEmail, Period: period})
		return Invoice{}, false
	}
	if current.request.DryRun {
		outcome.DryRun = true
		return Invoice{}, false
	}

	createCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	invoice, err := p.factory.Create(createCtx, record, claim)
	cancel()
	if err != nil {
		var dup *DuplicateError
		if errors.As(err, &dup) {
			outcome.skip(SkipDuplicate, err)
		} else {
			outcome.skip(SkipPersistFailed, err)
		}
		return Invoice{}, false
	}
	outcome.InvoiceNumber = invoice.Number
	outcome.advance(StateInvoiced)
	return invoice, true
}

func (p *Pipeline) logOutcome(runID string, outcome Outcome) {
	switch {
	case outcome.State == StateSkipped:
		p.logf("run %s: message %s skipped: %s (%s)", runID, outcome.MessageID, outcome.SkipReason, outcome.Error)
	case outcome.DryRun:
		p.logf("run %s: message %s would invoice %s for %s", runID, outcome.MessageID, outcome.StudentEmail, outcome.Period)
	case outcome.NotifyFailed:
		p.logf("run %s: message %s invoiced %s; receipt failed: %s", runID, outcome.MessageID, outcome.InvoiceNumber, outcome.Warning)
	default:
		p.logf("run %s: message %s invoiced %s", runID, outcome.MessageID, outcome.InvoiceNumber)
	}
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
