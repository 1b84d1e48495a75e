package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// State is a per-email pipeline state.
type State string

const (
	StateReceived     State = "RECEIVED"
	StateParsed       State = "PARSED"
	StateMatched      State = "MATCHED"
	StateDedupChecked State = "DEDUP_CHECKED"
	StateInvoiced     State = "INVOICED"
	StateNotified     State = "NOTIFIED"
	StateDone         State = "DONE"
	StateSkipped      State = "SKIPPED"
)

// SkipReason explains why an email left the pipeline early.
type SkipReason string

const (
	SkipParseFailed       SkipReason = "PARSE_FAILED"
	SkipNoMatch           SkipReason = "NO_MATCH"
	SkipDuplicate         SkipReason = "DUPLICATE"
	SkipPersistFailed     SkipReason = "PERSIST_FAILED"
	SkipLedgerUnavailable SkipReason = "LEDGER_UNAVAILABLE"
)

// IsFailure reports whether the skip reflects an error rather than a
// legitimate reason not to invoice.
func (r SkipReason) IsFailure() bool {
	return r == SkipPersistFailed || r == SkipLedgerUnavailable
}

// Outcome records what happened to one email.
type Outcome struct {
	MessageID     string
	Subject       string
	ReceivedAt    time.Time
	State         State
	Trail         []State
	SkipReason    SkipReason
	ParseReason   ParseFailure
	MatchReason   MatchReason
	PayerName     string
	Amount        decimal.Decimal
	StudentName   string
	StudentEmail  string
	Period        string
	InvoiceNumber string
	DryRun        bool
	NotifyFailed  bool
	Error         string
	Warning       string
}

// Reached reports whether the email passed through state.
func (o Outcome) Reached(state State) bool {
	return slices.Contains(o.Trail, state)
}

// Invoiced reports whether an invoice was created for the email.
func (o Outcome) Invoiced() bool {
	return o.Reached(StateInvoiced)
}

// Failed reports whether the email ended in an error.
func (o Outcome) Failed() bool {
	return o.State == StateSkipped && o.SkipReason.IsFailure()
}

func (o *Outcome) advance(state State) {
	o.State = state
	o.Trail = append(o.Trail, state)
}

func (o *Outcome) skip(reason SkipReason, err error) {
	o.advance(StateSkipped)
	o.SkipReason = reason
	if err != nil {
		o.Error = err.Error()
	}
}

// RunStatus summarizes a whole run.
type RunStatus string

const (
	RunNoCandidates   RunStatus = "NO_CANDIDATES"
	RunAllSkipped     RunStatus = "ALL_SKIPPED"
	RunPartialSuccess RunStatus = "PARTIAL_SUCCESS"
	RunCompleted      RunStatus = "COMPLETED"
	RunFailed         RunStatus = "FAILED"
	RunAborted        RunStatus = "ABORTED"
)

// Summary aggregates run outcomes.
type Summary struct {
	Candidates         int
	Invoiced           int
	WouldInvoice       int
	Skipped            map[SkipReason]int
	Failed             int
	NotificationFailed int
}

// Report is the ordered result of one run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Query      SearchQuery
	DryRun     bool
	Status     RunStatus
	Outcomes   []Outcome
	Summary    Summary
	Error      string
}

// SkippedTotal counts emails skipped for non-failure reasons.
func (s Summary) SkippedTotal() int {
	total := 0
	for _, n := range s.Skipped {
		total += n
	}
	return total
}

func (r *Report) record(outcome Outcome) {
	r.Outcomes = append(r.Outcomes, outcome)
}

// finish computes the summary and status. fatal marks a run-level failure.
func (r *Report) finish(finishedAt time.Time, fatal error, aborted bool) {
	r.FinishedAt = finishedAt
	summary := Summary{Candidates: len(r.Outcomes), Skipped: map[SkipReason]int{}}
	for _, outcome := range r.Outcomes {
		switch {
		case outcome.Failed():
			summary.Failed++
		case outcome.State == StateSkipped:
			summary.Skipped[outcome.SkipReason]++
		case outcome.DryRun:
			summary.WouldInvoice++
		case outcome.Invoiced():
			summary.Invoiced++
		}
		if outcome.NotifyFailed {
			summary.NotificationFailed++
		}
	}
	r.Summary = summary

	if fatal != nil {
		r.Error = fatal.Error()
	}
	switch {
	case fatal != nil:
		r.Status = RunFailed
	case aborted:
		r.Status = RunAborted
	case summary.Candidates == 0:
		r.Status = RunNoCandidates
	case summary.Invoiced+summary.WouldInvoice == summary.Candidates:
		r.Status = RunCompleted
	case summary.Invoiced+summary.WouldInvoice > 0:
		r.Status = RunPartialSuccess
	case summary.Failed > 0:
		r.Status = RunFailed
	default:
		r.Status = RunAllSkipped
	}
}
