package domain

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	reconcileapp "github.com/sjpiano/paytrack/internal/services/reconcile/app"
	reconciledomain "github.com/sjpiano/paytrack/internal/services/reconcile/domain"
)

// ReconcilePaymentsInput represents the MCP tool input for a reconciliation run.
type ReconcilePaymentsInput struct {
	From   string `json:"from,omitempty" jsonschema:"start of the search window, YYYY-MM-DD or RFC3339 (defaults to the first day of the current month)"`
	To     string `json:"to,omitempty" jsonschema:"end of the search window, inclusive YYYY-MM-DD or exclusive RFC3339 (defaults to now)"`
	DryRun bool   `json:"dry_run,omitempty" jsonschema:"report would-be invoices without writing invoices or sending receipts"`
}

// RunSummaryResult counts outcomes for a run.
type RunSummaryResult struct {
	Candidates         int            `json:"candidates" jsonschema:"candidate emails examined"`
	Invoiced           int            `json:"invoiced" jsonschema:"invoices created"`
	WouldInvoice       int            `json:"would_invoice" jsonschema:"emails that would be invoiced in a dry run"`
	Skipped            map[string]int `json:"skipped" jsonschema:"skipped emails by reason"`
	Failed             int            `json:"failed" jsonschema:"emails that failed on a store error"`
	NotificationFailed int            `json:"notification_failed" jsonschema:"invoiced emails whose receipt was not delivered"`
}

// OutcomeResult describes what happened to one email.
type OutcomeResult struct {
	MessageID     string   `json:"message_id" jsonschema:"source email message id"`
	Subject       string   `json:"subject" jsonschema:"email subject"`
	ReceivedAt    string   `json:"received_at,omitempty" jsonschema:"RFC3339 time the email was received"`
	State         string   `json:"state" jsonschema:"final pipeline state"`
	Trail         []string `json:"trail" jsonschema:"states the email passed through"`
	SkipReason    string   `json:"skip_reason,omitempty" jsonschema:"why the email was skipped"`
	ParseReason   string   `json:"parse_reason,omitempty" jsonschema:"parse failure detail"`
	MatchReason   string   `json:"match_reason,omitempty" jsonschema:"roster match failure detail"`
	PayerName     string   `json:"payer_name,omitempty" jsonschema:"payer named in the deposit notice"`
	Amount        string   `json:"amount,omitempty" jsonschema:"deposited amount"`
	StudentName   string   `json:"student_name,omitempty" jsonschema:"matched student"`
	StudentEmail  string   `json:"student_email,omitempty" jsonschema:"matched student email"`
	Period        string   `json:"period,omitempty" jsonschema:"billing period (YYYY-MM)"`
	InvoiceNumber string   `json:"invoice_number,omitempty" jsonschema:"created invoice number"`
	DryRun        bool     `json:"dry_run,omitempty" jsonschema:"true when the invoice was only simulated"`
	NotifyFailed  bool     `json:"notify_failed,omitempty" jsonschema:"true when the receipt was not delivered"`
	Error         string   `json:"error,omitempty" jsonschema:"error detail"`
	Warning       string   `json:"warning,omitempty" jsonschema:"warning detail"`
}

// ReconcilePaymentsResult represents the MCP tool output for a reconciliation run.
type ReconcilePaymentsResult struct {
	RunID      string           `json:"run_id" jsonschema:"run identifier"`
	Status     string           `json:"status" jsonschema:"run status (NO_CANDIDATES, ALL_SKIPPED, PARTIAL_SUCCESS, COMPLETED, FAILED, ABORTED)"`
	DryRun     bool             `json:"dry_run" jsonschema:"true when nothing was written"`
	From       string           `json:"from" jsonschema:"RFC3339 start of the search window"`
	To         string           `json:"to" jsonschema:"RFC3339 end of the search window"`
	StartedAt  string           `json:"started_at" jsonschema:"RFC3339 run start"`
	FinishedAt string           `json:"finished_at" jsonschema:"RFC3339 run end"`
	Summary    RunSummaryResult `json:"summary" jsonschema:"outcome counts"`
	Outcomes   []OutcomeResult  `json:"outcomes" jsonschema:"per-email outcomes in processing order"`
	Error      string           `json:"error,omitempty" jsonschema:"run-level error for failed or aborted runs"`
}

// ReconcilePaymentsTool defines the MCP tool schema for a reconciliation run.
func ReconcilePaymentsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "reconcile_payments",
		Description: "Scans Interac deposit notices in a date window, matches each payer against the roster, issues at most one invoice per student per billing month, and emails a receipt to the student.",
	}
}

// ReconcilePaymentsHandler executes a reconciliation run.
func ReconcilePaymentsHandler(service ReconcileService) mcp.ToolHandlerFor[ReconcilePaymentsInput, ReconcilePaymentsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ReconcilePaymentsInput) (*mcp.CallToolResult, ReconcilePaymentsResult, error) {
		from, err := parseDateInput("from", input.From, service.Location(), false)
		if err != nil {
			return nil, ReconcilePaymentsResult{}, err
		}
		to, err := parseDateInput("to", input.To, service.Location(), true)
		if err != nil {
			return nil, ReconcilePaymentsResult{}, err
		}

		runCtx, cancel := context.WithTimeout(ctx, reconcileCallTimeout)
		defer cancel()

		report, err := service.Reconcile(runCtx, reconcileapp.ReconcileRequest{
			Trigger: reconcileapp.TriggerMCP,
			From:    from,
			To:      to,
			DryRun:  input.DryRun,
		})
		if err != nil {
			// Aborted runs may already hold invoices; the caller still gets the report.
			err = toolError("reconcile payments", err)
			result := reportResult(report)
			result.Error = err.Error()
			return &mcp.CallToolResult{
				IsError:           true,
				Content:           []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				StructuredContent: result,
			}, result, nil
		}
		return nil, reportResult(report), nil
	}
}

func reportResult(report reconciledomain.Report) ReconcilePaymentsResult {
	skipped := make(map[string]int, len(report.Summary.Skipped))
	for reason, n := range report.Summary.Skipped {
		skipped[string(reason)] = n
	}
	outcomes := make([]OutcomeResult, 0, len(report.Outcomes))
	for _, outcome := range report.Outcomes {
		outcomes = append(outcomes, outcomeResult(outcome))
	}
	return ReconcilePaymentsResult{
		RunID:      report.RunID,
		Status:     string(report.Status),
		DryRun:     report.DryRun,
		From:       formatTimestamp(report.Query.From),
		To:         formatTimestamp(report.Query.To),
		StartedAt:  formatTimestamp(report.StartedAt),
		FinishedAt: formatTimestamp(report.FinishedAt),
		Summary: RunSummaryResult{
			Candidates:         report.Summary.Candidates,
			Invoiced:           report.Summary.Invoiced,
			WouldInvoice:       report.Summary.WouldInvoice,
			Skipped:            skipped,
			Failed:             report.Summary.Failed,
			NotificationFailed: report.Summary.NotificationFailed,
		},
		Outcomes: outcomes,
	}
}

func outcomeResult(outcome reconciledomain.Outcome) OutcomeResult {
	trail := make([]string, 0, len(outcome.Trail))
	for _, state := range outcome.Trail {
		trail = append(trail, string(state))
	}
	result := OutcomeResult{
		MessageID:     outcome.MessageID,
		Subject:       outcome.Subject,
		ReceivedAt:    formatTimestamp(outcome.ReceivedAt),
		State:         string(outcome.State),
		Trail:         trail,
		SkipReason:    string(outcome.SkipReason),
		ParseReason:   string(outcome.ParseReason),
		MatchReason:   string(outcome.MatchReason),
		PayerName:     outcome.PayerName,
		StudentName:   outcome.StudentName,
		StudentEmail:  outcome.StudentEmail,
		Period:        outcome.Period,
		InvoiceNumber: outcome.InvoiceNumber,
		DryRun:        outcome.DryRun,
		NotifyFailed:  outcome.NotifyFailed,
		Error:         outcome.Error,
		Warning:       outcome.Warning,
	}
	if !outcome.Amount.IsZero() {
		result.Amount = outcome.Amount.StringFixed(2)
	}
	return result
}
