package domain

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/sjpiano/paytrack/internal/platform/errors"
)

const maxRunsLimit = 200

// ListReconciliationRunsInput represents the MCP tool input for run history.
type ListReconciliationRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum runs to return (default 20, max 200)"`
}

// RunResult is one recorded run.
type RunResult struct {
	RunID              string `json:"run_id" jsonschema:"run identifier"`
	Trigger            string `json:"trigger" jsonschema:"what started the run (schedule, mcp)"`
	Status             string `json:"status" jsonschema:"run status"`
	DryRun             bool   `json:"dry_run" jsonschema:"true when nothing was written"`
	Candidates         int    `json:"candidates" jsonschema:"candidate emails examined"`
	Invoiced           int    `json:"invoiced" jsonschema:"invoices created"`
	Skipped            int    `json:"skipped" jsonschema:"emails skipped"`
	Failed             int    `json:"failed" jsonschema:"emails that failed on a store error"`
	NotificationFailed int    `json:"notification_failed" jsonschema:"receipts not delivered"`
	LastError          string `json:"last_error,omitempty" jsonschema:"run-level error"`
	StartedAt          string `json:"started_at" jsonschema:"RFC3339 run start"`
	FinishedAt         string `json:"finished_at" jsonschema:"RFC3339 run end"`
}

// ListReconciliationRunsResult represents the MCP tool output for run history.
type ListReconciliationRunsResult struct {
	Runs []RunResult `json:"runs" jsonschema:"recorded runs, newest first"`
}

// ListReconciliationRunsTool defines the MCP tool schema for run history.
func ListReconciliationRunsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_reconciliation_runs",
		Description: "Lists recent reconciliation runs with their status and outcome counts, newest first.",
	}
}

// ListReconciliationRunsHandler returns recorded runs.
func ListReconciliationRunsHandler(service ReconcileService) mcp.ToolHandlerFor[ListReconciliationRunsInput, ListReconciliationRunsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListReconciliationRunsInput) (*mcp.CallToolResult, ListReconciliationRunsResult, error) {
		if input.Limit < 0 || input.Limit > maxRunsLimit {
			return nil, ListReconciliationRunsResult{}, apperrors.New(apperrors.CodeInvalidArgument, "limit must be between 0 and 200")
		}
		callCtx, cancel := context.WithTimeout(ctx, lookupCallTimeout)
		defer cancel()

		records, err := service.ListRuns(callCtx, input.Limit)
		if err != nil {
			return nil, ListReconciliationRunsResult{}, toolError("list reconciliation runs", err)
		}
		result := ListReconciliationRunsResult{Runs: make([]RunResult, 0, len(records))}
		for _, record := range records {
			result.Runs = append(result.Runs, RunResult{
				RunID:              record.RunID,
				Trigger:            record.Trigger,
				Status:             record.Status,
				DryRun:             record.DryRun,
				Candidates:         record.Candidates,
				Invoiced:           record.Invoiced,
				Skipped:            record.Skipped,
				Failed:             record.Failed,
				NotificationFailed: record.NotificationFailed,
				LastError:          record.LastError,
				StartedAt:          formatTimestamp(record.StartedAt),
				FinishedAt:         formatTimestamp(record.FinishedAt),
			})
		}
		return nil, result, nil
	}
}
