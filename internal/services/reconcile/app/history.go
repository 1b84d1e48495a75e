package app

import (
	"github.com/sjpiano/paytrack/internal/services/reconcile/domain"
	"github.com/sjpiano/paytrack/internal/services/reconcile/storage"
)

const (
	// TriggerSchedule marks runs started by the reconciler loop.
	TriggerSchedule = "schedule"
	// TriggerMCP marks runs started through the MCP tool surface.
	TriggerMCP = "mcp"
)

func toRunRecord(trigger string, report domain.Report) storage.RunRecord {
	return storage.RunRecord{
		RunID:              report.RunID,
		Trigger:            trigger,
		Status:             string(report.Status),
		DryRun:             report.DryRun,
		Candidates:         report.Summary.Candidates,
		Invoiced:           report.Summary.Invoiced,
		Skipped:            report.Summary.SkippedTotal(),
		Failed:             report.Summary.Failed,
		NotificationFailed: report.Summary.NotificationFailed,
		LastError:          report.Error,
		StartedAt:          report.StartedAt,
		FinishedAt:         report.FinishedAt,
	}
}
