package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/sjpiano/paytrack/internal/platform/errors"
	reconcileapp "github.com/sjpiano/paytrack/internal/services/reconcile/app"
	reconciledomain "github.com/sjpiano/paytrack/internal/services/reconcile/domain"
	"github.com/sjpiano/paytrack/internal/services/reconcile/storage"
)

// ReconcileService is the reconciliation surface the tools call.
type ReconcileService interface {
	Location() *time.Location
	Reconcile(ctx context.Context, req reconcileapp.ReconcileRequest) (reconciledomain.Report, error)
	PreviewEmails(ctx context.Context, from, to time.Time) ([]reconcileapp.EmailPreview, error)
	FindStudent(ctx context.Context, payerName, replyTo, amount string) (reconcileapp.StudentMatch, error)
	CheckInvoice(ctx context.Context, studentEmail string, reference time.Time) (reconcileapp.InvoiceCheck, error)
	ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error)
}

var _ ReconcileService = (*reconcileapp.Service)(nil)

const dateLayout = "2006-01-02"

// parseDateInput accepts an RFC3339 timestamp or a calendar date in loc.
// With endOfDay set, a calendar date selects the start of the following day
// so that an inclusive date works as an exclusive upper bound.
func parseDateInput(field, value string, loc *time.Location, endOfDay bool) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return time.Time{}, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
			fmt.Sprintf("%s must be YYYY-MM-DD or RFC3339", field),
			map[string]string{"field": field, "value": value})
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// toolError tags err with its reconciliation code for MCP clients.
func toolError(action string, err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.CodeOf(err), action, err)
}
