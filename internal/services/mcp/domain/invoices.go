package domain

import (
	"context"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/sjpiano/paytrack/internal/platform/errors"
)

// CheckInvoiceExistsInput represents the MCP tool input for a ledger lookup.
type CheckInvoiceExistsInput struct {
	StudentEmail  string `json:"student_email" jsonschema:"student email"`
	ReferenceDate string `json:"reference_date,omitempty" jsonschema:"any date in the billing month, YYYY-MM-DD or RFC3339 (defaults to today)"`
}

// InvoiceSummaryResult is one issued invoice.
type InvoiceSummaryResult struct {
	InvoiceNumber string `json:"invoice_number" jsonschema:"invoice number"`
	FeePaidDate   string `json:"fee_paid_date" jsonschema:"RFC3339 time the fee was received"`
	TotalAmount   string `json:"total_amount" jsonschema:"invoice total"`
	PaymentStatus string `json:"payment_status" jsonschema:"payment status"`
}

// CheckInvoiceExistsResult represents the MCP tool output for a ledger lookup.
type CheckInvoiceExistsResult struct {
	Exists         bool                   `json:"exists" jsonschema:"true when the student already has an invoice this billing month"`
	Period         string                 `json:"period" jsonschema:"billing period checked (YYYY-MM)"`
	InvoiceNumbers []string               `json:"invoice_numbers" jsonschema:"invoice numbers issued in the period"`
	Invoices       []InvoiceSummaryResult `json:"invoices" jsonschema:"invoices issued in the period"`
}

// CheckInvoiceExistsTool defines the MCP tool schema for a ledger lookup.
func CheckInvoiceExistsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "check_invoice_exists",
		Description: "Reports whether a student already has an invoice for the billing month containing the reference date.",
	}
}

// CheckInvoiceExistsHandler looks up invoices for a student and billing month.
func CheckInvoiceExistsHandler(service ReconcileService) mcp.ToolHandlerFor[CheckInvoiceExistsInput, CheckInvoiceExistsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CheckInvoiceExistsInput) (*mcp.CallToolResult, CheckInvoiceExistsResult, error) {
		email := strings.TrimSpace(input.StudentEmail)
		if email == "" {
			return nil, CheckInvoiceExistsResult{}, apperrors.New(apperrors.CodeInvalidArgument, "student_email is required")
		}
		reference, err := parseDateInput("reference_date", input.ReferenceDate, service.Location(), false)
		if err != nil {
			return nil, CheckInvoiceExistsResult{}, err
		}

		callCtx, cancel := context.WithTimeout(ctx, lookupCallTimeout)
		defer cancel()

		check, err := service.CheckInvoice(callCtx, email, reference)
		if err != nil {
			return nil, CheckInvoiceExistsResult{}, toolError("check invoice exists", err)
		}
		result := CheckInvoiceExistsResult{
			Exists:         len(check.Invoices) > 0,
			Period:         check.Period.String(),
			InvoiceNumbers: make([]string, 0, len(check.Invoices)),
			Invoices:       make([]InvoiceSummaryResult, 0, len(check.Invoices)),
		}
		for _, invoice := range check.Invoices {
			result.InvoiceNumbers = append(result.InvoiceNumbers, invoice.Number)
			result.Invoices = append(result.Invoices, InvoiceSummaryResult{
				InvoiceNumber: invoice.Number,
				FeePaidDate:   formatTimestamp(invoice.FeePaidDate),
				TotalAmount:   invoice.TotalAmount.StringFixed(2),
				PaymentStatus: invoice.PaymentStatus,
			})
		}
		return nil, result, nil
	}
}
