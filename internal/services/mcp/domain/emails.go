package domain

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SearchPaymentEmailsInput represents the MCP tool input for listing deposit notices.
type SearchPaymentEmailsInput struct {
	From string `json:"from,omitempty" jsonschema:"start of the search window, YYYY-MM-DD or RFC3339 (defaults to the first day of the current month)"`
	To   string `json:"to,omitempty" jsonschema:"end of the search window, inclusive YYYY-MM-DD or exclusive RFC3339 (defaults to now)"`
}

// PaymentEmailResult is one candidate email with its parsed claim.
type PaymentEmailResult struct {
	MessageID   string `json:"message_id" jsonschema:"email message id"`
	Subject     string `json:"subject" jsonschema:"email subject"`
	ReplyTo     string `json:"reply_to,omitempty" jsonschema:"raw Reply-To header"`
	ReceivedAt  string `json:"received_at,omitempty" jsonschema:"RFC3339 time the email was received"`
	Parsed      bool   `json:"parsed" jsonschema:"true when the email yielded a payment claim"`
	PayerName   string `json:"payer_name,omitempty" jsonschema:"payer named in the subject"`
	PayerEmail  string `json:"payer_email,omitempty" jsonschema:"normalized Reply-To address"`
	Amount      string `json:"amount,omitempty" jsonschema:"deposited amount"`
	ParseReason string `json:"parse_reason,omitempty" jsonschema:"why the email could not be parsed"`
	ParseError  string `json:"parse_error,omitempty" jsonschema:"parse error detail"`
}

// SearchPaymentEmailsResult represents the MCP tool output for listing deposit notices.
type SearchPaymentEmailsResult struct {
	Emails []PaymentEmailResult `json:"emails" jsonschema:"candidate emails in mailbox order"`
	Count  int                  `json:"count" jsonschema:"number of candidate emails"`
}

// SearchPaymentEmailsTool defines the MCP tool schema for listing deposit notices.
func SearchPaymentEmailsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_payment_emails",
		Description: "Lists Interac auto-deposit notices in a date window and shows the payer, amount, and reply-to address parsed from each. Does not touch the roster or invoices.",
	}
}

// SearchPaymentEmailsHandler lists candidate deposit notices.
func SearchPaymentEmailsHandler(service ReconcileService) mcp.ToolHandlerFor[SearchPaymentEmailsInput, SearchPaymentEmailsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SearchPaymentEmailsInput) (*mcp.CallToolResult, SearchPaymentEmailsResult, error) {
		from, err := parseDateInput("from", input.From, service.Location(), false)
		if err != nil {
			return nil, SearchPaymentEmailsResult{}, err
		}
		to, err := parseDateInput("to", input.To, service.Location(), true)
		if err != nil {
			return nil, SearchPaymentEmailsResult{}, err
		}

		callCtx, cancel := context.WithTimeout(ctx, lookupCallTimeout)
		defer cancel()

		previews, err := service.PreviewEmails(callCtx, from, to)
		if err != nil {
			return nil, SearchPaymentEmailsResult{}, toolError("search payment emails", err)
		}
		result := SearchPaymentEmailsResult{Emails: make([]PaymentEmailResult, 0, len(previews)), Count: len(previews)}
		for _, preview := range previews {
			email := PaymentEmailResult{
				MessageID:   preview.Email.MessageID,
				Subject:     preview.Email.Subject,
				ReplyTo:     preview.Email.ReplyTo,
				ReceivedAt:  formatTimestamp(preview.Email.ReceivedAt),
				ParseReason: string(preview.ParseReason),
				ParseError:  preview.ParseError,
			}
			if claim := preview.Claim; claim != nil {
				email.Parsed = true
				email.PayerName = claim.PayerName
				email.PayerEmail = claim.CounterpartyEmail
				email.Amount = claim.Amount.StringFixed(2)
			}
			result.Emails = append(result.Emails, email)
		}
		return nil, result, nil
	}
}
