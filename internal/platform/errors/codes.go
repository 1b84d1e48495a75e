// Package errors provides structured, code-carrying errors shared by the
// reconciler and its tool surfaces.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"

	// Claim parsing
	CodeParseMalformedSubject Code = "PARSE_MALFORMED_SUBJECT"
	CodeParseMissingReplyTo   Code = "PARSE_MISSING_REPLY_TO"

	// Roster matching
	CodeMatchNameMismatch   Code = "MATCH_NAME_MISMATCH"
	CodeMatchEmailMismatch  Code = "MATCH_EMAIL_MISMATCH"
	CodeMatchAmountMismatch Code = "MATCH_AMOUNT_MISMATCH"
	CodeMatchAmbiguous      Code = "MATCH_AMBIGUOUS"

	// Invoicing
	CodeInvoiceDuplicate     Code = "INVOICE_DUPLICATE"
	CodeInvoicePersistFailed Code = "INVOICE_PERSIST_FAILED"
	CodeLedgerUnavailable    Code = "LEDGER_UNAVAILABLE"

	// Receipts
	CodeReceiptSendFailed Code = "RECEIPT_SEND_FAILED"

	// Collaborators
	CodeCollaboratorUnavailable Code = "COLLABORATOR_UNAVAILABLE"
)

// Disposition says how a reconciliation run treats an error with a code.
type Disposition string

const (
	// DispositionSkip drops the current email and continues the run.
	DispositionSkip Disposition = "skip"
	// DispositionError records a failed email and continues the run.
	DispositionError Disposition = "error"
	// DispositionWarning records a warning; the email still completes.
	DispositionWarning Disposition = "warning"
	// DispositionFatal aborts the whole run.
	DispositionFatal Disposition = "fatal"
)

// Disposition maps a code to its run-level handling.
func (c Code) Disposition() Disposition {
	switch c {
	case CodeParseMalformedSubject,
		CodeParseMissingReplyTo,
		CodeMatchNameMismatch,
		CodeMatchEmailMismatch,
		CodeMatchAmountMismatch,
		CodeMatchAmbiguous,
		CodeInvoiceDuplicate:
		return DispositionSkip
	case CodeReceiptSendFailed:
		return DispositionWarning
	case CodeCollaboratorUnavailable:
		return DispositionFatal
	default:
		return DispositionError
	}
}
