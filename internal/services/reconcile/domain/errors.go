package domain

import (
	"errors"
	"fmt"

	apperrors "github.com/sjpiano/paytrack/internal/platform/errors"
)

var (
	// ErrStoreNotConfigured indicates a collaborator was not wired.
	ErrStoreNotConfigured = errors.New("reconcile store is not configured")
	// ErrStudentEmailRequired indicates a ledger lookup without a student email.
	ErrStudentEmailRequired = errors.New("student email is required")
	// ErrInvoicePeriodTaken indicates the store already holds an invoice for
	// the student and billing period.
	ErrInvoicePeriodTaken = errors.New("invoice already exists for billing period")
	// ErrInvoiceNumberTaken indicates an invoice number collision.
	ErrInvoiceNumberTaken = errors.New("invoice number already exists")
)

// ParseFailure names why an email could not become a claim.
type ParseFailure string

const (
	ParseMalformedSubject ParseFailure = "MALFORMED_SUBJECT"
	ParseMissingReplyTo   ParseFailure = "MISSING_REPLY_TO"
	ParseMissingDate      ParseFailure = "MISSING_RECEIVED_AT"
)

// ParseError reports an email that does not carry a usable claim.
type ParseError struct {
	Reason ParseFailure
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return "parse claim: " + string(e.Reason)
	}
	return fmt.Sprintf("parse claim: %s: %s", e.Reason, e.Detail)
}

// ErrorCode implements apperrors.Coder.
func (e *ParseError) ErrorCode() apperrors.Code {
	if e.Reason == ParseMissingReplyTo {
		return apperrors.CodeParseMissingReplyTo
	}
	return apperrors.CodeParseMalformedSubject
}

// MatchError reports a claim that did not resolve to exactly one roster record.
type MatchError struct {
	Reason MatchReason
}

func (e *MatchError) Error() string {
	return "match roster: " + string(e.Reason)
}

// ErrorCode implements apperrors.Coder.
func (e *MatchError) ErrorCode() apperrors.Code {
	switch e.Reason {
	case MatchEmailMismatch:
		return apperrors.CodeMatchEmailMismatch
	case MatchAmountMismatch:
		return apperrors.CodeMatchAmountMismatch
	case MatchAmbiguous:
		return apperrors.CodeMatchAmbiguous
	default:
		return apperrors.CodeMatchNameMismatch
	}
}

// DuplicateError reports an idempotency hit. It is not a failure.
type DuplicateError struct {
	StudentEmail string
	Period       BillingPeriod
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("invoice already issued for %s in %s", e.StudentEmail, e.Period)
}

// ErrorCode implements apperrors.Coder.
func (e *DuplicateError) ErrorCode() apperrors.Code { return apperrors.CodeInvoiceDuplicate }

// PersistenceError reports an invoice that could not be written.
type PersistenceError struct {
	Cause error
}

func (e *PersistenceError) Error() string { return "persist invoice: " + errorText(e.Cause) }

func (e *PersistenceError) Unwrap() error { return e.Cause }

// ErrorCode implements apperrors.Coder.
func (e *PersistenceError) ErrorCode() apperrors.Code { return apperrors.CodeInvoicePersistFailed }

// LedgerError reports a failed idempotency lookup.
type LedgerError struct {
	Cause error
}

func (e *LedgerError) Error() string { return "check billing period: " + errorText(e.Cause) }

func (e *LedgerError) Unwrap() error { return e.Cause }

// ErrorCode implements apperrors.Coder.
func (e *LedgerError) ErrorCode() apperrors.Code { return apperrors.CodeLedgerUnavailable }

// NotificationError reports a receipt that could not be sent.
type NotificationError struct {
	Recipient string
	Cause     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("send receipt to %s: %s", e.Recipient, errorText(e.Cause))
}

func (e *NotificationError) Unwrap() error { return e.Cause }

// ErrorCode implements apperrors.Coder.
func (e *NotificationError) ErrorCode() apperrors.Code { return apperrors.CodeReceiptSendFailed }

// CollaboratorUnavailableError aborts a run: without the mailbox or roster
// there is nothing trustworthy to reconcile against.
type CollaboratorUnavailableError struct {
	Collaborator string
	Cause        error
}

func (e *CollaboratorUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %s", e.Collaborator, errorText(e.Cause))
}

func (e *CollaboratorUnavailableError) Unwrap() error { return e.Cause }

// ErrorCode implements apperrors.Coder.
func (e *CollaboratorUnavailableError) ErrorCode() apperrors.Code {
	return apperrors.CodeCollaboratorUnavailable
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
