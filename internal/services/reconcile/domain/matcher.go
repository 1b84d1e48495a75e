package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// RosterRecord is one enrolled student as the roster store returns it.
type RosterRecord struct {
	StudentName    string
	GuardianName   string
	GuardianEmail  string
	StudentEmail   string
	ExpectedAmount decimal.Decimal
	Phone          string
	Address        string
}

// MatchReason classifies a failed match.
type MatchReason string

const (
	MatchNameMismatch   MatchReason = "NAME_MISMATCH"
	MatchEmailMismatch  MatchReason = "EMAIL_MISMATCH"
	MatchAmountMismatch MatchReason = "AMOUNT_MISMATCH"
	MatchAmbiguous      MatchReason = "AMBIGUOUS"
)

// MatchResult is either a single matched record or a no-match reason.
type MatchResult struct {
	Record     RosterRecord
	Matched    bool
	Reason     MatchReason
	Candidates int
}

// Err returns the MatchError for a failed match, or nil.
func (r MatchResult) Err() error {
	if r.Matched {
		return nil
	}
	return &MatchError{Reason: r.Reason}
}

// predicate order doubles as the tie-break order.
var predicateReasons = [...]MatchReason{MatchNameMismatch, MatchEmailMismatch, MatchAmountMismatch}

// Match resolves a claim against the roster. All three predicates must hold
// for a record to match; there is no fuzzy or partial acceptance.
func Match(claim PaymentClaim, roster []RosterRecord) MatchResult {
	var (
		matches  []RosterRecord
		failures [len(predicateReasons)]int
	)
	payer := FoldName(claim.PayerName)
	email := FoldEmail(claim.CounterpartyEmail)

	for _, record := range roster {
		switch {
		case FoldName(record.GuardianName) != payer:
			failures[0]++
		case FoldEmail(record.GuardianEmail) != email:
			failures[1]++
		case !record.ExpectedAmount.Equal(claim.Amount):
			failures[2]++
		default:
			matches = append(matches, record)
		}
	}

	switch len(matches) {
	case 1:
		return MatchResult{Record: matches[0], Matched: true, Candidates: 1}
	case 0:
		return MatchResult{Reason: dominantFailure(failures)}
	default:
		return MatchResult{Reason: MatchAmbiguous, Candidates: len(matches)}
	}
}

// dominantFailure picks the predicate most records failed on first. An empty
// roster reports a name mismatch.
func dominantFailure(failures [len(predicateReasons)]int) MatchReason {
	best := 0
	for i := 1; i < len(failures); i++ {
		if failures[i] > failures[best] {
			best = i
		}
	}
	return predicateReasons[best]
}

// FoldName normalizes a person's name for comparison: Unicode NFC, runs of
// whitespace collapsed, and full case folding.
func FoldName(name string) string {
	name = strings.Join(strings.Fields(norm.NFC.String(name)), " ")
	return cases.Fold().String(name)
}

// FoldEmail normalizes an email address for comparison.
func FoldEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}
