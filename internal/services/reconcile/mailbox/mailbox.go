// Package mailbox provides candidate-email sources for reconciliation runs.
package mailbox

import (
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/sjpiano/paytrack/internal/services/reconcile/domain"
)

const (
	// FormatEML reads one RFC 5322 message per .eml file in a directory.
	FormatEML = "eml"
	// FormatGmailJSON reads a Gmail API messages export.
	FormatGmailJSON = "gmail-json"
)

// Open returns the mailbox for a configured format and location.
func Open(format, location string) (domain.Mailbox, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("mailbox location is required")
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatEML:
		return &Directory{Dir: location}, nil
	case FormatGmailJSON:
		return &GmailExport{Path: location}, nil
	default:
		return nil, fmt.Errorf("unsupported mailbox format %q", format)
	}
}

var headerDecoder = &mime.WordDecoder{}

func decodeHeader(value string) string {
	decoded, err := headerDecoder.DecodeHeader(value)
	if err != nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(decoded)
}

// matchesQuery applies the search window and subject terms. An email with
// no usable Date header skips the window so the parser can report it.
func matchesQuery(email domain.CandidateEmail, query domain.SearchQuery) bool {
	if !email.ReceivedAt.IsZero() {
		if !query.From.IsZero() && email.ReceivedAt.Before(query.From) {
			return false
		}
		if !query.To.IsZero() && !email.ReceivedAt.Before(query.To) {
			return false
		}
	}
	subject := strings.ToLower(email.Subject)
	for _, term := range query.SubjectTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && !strings.Contains(subject, term) {
			return false
		}
	}
	return true
}

func receivedAtOrZero(t time.Time, err error) time.Time {
	if err != nil {
		return time.Time{}
	}
	return t
}
