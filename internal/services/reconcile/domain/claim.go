package domain

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/idna"
)

// DefaultMarkerPhrase is the phrase every auto-deposit notification subject carries.
const DefaultMarkerPhrase = "automatically deposited"

// minorUnitPlaces is the currency precision claims are truncated to.
const minorUnitPlaces = 2

// CandidateEmail is the metadata the mailbox returns for one message.
type CandidateEmail struct {
	MessageID  string
	Subject    string
	ReplyTo    string
	ReceivedAt time.Time
}

// PaymentClaim is the structured payment assertion derived from one email.
type PaymentClaim struct {
	PayerName         string
	CounterpartyEmail string
	Amount            decimal.Decimal
	ReceivedAt        time.Time
	SourceMessageID   string
}

// ClaimParser turns a candidate email into a claim. Implementations must be
// pure: no I/O and no dependence on wall-clock time.
type ClaimParser interface {
	Parse(email CandidateEmail) (PaymentClaim, error)
}

var (
	// amountToken grabs the whole currency run so a malformed amount is
	// rejected instead of being cut down to its longest valid prefix.
	amountToken  = regexp.MustCompile(`\$\s?[\d,]+(?:\.\d+)?`)
	amountFormat = regexp.MustCompile(`^(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?$`)
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)received\s+\$\s?[\d,]+(?:\.\d+)?\s+from\s+(.+?)\s+and\s+it\s+has\s+been`),
		regexp.MustCompile(`(?i)transfer\s+from\s+(.+?)\s+(?:has\s+been|was)\s+automatically\s+deposited`),
	}
)

// InteracSubjectParser parses Interac e-Transfer auto-deposit notifications,
// e.g. "Interac e-Transfer: You've received $200.00 from Yanish R and it has
// been automatically deposited."
type InteracSubjectParser struct {
	// MarkerPhrase overrides DefaultMarkerPhrase when set.
	MarkerPhrase string
}

// Parse implements ClaimParser.
func (p InteracSubjectParser) Parse(email CandidateEmail) (PaymentClaim, error) {
	return p.ParseFields(email.Subject, email.ReplyTo, email.ReceivedAt, email.MessageID)
}

// ParseFields extracts a claim from the raw notification fields.
func (p InteracSubjectParser) ParseFields(subject, replyTo string, receivedAt time.Time, messageID string) (PaymentClaim, error) {
	marker := strings.TrimSpace(p.MarkerPhrase)
	if marker == "" {
		marker = DefaultMarkerPhrase
	}
	subject = strings.Join(strings.Fields(subject), " ")
	if !strings.Contains(strings.ToLower(subject), strings.ToLower(marker)) {
		return PaymentClaim{}, &ParseError{Reason: ParseMalformedSubject, Detail: "missing notification marker"}
	}

	token := amountToken.FindString(subject)
	if token == "" {
		return PaymentClaim{}, &ParseError{Reason: ParseMalformedSubject, Detail: "missing amount"}
	}
	amount, err := ParseAmount(token)
	if err != nil {
		return PaymentClaim{}, &ParseError{Reason: ParseMalformedSubject, Detail: err.Error()}
	}
	if !amount.IsPositive() {
		return PaymentClaim{}, &ParseError{Reason: ParseMalformedSubject, Detail: "amount must be positive"}
	}

	payer := payerName(subject)
	if payer == "" {
		return PaymentClaim{}, &ParseError{Reason: ParseMalformedSubject, Detail: "missing payer name"}
	}

	address, err := NormalizeAddress(replyTo)
	if err != nil {
		return PaymentClaim{}, &ParseError{Reason: ParseMissingReplyTo, Detail: err.Error()}
	}
	if receivedAt.IsZero() {
		return PaymentClaim{}, &ParseError{Reason: ParseMissingDate}
	}

	return PaymentClaim{
		PayerName:         payer,
		CounterpartyEmail: address,
		Amount:            amount,
		ReceivedAt:        receivedAt,
		SourceMessageID:   strings.TrimSpace(messageID),
	}, nil
}

// ParseAmount parses a currency token such as "$1,234.56" or "200" and
// truncates it to cents. Sub-cent digits are dropped, never rounded up.
func ParseAmount(token string) (decimal.Decimal, error) {
	token = strings.TrimSpace(token)
	token = strings.TrimSpace(strings.TrimPrefix(token, "$"))
	if token == "" {
		return decimal.Decimal{}, &ParseError{Reason: ParseMalformedSubject, Detail: "empty amount"}
	}
	if !amountFormat.MatchString(token) {
		return decimal.Decimal{}, &ParseError{Reason: ParseMalformedSubject, Detail: "invalid amount " + token}
	}
	value, err := decimal.NewFromString(strings.ReplaceAll(token, ",", ""))
	if err != nil {
		return decimal.Decimal{}, &ParseError{Reason: ParseMalformedSubject, Detail: err.Error()}
	}
	return value.Truncate(minorUnitPlaces), nil
}

// NormalizeAddress extracts the address from a header value such as
// "Yanish R <Yanish@Example.com>" and lowercases it, converting an
// internationalized domain to its ASCII form.
func NormalizeAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ParseError{Reason: ParseMissingReplyTo, Detail: "reply-to is empty"}
	}
	parsed, err := mail.ParseAddress(raw)
	if err != nil {
		return "", &ParseError{Reason: ParseMissingReplyTo, Detail: err.Error()}
	}
	at := strings.LastIndex(parsed.Address, "@")
	if at <= 0 || at == len(parsed.Address)-1 {
		return "", &ParseError{Reason: ParseMissingReplyTo, Detail: "invalid address " + parsed.Address}
	}
	domain, err := idna.Lookup.ToASCII(parsed.Address[at+1:])
	if err != nil {
		return "", &ParseError{Reason: ParseMissingReplyTo, Detail: err.Error()}
	}
	return strings.ToLower(parsed.Address[:at] + "@" + domain), nil
}

func payerName(subject string) string {
	for _, pattern := range namePatterns {
		if match := pattern.FindStringSubmatch(subject); match != nil {
			if name := strings.TrimSpace(match[1]); name != "" {
				return name
			}
		}
	}
	return ""
}
