// Package receipt renders and delivers payment receipts.
package receipt

import (
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sjpiano/paytrack/internal/services/reconcile/domain"
)

const (
	defaultAcademyName = "SJ Piano Academy"
	monthLayout        = "Jan 2006"
	dateLayout         = "January 2, 2006"
)

// Localizer is the minimal message-printer contract required by Render.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// NewLocalizer returns a printer for tag, falling back to English.
func NewLocalizer(tag language.Tag) Localizer {
	if tag == language.Und {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

// Input is one receipt render request.
type Input struct {
	Invoice     domain.Invoice
	AcademyName string
	Location    *time.Location
}

// Output is the rendered receipt copy.
type Output struct {
	Subject  string
	BodyText string
}

// Render returns receipt copy for an issued invoice.
func Render(loc Localizer, input Input) Output {
	academy := strings.TrimSpace(input.AcademyName)
	if academy == "" {
		academy = defaultAcademyName
	}
	zone := input.Location
	if zone == nil {
		zone = time.UTC
	}
	invoice := input.Invoice
	paidOn := invoice.FeePaidDate.In(zone)

	lines := []string{
		loc.Sprintf("receipt.greeting", invoice.Student.Name),
		"",
		loc.Sprintf("receipt.intro"),
		"",
		loc.Sprintf("receipt.number", invoice.Number),
		loc.Sprintf("receipt.paid_on", paidOn.Format(dateLayout)),
		loc.Sprintf("receipt.student", invoice.Student.Name),
		loc.Sprintf("receipt.amount", invoice.TotalAmount.StringFixed(2)),
	}
	if invoice.Tax.IsPositive() {
		lines = append(lines, loc.Sprintf("receipt.tax", invoice.Tax.StringFixed(2)))
	}
	lines = append(lines, "", loc.Sprintf("receipt.closing", academy))

	return Output{
		Subject:  loc.Sprintf("receipt.subject", paidOn.Format(monthLayout), academy),
		BodyText: strings.Join(lines, "\n") + "\n",
	}
}
