package receipt

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/sjpiano/paytrack/internal/services/reconcile/domain"
)

func testInvoice() domain.Invoice {
	return domain.Invoice{
		Number:        "1764355491540",
		Student:       domain.StudentSnapshot{Name: "Yanish", Email: "yanish.student@example.com"},
		TotalAmount:   decimal.NewFromInt(200),
		Tax:           decimal.Zero,
		FeePaidDate:   time.Date(2026, time.February, 15, 14, 30, 0, 0, time.UTC),
		PaymentStatus: domain.PaymentStatusPaid,
	}
}

func TestRenderSubjectAndDetails(t *testing.T) {
	out := Render(NewLocalizer(language.English), Input{Invoice: testInvoice(), AcademyName: "SJ Piano Academy"})

	if out.Subject != "Receipt for lesson payment Feb 2026 | SJ Piano Academy" {
		t.Fatalf("subject = %q", out.Subject)
	}
	for _, want := range []string{
		"Hi Yanish,",
		"Receipt number: 1764355491540",
		"Paid on: February 15, 2026",
		"Student: Yanish",
		"Amount: $200.00",
	} {
		if !strings.Contains(out.BodyText, want) {
			t.Fatalf("body missing %q:\n%s", want, out.BodyText)
		}
	}
	if strings.Contains(out.BodyText, "Tax:") {
		t.Fatalf("body should omit zero tax:\n%s", out.BodyText)
	}
}

func TestRenderUsesLocationForMonth(t *testing.T) {
	invoice := testInvoice()
	invoice.FeePaidDate = time.Date(2026, time.March, 1, 3, 0, 0, 0, time.UTC)
	zone := time.FixedZone("EST", -5*60*60)

	out := Render(NewLocalizer(language.English), Input{Invoice: invoice, Location: zone})
	if !strings.Contains(out.Subject, "Feb 2026") {
		t.Fatalf("subject = %q, want Feb 2026 in local zone", out.Subject)
	}
	if !strings.HasSuffix(out.Subject, "| "+defaultAcademyName) {
		t.Fatalf("subject = %q, want default academy", out.Subject)
	}
}

func TestRenderIncludesTaxWhenConfigured(t *testing.T) {
	invoice := testInvoice()
	invoice.Tax = decimal.RequireFromString("26")
	out := Render(NewLocalizer(language.English), Input{Invoice: invoice})
	if !strings.Contains(out.BodyText, "Tax: $26.00") {
		t.Fatalf("body missing tax:\n%s", out.BodyText)
	}
}
