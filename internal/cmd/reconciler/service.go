package reconciler

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	reconcileapp "github.com/sjpiano/paytrack/internal/services/reconcile/app"
	"github.com/sjpiano/paytrack/internal/services/reconcile/receipt"
)

// ServiceEnv is the environment shared by every command that opens the
// reconciliation service.
type ServiceEnv struct {
	DBPath        string        `env:"PAYTRACK_DB_PATH" envDefault:"data/paytrack.db"`
	MailboxDir    string        `env:"PAYTRACK_MAILBOX_DIR" envDefault:"data/mailbox"`
	MailboxFormat string        `env:"PAYTRACK_MAILBOX_FORMAT" envDefault:"eml"`
	SubjectFilter []string      `env:"PAYTRACK_SUBJECT_FILTER" envSeparator:"|"`
	MarkerPhrase  string        `env:"PAYTRACK_MARKER_PHRASE"`
	Timezone      string        `env:"PAYTRACK_TIMEZONE" envDefault:"America/Toronto"`
	CallTimeout   time.Duration `env:"PAYTRACK_CALL_TIMEOUT" envDefault:"5s"`
	Tax           string        `env:"PAYTRACK_TAX" envDefault:"0"`
	NodeID        int64         `env:"PAYTRACK_NODE_ID" envDefault:"1"`
	SMTPHost      string        `env:"PAYTRACK_SMTP_HOST"`
	SMTPPort      int           `env:"PAYTRACK_SMTP_PORT" envDefault:"465"`
	SMTPUsername  string        `env:"PAYTRACK_SMTP_USERNAME"`
	SMTPPassword  string        `env:"PAYTRACK_SMTP_PASSWORD"`
	ReceiptFrom   string        `env:"PAYTRACK_RECEIPT_FROM"`
	ReceiptBCC    []string      `env:"PAYTRACK_RECEIPT_BCC" envSeparator:","`
	AcademyName   string        `env:"PAYTRACK_ACADEMY_NAME" envDefault:"SJ Piano Academy"`
}

// BindFlags registers flag overrides for the non-secret service settings.
func (e *ServiceEnv) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&e.DBPath, "db-path", e.DBPath, "The reconciliation SQLite database path")
	fs.StringVar(&e.MailboxDir, "mailbox", e.MailboxDir, "Mailbox export directory or file")
	fs.StringVar(&e.MailboxFormat, "mailbox-format", e.MailboxFormat, "Mailbox export format (eml or gmail-json)")
	fs.StringVar(&e.Timezone, "timezone", e.Timezone, "Time zone that defines billing months")
	fs.StringVar(&e.Tax, "tax", e.Tax, "Tax amount recorded on each invoice")
	fs.Int64Var(&e.NodeID, "node-id", e.NodeID, "Invoice number generator node (0-1023)")
	fs.StringVar(&e.AcademyName, "academy", e.AcademyName, "Academy name shown on receipts")
}

// RuntimeConfig converts the environment into service runtime settings.
func (e ServiceEnv) RuntimeConfig() (reconcileapp.ServiceRuntimeConfig, error) {
	tax, err := decimal.NewFromString(strings.TrimSpace(e.Tax))
	if err != nil {
		return reconcileapp.ServiceRuntimeConfig{}, fmt.Errorf("parse tax %q: %w", e.Tax, err)
	}
	if tax.IsNegative() {
		return reconcileapp.ServiceRuntimeConfig{}, fmt.Errorf("tax must not be negative")
	}
	return reconcileapp.ServiceRuntimeConfig{
		DBPath:        e.DBPath,
		MailboxDir:    e.MailboxDir,
		MailboxFormat: e.MailboxFormat,
		SubjectTerms:  e.SubjectFilter,
		MarkerPhrase:  e.MarkerPhrase,
		Timezone:      e.Timezone,
		Tax:           tax,
		NodeID:        e.NodeID,
		CallTimeout:   e.CallTimeout,
		SMTP: receipt.SMTPConfig{
			Host:     e.SMTPHost,
			Port:     e.SMTPPort,
			Username: e.SMTPUsername,
			Password: e.SMTPPassword,
			From:     e.ReceiptFrom,
			BCC:      e.ReceiptBCC,
		},
		AcademyName: e.AcademyName,
	}, nil
}
