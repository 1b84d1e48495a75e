package reconciler

import (
	"flag"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	fs := flag.NewFlagSet("reconciler", flag.ContinueOnError)
	t.Setenv("PAYTRACK_PORT", "9095")
	t.Setenv("PAYTRACK_SUBJECT_FILTER", "Interac e-Transfer|deposited")
	t.Setenv("PAYTRACK_RECEIPT_BCC", "office@example.com,books@example.com")

	cfg, err := ParseConfig(fs, []string{"-interval", "15m", "-dry-run", "-tax", "13.00"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9095 {
		t.Fatalf("port = %d, want 9095", cfg.Port)
	}
	if cfg.Interval != 15*time.Minute || !cfg.DryRun {
		t.Fatalf("interval = %v dry run = %v", cfg.Interval, cfg.DryRun)
	}
	if cfg.DBPath != "data/paytrack.db" || cfg.MailboxFormat != "eml" {
		t.Fatalf("db path = %q format = %q", cfg.DBPath, cfg.MailboxFormat)
	}
	if len(cfg.SubjectFilter) != 2 || cfg.SubjectFilter[1] != "deposited" {
		t.Fatalf("subject filter = %v", cfg.SubjectFilter)
	}

	runtime, err := cfg.RuntimeConfig()
	if err != nil {
		t.Fatalf("runtime config: %v", err)
	}
	if !runtime.Tax.Equal(decimal.RequireFromString("13")) {
		t.Fatalf("tax = %s, want 13", runtime.Tax)
	}
	if len(runtime.SMTP.BCC) != 2 || runtime.SMTP.Port != 465 {
		t.Fatalf("smtp = %+v", runtime.SMTP)
	}
}

func TestRuntimeConfigRejectsBadTax(t *testing.T) {
	for _, tax := range []string{"ten", "-1"} {
		if _, err := (ServiceEnv{Tax: tax}).RuntimeConfig(); err == nil {
			t.Fatalf("tax %q: expected error", tax)
		}
	}
}
