// Package rosterimport loads a YAML roster file into the reconciliation
// store, replacing the previous roster.
package rosterimport

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	entrypoint "github.com/sjpiano/paytrack/internal/platform/cmd"
	"github.com/sjpiano/paytrack/internal/services/reconcile/domain"
	"github.com/sjpiano/paytrack/internal/services/reconcile/storage"
	reconcilesqlite "github.com/sjpiano/paytrack/internal/services/reconcile/storage/sqlite"
)

// Config holds roster import configuration.
type Config struct {
	File   string `env:"PAYTRACK_ROSTER_FILE"`
	DBPath string `env:"PAYTRACK_DB_PATH" envDefault:"data/paytrack.db"`
	DryRun bool   `env:"PAYTRACK_ROSTER_DRY_RUN"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.File, "file", cfg.File, "YAML roster file")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The reconciliation SQLite database path")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "validate without writing to the database")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.File) == "" {
		return Config{}, errors.New("file is required")
	}
	return cfg, nil
}

type rosterFile struct {
	Students []rosterEntry `yaml:"students"`
}

type rosterEntry struct {
	StudentName    string `yaml:"student_name"`
	StudentEmail   string `yaml:"student_email"`
	GuardianName   string `yaml:"guardian_name"`
	GuardianEmail  string `yaml:"guardian_email"`
	ExpectedAmount string `yaml:"expected_amount"`
	Phone          string `yaml:"phone"`
	Address        string `yaml:"address"`
	Active         *bool  `yaml:"active"`
}

// Run validates the roster file and, unless DryRun is set, replaces the
// stored roster with it.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}

	data, err := os.ReadFile(cfg.File)
	if err != nil {
		return fmt.Errorf("read roster file: %w", err)
	}
	records, err := parseRoster(data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("parse %s: %w", cfg.File, err)
	}
	active := 0
	for _, record := range records {
		if record.Active {
			active++
		}
	}
	if cfg.DryRun {
		_, err = fmt.Fprintf(out, "validated %d roster record(s), %d active\n", len(records), active)
		return err
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := reconcilesqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open reconcile sqlite store: %w", err)
	}
	defer store.Close()
	if err := store.ReplaceRoster(ctx, records); err != nil {
		return fmt.Errorf("replace roster: %w", err)
	}
	_, err = fmt.Fprintf(out, "imported %d roster record(s), %d active, into %s\n", len(records), active, cfg.DBPath)
	return err
}

func parseRoster(data []byte, now time.Time) ([]storage.RosterRecord, error) {
	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Students) == 0 {
		return nil, errors.New("students list is empty")
	}

	records := make([]storage.RosterRecord, 0, len(file.Students))
	seen := make(map[string]int, len(file.Students))
	for i, entry := range file.Students {
		record, err := entry.record(now)
		if err != nil {
			return nil, fmt.Errorf("students[%d]: %w", i, err)
		}
		if record.Active {
			key := domain.FoldEmail(record.StudentEmail)
			if prev, ok := seen[key]; ok {
				return nil, fmt.Errorf("students[%d]: student email %s already listed at students[%d]", i, record.StudentEmail, prev)
			}
			seen[key] = i
		}
		records = append(records, record)
	}
	return records, nil
}

func (e rosterEntry) record(now time.Time) (storage.RosterRecord, error) {
	studentName := strings.TrimSpace(e.StudentName)
	guardianName := strings.TrimSpace(e.GuardianName)
	if studentName == "" {
		return storage.RosterRecord{}, errors.New("student_name is required")
	}
	if guardianName == "" {
		return storage.RosterRecord{}, errors.New("guardian_name is required")
	}
	studentEmail, err := domain.NormalizeAddress(e.StudentEmail)
	if err != nil {
		return storage.RosterRecord{}, fmt.Errorf("student_email: %w", err)
	}
	guardianEmail, err := domain.NormalizeAddress(e.GuardianEmail)
	if err != nil {
		return storage.RosterRecord{}, fmt.Errorf("guardian_email: %w", err)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(e.ExpectedAmount), "$")))
	if err != nil {
		return storage.RosterRecord{}, fmt.Errorf("expected_amount %q: %w", e.ExpectedAmount, err)
	}
	if !amount.IsPositive() {
		return storage.RosterRecord{}, fmt.Errorf("expected_amount must be positive")
	}
	active := true
	if e.Active != nil {
		active = *e.Active
	}
	return storage.RosterRecord{
		StudentName:    studentName,
		GuardianName:   guardianName,
		GuardianEmail:  guardianEmail,
		StudentEmail:   studentEmail,
		ExpectedAmount: amount,
		Phone:          strings.TrimSpace(e.Phone),
		Address:        strings.TrimSpace(e.Address),
		Active:         active,
		UpdatedAt:      now,
	}, nil
}
