package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjpiano/paytrack/internal/services/reconcile/storage"
)

const rosterColumns = `
	id,
	student_name,
	guardian_name,
	guardian_email,
	student_email,
	expected_amount,
	phone,
	address,
	active,
	updated_at`

// ListRoster returns every active roster row in insertion order.
func (s *Store) ListRoster(ctx context.Context) ([]storage.RosterRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT`+rosterColumns+`
FROM roster
WHERE active = 1
ORDER BY id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return scanRoster(rows)
}

// LookupByGuardian returns active rows registered to the guardian. Email
// comparison is case-insensitive; name comparison is left to the caller.
func (s *Store) LookupByGuardian(ctx context.Context, guardianName, guardianEmail string) ([]storage.RosterRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	guardianEmail = strings.TrimSpace(guardianEmail)
	if guardianEmail == "" {
		return nil, fmt.Errorf("guardian email is required")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT`+rosterColumns+`
FROM roster
WHERE active = 1 AND guardian_email = ? COLLATE NOCASE
ORDER BY id ASC
`, guardianEmail)
	if err != nil {
		return nil, fmt.Errorf("lookup roster by guardian: %w", err)
	}
	records, err := scanRoster(rows)
	if err != nil {
		return nil, err
	}
	guardianName = strings.TrimSpace(guardianName)
	if guardianName == "" {
		return records, nil
	}
	filtered := records[:0]
	for _, record := range records {
		if strings.EqualFold(strings.Join(strings.Fields(record.GuardianName), " "), strings.Join(strings.Fields(guardianName), " ")) {
			filtered = append(filtered, record)
		}
	}
	return filtered, nil
}

// ReplaceRoster swaps the whole roster in one transaction.
func (s *Store) ReplaceRoster(ctx context.Context, records []storage.RosterRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	for i, record := range records {
		if err := validateRosterRecord(record); err != nil {
			return fmt.Errorf("roster record %d: %w", i, err)
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM roster`); err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}
	now := time.Now().UTC()
	for _, record := range records {
		updatedAt := record.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO roster (
	student_name,
	guardian_name,
	guardian_email,
	student_email,
	expected_amount,
	phone,
	address,
	active,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			strings.TrimSpace(record.StudentName),
			strings.TrimSpace(record.GuardianName),
			strings.TrimSpace(record.GuardianEmail),
			strings.TrimSpace(record.StudentEmail),
			record.ExpectedAmount.StringFixed(2),
			strings.TrimSpace(record.Phone),
			strings.TrimSpace(record.Address),
			boolInt(record.Active),
			updatedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert roster record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster replace: %w", err)
	}
	return nil
}

func validateRosterRecord(record storage.RosterRecord) error {
	switch {
	case strings.TrimSpace(record.StudentName) == "":
		return fmt.Errorf("student name is required")
	case strings.TrimSpace(record.GuardianName) == "":
		return fmt.Errorf("guardian name is required")
	case strings.TrimSpace(record.GuardianEmail) == "":
		return fmt.Errorf("guardian email is required")
	case strings.TrimSpace(record.StudentEmail) == "":
		return fmt.Errorf("student email is required")
	case !record.ExpectedAmount.IsPositive():
		return fmt.Errorf("expected amount must be positive")
	}
	return nil
}

func scanRoster(rows *sql.Rows) ([]storage.RosterRecord, error) {
	defer rows.Close()
	var records []storage.RosterRecord
	for rows.Next() {
		var (
			record    storage.RosterRecord
			amount    string
			active    int
			updatedAt int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.StudentName,
			&record.GuardianName,
			&record.GuardianEmail,
			&record.StudentEmail,
			&amount,
			&record.Phone,
			&record.Address,
			&active,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan roster: %w", err)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("roster %d expected amount: %w", record.ID, err)
		}
		record.ExpectedAmount = value
		record.Active = active != 0
		record.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return records, nil
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
