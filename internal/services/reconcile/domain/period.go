package domain

import (
	"fmt"
	"time"
)

// BillingPeriod is a calendar month. It is only ever used as a lookup key.
type BillingPeriod struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the billing period containing t, evaluated in loc.
// A nil loc means UTC.
func PeriodOf(t time.Time, loc *time.Location) BillingPeriod {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return BillingPeriod{Year: local.Year(), Month: local.Month()}
}

// ParseBillingPeriod parses the "YYYY-MM" form produced by String.
func ParseBillingPeriod(value string) (BillingPeriod, error) {
	parsed, err := time.Parse("2006-01", value)
	if err != nil {
		return BillingPeriod{}, fmt.Errorf("parse billing period %q: %w", value, err)
	}
	return BillingPeriod{Year: parsed.Year(), Month: parsed.Month()}, nil
}

func (p BillingPeriod) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Start returns the first instant of the period in loc.
func (p BillingPeriod) Start(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, loc)
}

// End returns the first instant after the period in loc.
func (p BillingPeriod) End(loc *time.Location) time.Time {
	return p.Start(loc).AddDate(0, 1, 0)
}

// Contains reports whether t falls inside the period in loc.
func (p BillingPeriod) Contains(t time.Time, loc *time.Location) bool {
	return PeriodOf(t, loc) == p
}
