package cashier

import (
	"fmt"
	"time"
)

// PeriodType distinguishes gateway-sourced periods from locally computed ones.
type PeriodType string

const (
	PeriodLocal      PeriodType = "local"
	PeriodFastspring PeriodType = "fastspring"
)

// SubscriptionPeriod is a single billing period of a subscription. Dates are
// date-granular (midnight UTC); EndDate is inclusive. The tuple
// (SubscriptionID, Type, StartDate, EndDate) is the natural key: storage
// backends must treat duplicate creation as an idempotent no-op.
type SubscriptionPeriod struct {
	ID             string
	SubscriptionID string
	Type           PeriodType
	StartDate      time.Time
	EndDate        time.Time
	CreatedAt      time.Time
}

// Contains reports whether the given day falls inside [StartDate, EndDate].
// Comparison is at date granularity.
func (p *SubscriptionPeriod) Contains(t time.Time) bool {
	day := DateOf(t)
	return !day.Before(DateOf(p.StartDate)) && !day.After(DateOf(p.EndDate))
}

// DateOf truncates a time to midnight UTC.
func DateOf(t time.Time) time.Time {
	tt := t.UTC()
	return time.Date(tt.Year(), tt.Month(), tt.Day(), 0, 0, 0, 0, time.UTC)
}

// AddInterval advances t by length billing intervals. Months and years are
// added without overflow: a day past the end of the target month clamps to
// the month's last day (Jan 31 + 1 month = Feb 28/29), which is how
// FastSpring advances billing dates. Weeks add exactly 7×length days.
//
// Returns ErrInvalidConfiguration for an unknown unit.
func AddInterval(t time.Time, unit IntervalUnit, length int) (time.Time, error) {
	switch unit {
	case IntervalMonth:
		return addMonthsNoOverflow(t, length), nil
	case IntervalYear:
		return addMonthsNoOverflow(t, 12*length), nil
	case IntervalWeek:
		return t.AddDate(0, 0, 7*length), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unexpected interval unit %q", ErrInvalidConfiguration, unit)
	}
}

// SubInterval is AddInterval with a negative length.
func SubInterval(t time.Time, unit IntervalUnit, length int) (time.Time, error) {
	return AddInterval(t, unit, -length)
}

// addMonthsNoOverflow adds months to a time, clamping the day-of-month to the
// last valid day of the target month instead of letting time.AddDate spill
// into the following month. Works for negative month counts as well.
func addMonthsNoOverflow(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())

	// day 0 of the following month is the last day of the target month
	lastDay := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, first.Location()).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
