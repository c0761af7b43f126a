package consol

import (
	"errors"
	"fmt"

	"github.com/jdavon/closebook/internal/shared"
)

// ScheduleKind distinguishes the three ways an adjustment covers time.
type ScheduleKind string

const (
	// ScheduleSingleMonth applies the full amount to exactly one month.
	ScheduleSingleMonth ScheduleKind = "single_month"
	// ScheduleRepeating applies the full amount to every month of an
	// inclusive range.
	ScheduleRepeating ScheduleKind = "repeating"
	// ScheduleMonthlySpread divides the total evenly across every month
	// of an inclusive range.
	ScheduleMonthlySpread ScheduleKind = "monthly_spread"
)

// Schedule is the tagged variant covering exact, repeating, and spread
// timing. Only the fields a kind needs are set: End stays zero for
// single-month schedules.
type Schedule struct {
	Kind  ScheduleKind
	Start shared.Period
	End   shared.Period
}

// ExactSchedule covers a single month.
func ExactSchedule(p shared.Period) Schedule {
	return Schedule{Kind: ScheduleSingleMonth, Start: p}
}

// RepeatingSchedule covers every month of [start, end] with the full amount.
func RepeatingSchedule(start, end shared.Period) Schedule {
	return Schedule{Kind: ScheduleRepeating, Start: start, End: end}
}

// SpreadSchedule divides the total across every month of [start, end].
func SpreadSchedule(start, end shared.Period) Schedule {
	return Schedule{Kind: ScheduleMonthlySpread, Start: start, End: end}
}

// Validate rejects malformed schedules before persistence.
func (s Schedule) Validate() error {
	switch s.Kind {
	case ScheduleSingleMonth:
		if !s.Start.Valid() {
			return fmt.Errorf("schedule: invalid period %s", s.Start.Key())
		}
		if !s.End.IsZero() {
			return errors.New("schedule: single month must not carry an end period")
		}
		return nil
	case ScheduleRepeating:
		n := shared.MonthCount(s.Start, s.End)
		if n == 0 {
			return fmt.Errorf("schedule: repeat end %s before start %s", s.End.Key(), s.Start.Key())
		}
		if n < 2 {
			return errors.New("schedule: repeat range must span at least 2 months")
		}
		return nil
	case ScheduleMonthlySpread:
		if shared.MonthCount(s.Start, s.End) == 0 {
			return fmt.Errorf("schedule: spread end %s before start %s", s.End.Key(), s.Start.Key())
		}
		return nil
	default:
		return fmt.Errorf("schedule: unknown kind %q", s.Kind)
	}
}

// MonthCount returns the number of months the schedule covers, zero for
// invalid ranges.
func (s Schedule) MonthCount() int {
	if s.Kind == ScheduleSingleMonth {
		if s.Start.Valid() {
			return 1
		}
		return 0
	}
	return shared.MonthCount(s.Start, s.End)
}

// Covers reports whether the schedule includes the target period.
func (s Schedule) Covers(p shared.Period) bool {
	switch s.Kind {
	case ScheduleSingleMonth:
		return p == s.Start
	case ScheduleRepeating, ScheduleMonthlySpread:
		if shared.MonthCount(s.Start, s.End) == 0 {
			return false
		}
		return p.InRange(s.Start, s.End)
	}
	return false
}

// AmountFor returns the signed amount the schedule contributes to the
// target period for the given total. Invalid or non-covering schedules
// contribute zero.
func (s Schedule) AmountFor(total float64, p shared.Period) float64 {
	if !s.Covers(p) {
		return 0
	}
	if s.Kind == ScheduleMonthlySpread {
		n := s.MonthCount()
		if n == 0 {
			return 0
		}
		return total / float64(n)
	}
	return total
}

// Periods expands the schedule into each covered month.
func (s Schedule) Periods() []shared.Period {
	if s.Kind == ScheduleSingleMonth {
		if !s.Start.Valid() {
			return nil
		}
		return []shared.Period{s.Start}
	}
	return shared.PeriodsBetween(s.Start, s.End)
}
