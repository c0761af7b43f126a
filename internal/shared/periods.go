package shared

import (
	"fmt"
	"time"
)

// Granularity controls how many months a statement column spans.
const (
	GranularityMonthly   = "monthly"
	GranularityQuarterly = "quarterly"
	GranularityYearly    = "yearly"
)

// Period identifies one calendar month in a fiscal timeline.
type Period struct {
	Year  int
	Month int
}

// NewPeriod validates and constructs a Period.
func NewPeriod(year, month int) (Period, error) {
	p := Period{Year: year, Month: month}
	if !p.Valid() {
		return Period{}, fmt.Errorf("%w: %04d-%02d", ErrInvalidPeriod, year, month)
	}
	return p, nil
}

// ParsePeriod reads the canonical "2006-01" period code.
func ParsePeriod(code string) (Period, error) {
	t, err := time.Parse("2006-01", code)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, code)
	}
	return Period{Year: t.Year(), Month: int(t.Month())}, nil
}

// Valid reports whether the period describes a real month.
func (p Period) Valid() bool {
	return p.Year >= 1 && p.Month >= 1 && p.Month <= 12
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Key renders the canonical "2006-01" code.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Index is the absolute month number, used for ordering and distance.
func (p Period) Index() int {
	return p.Year*12 + (p.Month - 1)
}

// Before reports strict ordering.
func (p Period) Before(other Period) bool {
	return p.Index() < other.Index()
}

// After reports strict ordering.
func (p Period) After(other Period) bool {
	return p.Index() > other.Index()
}

// Next returns the following month.
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// AddMonths shifts the period by n months (n may be negative).
func (p Period) AddMonths(n int) Period {
	idx := p.Index() + n
	return Period{Year: idx / 12, Month: idx%12 + 1}
}

// MonthCount returns the inclusive number of months from start to end,
// zero when the range is inverted or either endpoint is invalid.
func MonthCount(start, end Period) int {
	if !start.Valid() || !end.Valid() {
		return 0
	}
	n := end.Index() - start.Index() + 1
	if n < 1 {
		return 0
	}
	return n
}

// PeriodsBetween expands the inclusive range into individual months.
func PeriodsBetween(start, end Period) []Period {
	n := MonthCount(start, end)
	if n == 0 {
		return nil
	}
	periods := make([]Period, 0, n)
	for p := start; !p.After(end); p = p.Next() {
		periods = append(periods, p)
	}
	return periods
}

// InRange reports whether p falls within [start, end] inclusive.
func (p Period) InRange(start, end Period) bool {
	return !p.Before(start) && !p.After(end)
}

// QuarterStart returns the first month of the quarter containing p.
func (p Period) QuarterStart() Period {
	return Period{Year: p.Year, Month: ((p.Month-1)/3)*3 + 1}
}

// ExpandGranularity returns the months a statement column spans for the
// target period: the month itself, its quarter to date, or its year to
// date. Unknown granularity falls back to monthly.
func ExpandGranularity(granularity string, target Period) []Period {
	switch granularity {
	case GranularityQuarterly:
		return PeriodsBetween(target.QuarterStart(), target)
	case GranularityYearly:
		return PeriodsBetween(Period{Year: target.Year, Month: 1}, target)
	default:
		return []Period{target}
	}
}
