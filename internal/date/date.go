// Package date implements imprecise genealogical calendar dates.
//
// A Date carries a year with optional month and day precision plus a
// modifier (exact, about, before, after, range). The zero value is the
// invalid date, which is how "no date recorded" is represented.
package date

import (
	"fmt"
	"time"
)

// Modifier qualifies how a date should be read
type Modifier int

const (
	ModNone   Modifier = iota // Exact to its precision (year, month or day)
	ModAbout                  // Approximately
	ModBefore                 // On or before
	ModAfter                  // On or after
	ModRange                  // Somewhere between start and end
)

func (m Modifier) String() string {
	switch m {
	case ModAbout:
		return "about"
	case ModBefore:
		return "before"
	case ModAfter:
		return "after"
	case ModRange:
		return "range"
	default:
		return "exact"
	}
}

// Date is an immutable fuzzy calendar date
type Date struct {
	year, month, day    int
	mod                 Modifier
	year2, month2, day2 int // range end, only set when mod == ModRange
}

// New returns an exact date. Month and day may be zero for reduced precision.
func New(year, month, day int) Date {
	return Date{year: year, month: month, day: day}
}

// Year returns an exact year-precision date
func Year(year int) Date {
	return Date{year: year}
}

// About returns d marked as approximate
func About(d Date) Date {
	return d.withMod(ModAbout)
}

// Before returns d marked as an upper bound
func Before(d Date) Date {
	return d.withMod(ModBefore)
}

// After returns d marked as a lower bound
func After(d Date) Date {
	return d.withMod(ModAfter)
}

// Range returns a range spanning from the start of low to the end of high.
// Endpoints are swapped when given out of order.
func Range(low, high Date) Date {
	end := high.End()
	start := low.Start()
	if end.startDay() < start.startDay() {
		start, end = high.Start(), low.End()
	}
	return Date{
		year: start.year, month: start.month, day: start.day,
		mod:   ModRange,
		year2: end.year, month2: end.month, day2: end.day,
	}
}

// FromTime converts t to an exact day-precision date
func FromTime(t time.Time) Date {
	return New(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current date according to clock (time.Now when nil)
func Today(clock func() time.Time) Date {
	if clock == nil {
		clock = time.Now
	}
	return FromTime(clock())
}

// Yesterday returns the day before Today(clock)
func Yesterday(clock func() time.Time) Date {
	return Today(clock).Offset(0, 0, -1)
}

func (d Date) withMod(m Modifier) Date {
	if m == ModRange {
		return Range(d, d)
	}
	out := d.Start()
	out.mod = m
	return out
}

// Year returns the start year (0 for an invalid date)
func (d Date) Year() int { return d.year }

// Month returns the start month (0 when unknown)
func (d Date) Month() int { return d.month }

// Day returns the start day (0 when unknown)
func (d Date) Day() int { return d.day }

// Modifier returns the date modifier
func (d Date) Modifier() Modifier { return d.mod }

// IsRange reports whether d has two endpoints
func (d Date) IsRange() bool { return d.mod == ModRange }

// Start returns the start endpoint as an exact date
func (d Date) Start() Date {
	return New(d.year, d.month, d.day)
}

// End returns the end endpoint as an exact date. For non-range dates this
// is the same as Start.
func (d Date) End() Date {
	if d.mod == ModRange {
		return New(d.year2, d.month2, d.day2)
	}
	return d.Start()
}

// IsValid reports whether d carries at least a year and well-formed parts.
// Only years of the common era (1 and later) are valid, so an offset that
// lands before year 1 yields an invalid date.
func (d Date) IsValid() bool {
	if !validParts(d.year, d.month, d.day) {
		return false
	}
	if d.mod != ModRange {
		return true
	}
	if !validParts(d.year2, d.month2, d.day2) {
		return false
	}
	return d.Start().startDay() <= d.End().startDay()
}

func validParts(y, m, day int) bool {
	if y < 1 || m < 0 || m > 12 || day < 0 {
		return false
	}
	if day > 0 {
		if m == 0 {
			return false
		}
		if day > daysIn(y, m) {
			return false
		}
	}
	return true
}

// Offset shifts every endpoint of d by the given years, months and days.
// Components finer than the date's precision are ignored.
func (d Date) Offset(years, months, days int) Date {
	if !d.IsValid() {
		return d
	}
	out := d
	out.year, out.month, out.day = shift(d.year, d.month, d.day, years, months, days)
	if d.mod == ModRange {
		out.year2, out.month2, out.day2 = shift(d.year2, d.month2, d.day2, years, months, days)
	}
	return out
}

// ToRange is DefaultFuzz().ToRange(d, low, high)
func (d Date) ToRange(low, high int) Date {
	return DefaultFuzz().ToRange(d, low, high)
}

func shift(y, m, day, dy, dm, dd int) (int, int, int) {
	switch {
	case m == 0:
		return y + dy + dm/12, 0, 0
	case day == 0:
		total := y*12 + (m - 1) + dy*12 + dm
		ny := floorDiv(total, 12)
		return ny, total - ny*12 + 1, 0
	default:
		t := time.Date(y, time.Month(m), day, 0, 0, 0, 0, time.UTC).AddDate(dy, dm, dd)
		return t.Year(), int(t.Month()), t.Day()
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func daysIn(y, m int) int {
	return time.Date(y, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// startDay is the day number of the first instant covered by the start
// endpoint at its precision
func (d Date) startDay() int64 {
	m, day := d.month, d.day
	if m == 0 {
		m = 1
	}
	if day == 0 {
		day = 1
	}
	return dayNumber(d.year, m, day)
}

// endDay is the day number of the last instant covered by the end endpoint
func (d Date) endDay() int64 {
	e := d.End()
	m, day := e.month, e.day
	if m == 0 {
		m = 12
	}
	if day == 0 {
		day = daysIn(e.year, m)
	}
	return dayNumber(e.year, m, day)
}

func dayNumber(y, m, d int) int64 {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// Duration is a calendar difference between two dates
type Duration struct {
	Years  int `json:"years"`
	Months int `json:"months"`
	Days   int `json:"days"`
}

func (s Duration) String() string {
	return fmt.Sprintf("%dy %dm %dd", s.Years, s.Months, s.Days)
}

// Negative reports whether the duration points backwards in time
func (s Duration) Negative() bool {
	return s.Years < 0 || s.Months < 0 || s.Days < 0
}

// Sub returns the calendar difference d - other between start endpoints.
// Unknown months and days are read as the first of the period.
func (d Date) Sub(other Date) Duration {
	if !d.IsValid() || !other.IsValid() {
		return Duration{}
	}
	a, b := d.fill(), other.fill()
	sign := 1
	if a.Before(b) {
		a, b = b, a
		sign = -1
	}
	years := a.Year() - b.Year()
	months := int(a.Month()) - int(b.Month())
	days := a.Day() - b.Day()
	if days < 0 {
		months--
		days += daysIn(a.Year(), int(a.Month())-1)
	}
	if months < 0 {
		years--
		months += 12
	}
	return Duration{Years: sign * years, Months: sign * months, Days: sign * days}
}

func (d Date) fill() time.Time {
	m, day := d.month, d.day
	if m == 0 {
		m = 1
	}
	if day == 0 {
		day = 1
	}
	return time.Date(d.year, time.Month(m), day, 0, 0, 0, 0, time.UTC)
}
