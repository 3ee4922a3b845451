package date

import "time"

// Op is a comparison operator for Compare
type Op string

const (
	OpGE Op = ">="
	OpGT Op = ">"
	OpLT Op = "<"
	OpLE Op = "<="
	OpEQ Op = "=="
)

// Fuzz holds the spans, in years, used to turn about/before/after dates
// into plausible intervals
type Fuzz struct {
	About  int `json:"about" yaml:"about" mapstructure:"about"`
	Before int `json:"before" yaml:"before" mapstructure:"before"`
	After  int `json:"after" yaml:"after" mapstructure:"after"`
}

// DefaultFuzz returns the standard 50 year spans
func DefaultFuzz() Fuzz {
	return Fuzz{About: 50, Before: 50, After: 50}
}

// Interval returns the earliest and latest day numbers d plausibly covers
func (f Fuzz) Interval(d Date) (lo, hi int64) {
	lo, hi = d.startDay(), d.endDay()
	switch d.mod {
	case ModAbout:
		lo = shiftDay(lo, -f.About)
		hi = shiftDay(hi, f.About)
	case ModBefore:
		lo = shiftDay(lo, -f.Before)
	case ModAfter:
		hi = shiftDay(hi, f.After)
	}
	return lo, hi
}

// Span returns the earliest and latest exact endpoints d plausibly covers,
// at d's own precision. The open side of a before or after date extends by
// the matching span.
func (f Fuzz) Span(d Date) (lo, hi Date) {
	lo, hi = d.Start(), d.End()
	switch d.mod {
	case ModAbout:
		lo, hi = lo.Offset(-f.About, 0, 0), hi.Offset(f.About, 0, 0)
	case ModBefore:
		lo = lo.Offset(-f.Before, 0, 0)
	case ModAfter:
		hi = hi.Offset(f.After, 0, 0)
	}
	return lo, hi
}

// ToRange widens d into a range from its earliest plausible point shifted by
// low years to its latest shifted by high years
func (f Fuzz) ToRange(d Date, low, high int) Date {
	if !d.IsValid() {
		return d
	}
	lo, hi := f.Span(d)
	return Range(lo.Offset(low, 0, 0), hi.Offset(high, 0, 0))
}

func shiftDay(day int64, years int) int64 {
	if years == 0 {
		return day
	}
	t := time.Unix(day*86400, 0).UTC().AddDate(years, 0, 0)
	return t.Unix() / 86400
}

// Compare evaluates "a op b" over plausible intervals. Lower-bound style
// operators (>=, >) test a's latest instant against b's earliest; upper-bound
// style operators (<, <=) test a's earliest instant against b's latest;
// == holds when the intervals overlap. Invalid dates never compare.
func (f Fuzz) Compare(a, b Date, op Op) bool {
	if !a.IsValid() || !b.IsValid() {
		return false
	}
	aLo, aHi := f.Interval(a)
	bLo, bHi := f.Interval(b)
	switch op {
	case OpGE:
		return aHi >= bLo
	case OpGT:
		return aHi > bLo
	case OpLT:
		return aLo < bHi
	case OpLE:
		return aLo <= bHi
	case OpEQ:
		return aLo <= bHi && bLo <= aHi
	default:
		return false
	}
}

// Compare evaluates "d op other" with DefaultFuzz
func (d Date) Compare(other Date, op Op) bool {
	return DefaultFuzz().Compare(d, other, op)
}

// Earlier reports whether d lies entirely before other, with no overlap of
// plausible intervals
func (f Fuzz) Earlier(d, other Date) bool {
	if !d.IsValid() || !other.IsValid() {
		return false
	}
	_, dHi := f.Interval(d)
	oLo, _ := f.Interval(other)
	return dHi < oLo
}
