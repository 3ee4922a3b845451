package date

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrSyntax is returned by Parse for text it cannot read
var ErrSyntax = errors.New("date: invalid syntax")

var prefixes = []struct {
	word string
	mod  Modifier
}{
	{"about ", ModAbout},
	{"abt ", ModAbout},
	{"est ", ModAbout},
	{"calc ", ModAbout},
	{"before ", ModBefore},
	{"bef ", ModBefore},
	{"after ", ModAfter},
	{"aft ", ModAfter},
}

// Parse reads the text form produced by String. The empty string parses to
// the invalid date.
//
//	1900, 1900-05, 1900-05-17
//	abt 1900, bef 1900-05, aft 1900
//	bet 1900 and 1910, from 1900 to 1910
func Parse(s string) (Date, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Date{}, nil
	}

	for _, pair := range [][2]string{{"bet ", " and "}, {"between ", " and "}, {"from ", " to "}} {
		if rest, ok := strings.CutPrefix(s, pair[0]); ok {
			lo, hi, found := strings.Cut(rest, pair[1])
			if !found {
				return Date{}, errors.Wrapf(ErrSyntax, "range %q missing %q", s, strings.TrimSpace(pair[1]))
			}
			a, err := parseYMD(lo)
			if err != nil {
				return Date{}, err
			}
			b, err := parseYMD(hi)
			if err != nil {
				return Date{}, err
			}
			if b.startDay() < a.startDay() {
				return Date{}, errors.Wrapf(ErrSyntax, "range %q ends before it starts", s)
			}
			return Range(a, b), nil
		}
	}

	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(s, p.word); ok {
			d, err := parseYMD(rest)
			if err != nil {
				return Date{}, err
			}
			return d.withMod(p.mod), nil
		}
	}

	return parseYMD(s)
}

// MustParse is Parse that panics on error, for tests and literals
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

func parseYMD(s string) (Date, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	if len(parts) > 3 || parts[0] == "" {
		return Date{}, errors.Wrapf(ErrSyntax, "%q", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, errors.Wrapf(ErrSyntax, "%q: %v", s, err)
		}
		nums[i] = n
	}
	d := New(nums[0], nums[1], nums[2])
	if !d.IsValid() {
		return Date{}, errors.Wrapf(ErrSyntax, "%q out of range", s)
	}
	return d, nil
}

func ymd(y, m, d int) string {
	switch {
	case m == 0:
		return fmt.Sprintf("%04d", y)
	case d == 0:
		return fmt.Sprintf("%04d-%02d", y, m)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
	}
}

// String renders d in the form accepted by Parse
func (d Date) String() string {
	if !d.IsValid() {
		return ""
	}
	base := ymd(d.year, d.month, d.day)
	switch d.mod {
	case ModAbout:
		return "abt " + base
	case ModBefore:
		return "bef " + base
	case ModAfter:
		return "aft " + base
	case ModRange:
		return "bet " + base + " and " + ymd(d.year2, d.month2, d.day2)
	default:
		return base
	}
}

// MarshalText implements encoding.TextMarshaler
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
