package estimate

import (
	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/record"
)

// Phase names the step of the search that produced a result
type Phase int

const (
	PhaseSelfDirect Phase = iota + 1
	PhaseSelfBounded
	PhaseSpouseImmediate
	PhaseDescendantScan
	PhaseAncestorScan
	PhaseSpouseFull
	PhaseUnresolved
)

func (p Phase) String() string {
	switch p {
	case PhaseSelfDirect:
		return "self-direct"
	case PhaseSelfBounded:
		return "self-bounded"
	case PhaseSpouseImmediate:
		return "spouse-immediate"
	case PhaseDescendantScan:
		return "descendant-scan"
	case PhaseAncestorScan:
		return "ancestor-scan"
	case PhaseSpouseFull:
		return "spouse-full"
	case PhaseUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Result is an estimated lifespan. Birth and Death are invalid when the
// search found nothing.
type Result struct {
	Birth       date.Date
	Death       date.Date
	Explanation string
	Relative    *record.Person // Relative whose records drove the estimate, nil for own records
	Phase       Phase
}

// Resolved reports whether both ends are valid
func (r Result) Resolved() bool {
	return r.Birth.IsValid() && r.Death.IsValid()
}

const noEvidence = "no evidence"

func unresolved() Result {
	return Result{Explanation: noEvidence, Phase: PhaseUnresolved}
}

// scope limits which phases a (recursive) estimate may run
type scope int

const (
	scopeFull      scope = iota // Every phase, for top-level calls
	scopeImmediate              // Own records, parents and siblings only
	scopeNoSpouse               // Everything except the spouse phases
)

func (s scope) String() string {
	switch s {
	case scopeImmediate:
		return "immediate"
	case scopeNoSpouse:
		return "no-spouse"
	default:
		return "full"
	}
}
