// Package evidence reads the birth and death evidence recorded directly on
// a person. It never infers anything from relatives.
package evidence

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/record"
)

// DeathState distinguishes what is known about a person's death
type DeathState int

const (
	DeathUnknown   DeathState = iota // Nothing recorded
	DeathDated                       // A dated death or death-fallback event
	DeathConfirmed                   // Death is recorded but no usable date
)

func (s DeathState) String() string {
	switch s {
	case DeathDated:
		return "dated"
	case DeathConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Death is the tagged death evidence. Date is valid only when State is
// DeathDated.
type Death struct {
	State DeathState
	Date  date.Date
}

// Direct is the directly recorded evidence for one person
type Direct struct {
	Birth       date.Date // Invalid when no birth evidence
	BirthSource string    // Event type the birth came from, e.g. "birth", "baptism"
	Death       Death
	DeathSource string
}

// HasBirth reports whether a birth date was found
func (d Direct) HasBirth() bool { return d.Birth.IsValid() }

// HasDeathDate reports whether a death date was found
func (d Direct) HasDeathDate() bool { return d.Death.State == DeathDated }

// IsDead reports whether death is recorded, dated or not
func (d Direct) IsDead() bool { return d.Death.State != DeathUnknown }

// Extractor pulls direct evidence from person records
type Extractor struct {
	records record.Accessor
	fuzz    date.Fuzz
	log     *zap.SugaredLogger
}

// NewExtractor creates an extractor over the given accessor
func NewExtractor(records record.Accessor, fuzz date.Fuzz, log *zap.SugaredLogger) *Extractor {
	return &Extractor{
		records: records,
		fuzz:    fuzz,
		log:     logger.Or(log),
	}
}

// Extract returns the direct evidence for p. Dangling event handles are
// treated as missing evidence; any other lookup failure is returned.
func (e *Extractor) Extract(ctx context.Context, p *record.Person) (Direct, error) {
	var out Direct
	if p == nil {
		return out, nil
	}

	if err := e.extractDeath(ctx, p, &out); err != nil {
		return Direct{}, err
	}
	if err := e.extractBirth(ctx, p, &out); err != nil {
		return Direct{}, err
	}

	if out.HasBirth() && out.HasDeathDate() && e.fuzz.Earlier(out.Death.Date, out.Birth) {
		e.log.Warnw("Death recorded before birth, discarding death date",
			logger.FieldHandle, p.Handle,
			"birth", out.Birth.String(),
			"death", out.Death.Date.String())
		out.Death = Death{State: DeathConfirmed}
	}

	return out, nil
}

// ExtractHandle resolves a person and extracts its evidence. A dangling
// handle yields a nil person and empty evidence.
func (e *Extractor) ExtractHandle(ctx context.Context, handle string) (*record.Person, Direct, error) {
	if handle == "" {
		return nil, Direct{}, nil
	}
	p, err := e.records.Person(ctx, handle)
	if err != nil {
		if record.IsNotFound(err) {
			e.log.Debugw("Dangling person reference", logger.FieldHandle, handle)
			return nil, Direct{}, nil
		}
		return nil, Direct{}, errors.Wrapf(err, "load person %s", handle)
	}
	d, err := e.Extract(ctx, p)
	return p, d, err
}

func (e *Extractor) extractDeath(ctx context.Context, p *record.Person, out *Direct) error {
	if p.Death != nil && p.Death.Role.IsPrimary() {
		ev, err := e.event(ctx, p.Death.Handle)
		if err != nil {
			return err
		}
		if ev != nil {
			out.DeathSource = label(ev.Type)
			if ev.Date.IsValid() {
				out.Death = Death{State: DeathDated, Date: ev.Date}
				return nil
			}
			out.Death.State = DeathConfirmed
		}
	}

	// A fallback without a date confirms death, but a later one may still
	// carry a date, so keep scanning.
	for _, ref := range p.PrimaryEvents() {
		ev, err := e.event(ctx, ref.Handle)
		if err != nil {
			return err
		}
		if ev == nil || !ev.Type.IsDeathFallback() {
			continue
		}
		if ev.Date.IsValid() {
			out.Death = Death{State: DeathDated, Date: ev.Date}
			out.DeathSource = label(ev.Type)
			return nil
		}
		if out.Death.State == DeathUnknown {
			out.Death.State = DeathConfirmed
			out.DeathSource = label(ev.Type)
		}
	}
	return nil
}

func (e *Extractor) extractBirth(ctx context.Context, p *record.Person, out *Direct) error {
	if p.Birth != nil && p.Birth.Role.IsPrimary() {
		ev, err := e.event(ctx, p.Birth.Handle)
		if err != nil {
			return err
		}
		if ev != nil && ev.Date.IsValid() {
			out.Birth = ev.Date
			out.BirthSource = label(ev.Type)
			return nil
		}
	}

	for _, ref := range p.PrimaryEvents() {
		ev, err := e.event(ctx, ref.Handle)
		if err != nil {
			return err
		}
		if ev != nil && ev.Type.IsBirthFallback() && ev.Date.IsValid() {
			out.Birth = ev.Date
			out.BirthSource = label(ev.Type)
			return nil
		}
	}
	return nil
}

func (e *Extractor) event(ctx context.Context, handle string) (*record.Event, error) {
	ev, err := e.records.Event(ctx, handle)
	if err != nil {
		if record.IsNotFound(err) {
			e.log.Debugw("Dangling event reference", logger.FieldHandle, handle)
			return nil, nil
		}
		return nil, errors.Wrapf(err, "load event %s", handle)
	}
	return ev, nil
}

func label(t record.EventType) string {
	return strings.ToLower(string(t.Normalize()))
}
