// Package estimate computes plausible birth and death ranges for a person
// from their own records, or by extrapolating from relatives when their own
// records are thin.
package estimate

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/evidence"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/record"
)

// Estimator runs the phased search. It holds no per-call state, so a single
// Estimator may serve concurrent callers.
type Estimator struct {
	records  record.Accessor
	evidence *evidence.Extractor
	cfg      Config
	log      *zap.SugaredLogger
}

// New creates an estimator. Zero fields in cfg take their defaults.
func New(records record.Accessor, cfg Config, log *zap.SugaredLogger) *Estimator {
	cfg = cfg.withDefaults()
	log = logger.Or(log)
	return &Estimator{
		records:  records,
		evidence: evidence.NewExtractor(records, cfg.Fuzz, log),
		cfg:      cfg,
		log:      log,
	}
}

// Config returns the effective configuration
func (e *Estimator) Config() Config {
	return e.cfg
}

// Estimate returns the birth and death range for p. Graph cycles are
// returned as *CycleError; missing relatives are skipped.
func (e *Estimator) Estimate(ctx context.Context, p *record.Person) (Result, error) {
	if p == nil {
		return unresolved(), nil
	}
	r, err := e.estimate(ctx, p, scopeFull)
	if err != nil {
		return Result{}, err
	}
	e.log.Debugw("Range estimated",
		logger.FieldHandle, p.Handle,
		logger.FieldPhase, r.Phase.String(),
		logger.FieldExplanation, r.Explanation)
	return r, nil
}

// EstimateHandle loads the person and estimates their range. Unlike
// relatives met during the search, a missing subject is an error.
func (e *Estimator) EstimateHandle(ctx context.Context, handle string) (*record.Person, Result, error) {
	p, err := e.records.Person(ctx, handle)
	if err != nil {
		return nil, Result{}, wrapLoad(err, handle)
	}
	r, err := e.Estimate(ctx, p)
	return p, r, err
}

func (e *Estimator) estimate(ctx context.Context, p *record.Person, sc scope) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	direct, err := e.evidence.Extract(ctx, p)
	if err != nil {
		return Result{}, err
	}

	if direct.HasBirth() && direct.HasDeathDate() {
		return Result{
			Birth:       direct.Birth,
			Death:       direct.Death.Date,
			Explanation: fmt.Sprintf("direct evidence: %s and %s", direct.BirthSource, direct.DeathSource),
			Phase:       PhaseSelfDirect,
		}, nil
	}

	r, err := e.selfBounded(ctx, p, direct)
	if err != nil || r.Resolved() {
		return r, err
	}
	if sc == scopeImmediate {
		return unresolved(), nil
	}

	if sc == scopeFull {
		r, err = e.spouses(ctx, p, direct, scopeImmediate, PhaseSpouseImmediate)
		if err != nil || r.Resolved() {
			return r, err
		}
		r, err = e.familyEvents(ctx, p, direct)
		if err != nil || r.Resolved() {
			return r, err
		}
	}

	r, err = e.descendants(ctx, p, direct)
	if err != nil || r.Resolved() {
		return r, err
	}

	r, err = e.ancestors(ctx, p, direct)
	if err != nil || r.Resolved() {
		return r, err
	}

	if sc == scopeFull {
		r, err = e.spouses(ctx, p, direct, scopeNoSpouse, PhaseSpouseFull)
		if err != nil || r.Resolved() {
			return r, err
		}
	}

	return unresolved(), nil
}

// bound is one side of the birth-year window built from own and immediate
// family records
type bound struct {
	year int
	set  bool
	why  string
	who  *record.Person
}

// tighten replaces the bound only when year is strictly tighter, so ties
// keep the candidate seen first
func (b *bound) tighten(year int, lower bool, why string, who *record.Person) {
	if b.set && ((lower && year <= b.year) || (!lower && year >= b.year)) {
		return
	}
	*b = bound{year: year, set: true, why: why, who: who}
}

func (e *Estimator) selfBounded(ctx context.Context, p *record.Person, direct evidence.Direct) (Result, error) {
	birth := direct.Birth
	birthWhy := "birth from " + direct.BirthSource
	var relative *record.Person

	if !birth.IsValid() {
		var lower, upper bound

		if direct.HasDeathDate() {
			d := direct.Death.Date
			lower.tighten(d.Start().Year()-e.cfg.MaxAgeProbAlive, true, "own death", nil)
			upper.tighten(d.End().Year(), false, "own death", nil)
		}

		if err := e.parentBounds(ctx, p, &lower, &upper); err != nil {
			return Result{}, err
		}
		if err := e.siblingBounds(ctx, p, &lower, &upper); err != nil {
			return Result{}, err
		}

		if lower.set && upper.set && lower.year > upper.year {
			e.log.Warnw("Conflicting birth bounds, swapping",
				logger.FieldHandle, p.Handle,
				"lower", lower.year,
				"upper", upper.year)
			lower.year, upper.year = upper.year, lower.year
		}

		switch {
		case lower.set && upper.set:
			birth = date.Range(date.Year(lower.year), date.Year(upper.year))
		case lower.set:
			birth = date.After(date.Year(lower.year))
		case upper.set:
			birth = date.Before(date.Year(upper.year))
		default:
			return Result{}, nil
		}
		birthWhy = "birth bounded by " + joinReasons(lower.why, upper.why)
		relative = lower.who
		if relative == nil {
			relative = upper.who
		}
	}

	death, deathWhy := e.deathFor(direct, birth)
	return Result{
		Birth:       birth,
		Death:       death,
		Explanation: birthWhy + ", " + deathWhy,
		Relative:    relative,
		Phase:       PhaseSelfBounded,
	}, nil
}

func (e *Estimator) parentBounds(ctx context.Context, p *record.Person, lower, upper *bound) error {
	fam, err := e.family(ctx, p.MainParentFamily())
	if err != nil || fam == nil {
		return err
	}
	father, fd, err := e.evidence.ExtractHandle(ctx, fam.Father)
	if err != nil {
		return err
	}
	mother, md, err := e.evidence.ExtractHandle(ctx, fam.Mother)
	if err != nil {
		return err
	}

	if fd.HasBirth() {
		lower.tighten(fd.Birth.Start().Year()+e.cfg.MinGenerationGap, true, "father's birth", father)
	}
	if md.HasBirth() {
		lower.tighten(md.Birth.Start().Year()+e.cfg.MinGenerationGap, true, "mother's birth", mother)
	}
	if md.HasDeathDate() {
		upper.tighten(md.Death.Date.End().Year(), false, "mother's death", mother)
	}
	// A child may be born shortly after the father's death
	if fd.HasDeathDate() {
		upper.tighten(fd.Death.Date.End().Year()+1, false, "father's death", father)
	}
	return nil
}

// siblingBounds uses the other children of the main parent family only
func (e *Estimator) siblingBounds(ctx context.Context, p *record.Person, lower, upper *bound) error {
	fam, err := e.family(ctx, p.MainParentFamily())
	if err != nil || fam == nil {
		return err
	}

	var oldest, youngest *record.Person
	minYear, maxYear := 0, 0
	for _, h := range fam.Children {
		if h == p.Handle {
			continue
		}
		sib, d, err := e.evidence.ExtractHandle(ctx, h)
		if err != nil {
			return err
		}
		if sib == nil || !d.HasBirth() {
			continue
		}
		y := d.Birth.Start().Year()
		if oldest == nil || y < minYear {
			oldest, minYear = sib, y
		}
		if youngest == nil || y > maxYear {
			youngest, maxYear = sib, y
		}
	}
	if oldest == nil {
		return nil
	}
	lower.tighten(maxYear-e.cfg.MaxSiblingAgeGap, true, "siblings' births", youngest)
	upper.tighten(minYear+e.cfg.MaxSiblingAgeGap, false, "siblings' births", oldest)
	return nil
}

// spouses resolves p from the first spouse whose own search, limited to sc,
// yields a range
func (e *Estimator) spouses(ctx context.Context, p *record.Person, direct evidence.Direct, sc scope, phase Phase) (Result, error) {
	for _, fh := range p.Families {
		fam, err := e.family(ctx, fh)
		if err != nil {
			return Result{}, err
		}
		if fam == nil {
			continue
		}
		sh := fam.Spouse(p.Handle)
		if sh == "" || sh == p.Handle {
			continue
		}
		spouse, err := e.person(ctx, sh)
		if err != nil {
			return Result{}, err
		}
		if spouse == nil {
			continue
		}

		e.log.Debugw("Trying spouse",
			logger.FieldHandle, p.Handle,
			logger.FieldRelative, sh,
			logger.FieldScope, sc.String())
		sr, err := e.estimate(ctx, spouse, sc)
		if err != nil {
			return Result{}, err
		}
		if !sr.Birth.IsValid() {
			continue
		}

		gap := e.cfg.AvgGenerationGap
		birth := e.cfg.Fuzz.ToRange(sr.Birth, -gap, gap)
		death, deathWhy := e.deathFor(direct, birth)
		return Result{
			Birth:       birth,
			Death:       death,
			Explanation: fmt.Sprintf("birth within %d years of spouse %s (%s), %s", gap, spouse.DisplayName(), sr.Phase, deathWhy),
			Relative:    spouse,
			Phase:       phase,
		}, nil
	}
	return Result{}, nil
}

// familyEvents bounds p from the first dated event (marriage, divorce, ...)
// of any family in which p is a spouse
func (e *Estimator) familyEvents(ctx context.Context, p *record.Person, direct evidence.Direct) (Result, error) {
	for _, fh := range p.Families {
		fam, err := e.family(ctx, fh)
		if err != nil {
			return Result{}, err
		}
		if fam == nil {
			continue
		}
		for _, ref := range fam.Events {
			ev, err := e.event(ctx, ref.Handle)
			if err != nil {
				return Result{}, err
			}
			if ev == nil || !ev.Date.IsValid() {
				continue
			}
			y := ev.Date.Start().Year()
			birth := date.Range(date.Year(y-e.cfg.MaxAgeProbAlive), date.Year(y-e.cfg.MinGenerationGap))
			death, deathWhy := e.deathFor(direct, birth)

			var spouse *record.Person
			if sh := fam.Spouse(p.Handle); sh != "" {
				if spouse, err = e.person(ctx, sh); err != nil {
					return Result{}, err
				}
			}
			return Result{
				Birth:       birth,
				Death:       death,
				Explanation: fmt.Sprintf("birth before family %s in %d, %s", strings.ToLower(string(ev.Type.Normalize())), y, deathWhy),
				Relative:    spouse,
				Phase:       PhaseSpouseImmediate,
			}, nil
		}
	}
	return Result{}, nil
}

// deathFor picks the death end for an estimated birth: a recorded date wins,
// a confirmed but undated death spans the plausible birth interval up to the
// maximum lifespan and no later than yesterday, otherwise the maximum
// lifespan is added to birth.
func (e *Estimator) deathFor(direct evidence.Direct, birth date.Date) (date.Date, string) {
	switch {
	case direct.HasDeathDate():
		return direct.Death.Date, "death from " + direct.DeathSource
	case direct.IsDead():
		earliest, latest := e.cfg.Fuzz.Span(birth)
		latest = latest.Offset(e.cfg.MaxAgeProbAlive, 0, 0)
		if y := date.Yesterday(e.cfg.Clock); e.cfg.Fuzz.Compare(y, latest, date.OpLT) {
			latest = y
		}
		return date.Range(earliest, latest), "death recorded without date"
	default:
		return birth.Offset(e.cfg.MaxAgeProbAlive, 0, 0), fmt.Sprintf("death within %d years of birth", e.cfg.MaxAgeProbAlive)
	}
}

func (e *Estimator) person(ctx context.Context, handle string) (*record.Person, error) {
	if handle == "" {
		return nil, nil
	}
	p, err := e.records.Person(ctx, handle)
	if err != nil {
		if record.IsNotFound(err) {
			e.log.Debugw("Dangling person reference", logger.FieldHandle, handle)
			return nil, nil
		}
		return nil, errors.Wrapf(err, "load person %s", handle)
	}
	return p, nil
}

func (e *Estimator) family(ctx context.Context, handle string) (*record.Family, error) {
	if handle == "" {
		return nil, nil
	}
	f, err := e.records.Family(ctx, handle)
	if err != nil {
		if record.IsNotFound(err) {
			e.log.Debugw("Dangling family reference", logger.FieldHandle, handle)
			return nil, nil
		}
		return nil, errors.Wrapf(err, "load family %s", handle)
	}
	return f, nil
}

func (e *Estimator) event(ctx context.Context, handle string) (*record.Event, error) {
	ev, err := e.records.Event(ctx, handle)
	if err != nil {
		if record.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "load event %s", handle)
	}
	return ev, nil
}

func wrapLoad(err error, handle string) error {
	return errors.Wrapf(err, "load person %s", handle)
}

func joinReasons(reasons ...string) string {
	var out []string
	for _, r := range reasons {
		if r == "" {
			continue
		}
		dup := false
		for _, o := range out {
			if o == r {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return strings.Join(out, " and ")
}
