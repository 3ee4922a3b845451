package estimate

import (
	"context"

	"go.uber.org/zap"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/record"
)

// Verdict is the aliveness answer together with the range behind it
type Verdict struct {
	Alive       bool
	Birth       date.Date
	Death       date.Date
	Explanation string
	Relative    *record.Person
	Phase       Phase
}

// Option adjusts a single Decide call
type Option func(*decideOptions)

type decideOptions struct {
	graceYears int
}

// WithGraceYears extends the estimated death by n years before comparing
func WithGraceYears(n int) Option {
	return func(o *decideOptions) {
		o.graceYears = n
	}
}

// Decider answers "was this person probably alive on a given date"
type Decider struct {
	est *Estimator
	log *zap.SugaredLogger
}

// NewDecider wraps an estimator
func NewDecider(est *Estimator) *Decider {
	return &Decider{est: est, log: est.log}
}

// Estimator returns the wrapped estimator
func (d *Decider) Estimator() *Estimator {
	return d.est
}

// Decide estimates p's range and tests ref against it. An invalid ref means
// today. The window is inclusive at birth and exclusive at death. When
// either end cannot be estimated the person is presumed alive.
func (d *Decider) Decide(ctx context.Context, p *record.Person, ref date.Date, opts ...Option) (Verdict, error) {
	var o decideOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !ref.IsValid() {
		ref = date.Today(d.est.cfg.Clock)
	}

	r, err := d.est.Estimate(ctx, p)
	if err != nil {
		return Verdict{}, err
	}
	v := Verdict{
		Birth:       r.Birth,
		Death:       r.Death,
		Explanation: r.Explanation,
		Relative:    r.Relative,
		Phase:       r.Phase,
	}

	birthOK, deathOK := r.Birth.IsValid(), r.Death.IsValid()
	if !birthOK || !deathOK {
		if birthOK != deathOK && p != nil {
			d.log.Warnw("Only one end of the range resolved, presuming alive",
				logger.FieldHandle, p.Handle,
				logger.FieldPhase, r.Phase.String())
		}
		v.Alive = true
		return v, nil
	}

	death := r.Death.Offset(o.graceYears, 0, 0)
	fuzz := d.est.cfg.Fuzz
	v.Alive = fuzz.Compare(ref, r.Birth, date.OpGE) && fuzz.Compare(ref, death, date.OpLT)
	return v, nil
}

// DecideHandle loads the person by handle and decides
func (d *Decider) DecideHandle(ctx context.Context, handle string, ref date.Date, opts ...Option) (*record.Person, Verdict, error) {
	p, err := d.est.records.Person(ctx, handle)
	if err != nil {
		return nil, Verdict{}, wrapLoad(err, handle)
	}
	v, err := d.Decide(ctx, p, ref, opts...)
	return p, v, err
}

// IsProbablyAlive is Decide reduced to its boolean
func (d *Decider) IsProbablyAlive(ctx context.Context, p *record.Person, ref date.Date, opts ...Option) (bool, error) {
	v, err := d.Decide(ctx, p, ref, opts...)
	if err != nil {
		return false, err
	}
	return v.Alive, nil
}
