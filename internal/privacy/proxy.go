// Package privacy hides people who are probably still alive.
package privacy

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/estimate"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/record"
)

// Mode selects how living people are hidden
type Mode string

const (
	ModeRestrict Mode = "restrict" // Keep the person, drop name and events
	ModeExclude  Mode = "exclude"  // Remove the person entirely
)

// LivingName replaces the given name of restricted people
const LivingName = "Living"

// ParseMode validates a mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeRestrict, ModeExclude:
		return Mode(s), nil
	case "":
		return ModeRestrict, nil
	}
	return "", errors.Newf("unknown privacy mode %q (want restrict or exclude)", s)
}

// Proxy is a record.Accessor that redacts probably-living people. The
// decider must read from the unredacted source.
type Proxy struct {
	next    record.Accessor
	decider *estimate.Decider
	mode    Mode
	ref     date.Date
	opts    []estimate.Option
	log     *zap.SugaredLogger

	living sync.Map // handle -> bool
}

// NewProxy wraps next. An invalid ref means today.
func NewProxy(next record.Accessor, decider *estimate.Decider, mode Mode, ref date.Date, log *zap.SugaredLogger, opts ...estimate.Option) *Proxy {
	return &Proxy{
		next:    next,
		decider: decider,
		mode:    mode,
		ref:     ref,
		opts:    opts,
		log:     logger.Or(log),
	}
}

// IsLiving reports whether the person is hidden by the proxy. People whose
// records form a cycle are treated as living.
func (p *Proxy) IsLiving(ctx context.Context, person *record.Person) (bool, error) {
	if v, ok := p.living.Load(person.Handle); ok {
		return v.(bool), nil
	}
	alive, err := p.decider.IsProbablyAlive(ctx, person, p.ref, p.opts...)
	if err != nil {
		if !estimate.IsCycle(err) {
			return false, err
		}
		p.log.Warnw("Cycle in records, hiding person",
			logger.FieldHandle, person.Handle,
			logger.FieldError, err)
		alive = true
	}
	p.living.Store(person.Handle, alive)
	return alive, nil
}

func (p *Proxy) livingHandle(ctx context.Context, handle string) (bool, error) {
	if handle == "" {
		return false, nil
	}
	if v, ok := p.living.Load(handle); ok {
		return v.(bool), nil
	}
	person, err := p.next.Person(ctx, handle)
	if err != nil {
		if record.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return p.IsLiving(ctx, person)
}

func (p *Proxy) Person(ctx context.Context, handle string) (*record.Person, error) {
	person, err := p.next.Person(ctx, handle)
	if err != nil {
		return nil, err
	}
	living, err := p.IsLiving(ctx, person)
	if err != nil || !living {
		return person, err
	}

	if p.mode == ModeExclude {
		return nil, record.NotFound("person", handle)
	}
	person.Name.Given = LivingName
	person.Birth = nil
	person.Death = nil
	person.Events = nil
	return person, nil
}

// Family hides the events of couples with a living spouse. In exclude mode
// it also drops references to excluded people.
func (p *Proxy) Family(ctx context.Context, handle string) (*record.Family, error) {
	f, err := p.next.Family(ctx, handle)
	if err != nil {
		return nil, err
	}

	for _, parent := range []*string{&f.Father, &f.Mother} {
		living, err := p.livingHandle(ctx, *parent)
		if err != nil {
			return nil, err
		}
		if !living {
			continue
		}
		f.Events = nil
		if p.mode == ModeExclude {
			*parent = ""
		}
	}
	if p.mode != ModeExclude {
		return f, nil
	}

	children := f.Children[:0]
	for _, ch := range f.Children {
		living, err := p.livingHandle(ctx, ch)
		if err != nil {
			return nil, err
		}
		if !living {
			children = append(children, ch)
		}
	}
	f.Children = children
	return f, nil
}

func (p *Proxy) Event(ctx context.Context, handle string) (*record.Event, error) {
	return p.next.Event(ctx, handle)
}

// PersonHandles lists the visible people
func (p *Proxy) PersonHandles(ctx context.Context) ([]string, error) {
	l, ok := p.next.(record.Lister)
	if !ok {
		return nil, errors.New("source cannot list persons")
	}
	handles, err := l.PersonHandles(ctx)
	if err != nil || p.mode != ModeExclude {
		return handles, err
	}
	visible := handles[:0]
	for _, h := range handles {
		living, err := p.livingHandle(ctx, h)
		if err != nil {
			return nil, err
		}
		if !living {
			visible = append(visible, h)
		}
	}
	return visible, nil
}
