package estimate

import (
	"context"
	"fmt"
	"math"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/evidence"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/record"
)

type mark int

const (
	white mark = iota
	gray       // On the current path
	black      // Finished, result memoised
)

// walk is the traversal state of one scan. A fresh walk is created for
// every scan of every call and is never stored on the Estimator.
type walk struct {
	phase Phase
	marks map[string]mark
	memo  map[string]match
	path  []string
}

func newWalk(phase Phase) *walk {
	return &walk{
		phase: phase,
		marks: make(map[string]mark),
		memo:  make(map[string]match),
	}
}

func (w *walk) enter(handle string) {
	w.marks[handle] = gray
	w.path = append(w.path, handle)
}

func (w *walk) leave(handle string, m match) {
	w.marks[handle] = black
	w.memo[handle] = m
	w.path = w.path[:len(w.path)-1]
}

func (w *walk) cycle(p *record.Person, depthLimit bool) *CycleError {
	path := append(append([]string(nil), w.path...), p.Handle)
	return &CycleError{
		Handle:     p.Handle,
		Name:       p.DisplayName(),
		Phase:      w.phase,
		Path:       path,
		DepthLimit: depthLimit,
	}
}

// match is the evidence found by a scan, depth generations away from the
// node the scan started at. Depth zero means nothing was found.
type match struct {
	depth    int
	births   []date.Date
	deaths   []date.Date
	relative *record.Person
}

func (m match) found() bool { return m.depth > 0 }

func (m match) shallower(other match) bool {
	return m.found() && (!other.found() || m.depth < other.depth)
}

func (e *Estimator) descendants(ctx context.Context, p *record.Person, direct evidence.Direct) (Result, error) {
	w := newWalk(PhaseDescendantScan)
	m, err := e.descend(ctx, w, p, 1)
	if err != nil || !m.found() {
		return Result{}, err
	}

	g := m.depth
	var birth date.Date
	var why string
	if len(m.births) > 0 {
		y := meanYear(m.births) - g*e.cfg.AvgGenerationGap
		birth = date.Year(y)
		why = fmt.Sprintf("birth from descendant births %d generation(s) down", g)
	} else {
		d := meanYear(m.deaths)
		lower := d - (g*e.cfg.AvgGenerationGap + e.cfg.MaxAgeProbAlive)
		upper := d - g*e.cfg.MinGenerationGap
		if lower > upper {
			lower, upper = upper, lower
		}
		birth = date.Range(date.Year(lower), date.Year(upper))
		why = fmt.Sprintf("birth from descendant deaths %d generation(s) down", g)
	}
	death, deathWhy := e.deathFor(direct, birth)
	return Result{
		Birth:       birth,
		Death:       death,
		Explanation: why + ", " + deathWhy,
		Relative:    m.relative,
		Phase:       PhaseDescendantScan,
	}, nil
}

// descend collects the children of p across all of p's families. If any
// child carries evidence the walk stops at that generation, otherwise it
// recurses and keeps the shallowest branch that found something.
func (e *Estimator) descend(ctx context.Context, w *walk, p *record.Person, depth int) (match, error) {
	if err := ctx.Err(); err != nil {
		return match{}, err
	}
	if depth > e.cfg.MaxDepth {
		return match{}, w.cycle(p, true)
	}
	w.enter(p.Handle)

	var children []*record.Person
	var here match
	seen := make(map[string]bool)
	for _, fh := range p.Families {
		fam, err := e.family(ctx, fh)
		if err != nil {
			return match{}, err
		}
		if fam == nil {
			continue
		}
		for _, ch := range fam.Children {
			if seen[ch] {
				continue
			}
			seen[ch] = true
			child, d, err := e.evidence.ExtractHandle(ctx, ch)
			if err != nil {
				return match{}, err
			}
			if child == nil {
				continue
			}
			if w.marks[ch] == gray {
				return match{}, w.cycle(child, false)
			}
			children = append(children, child)

			switch {
			case d.HasBirth():
				here.births = append(here.births, d.Birth)
			case d.HasDeathDate():
				here.deaths = append(here.deaths, d.Death.Date)
			default:
				continue
			}
			if here.relative == nil {
				here.relative = child
			}
		}
	}

	if here.relative != nil {
		here.depth = 1
		w.leave(p.Handle, here)
		return here, nil
	}

	var best match
	for _, child := range children {
		var m match
		if w.marks[child.Handle] == black {
			m = w.memo[child.Handle]
		} else {
			var err error
			if m, err = e.descend(ctx, w, child, depth+1); err != nil {
				return match{}, err
			}
		}
		if !m.found() {
			continue
		}
		m.depth++
		if m.shallower(best) {
			best = m
		}
	}

	w.leave(p.Handle, best)
	return best, nil
}

func (e *Estimator) ancestors(ctx context.Context, p *record.Person, direct evidence.Direct) (Result, error) {
	w := newWalk(PhaseAncestorScan)
	m, err := e.ascend(ctx, w, p, 1)
	if err != nil || !m.found() {
		return Result{}, err
	}

	span := m.depth * e.cfg.AvgGenerationGap
	var birth date.Date
	var why string
	if len(m.births) > 0 {
		birth = m.births[0].Offset(span, 0, 0)
		why = fmt.Sprintf("birth from ancestor %s's birth %d generation(s) up", m.relative.DisplayName(), m.depth)
	} else {
		lo, hi := e.cfg.Fuzz.Span(m.deaths[0])
		birth = date.Range(lo.Offset(span-e.cfg.MaxAgeProbAlive, 0, 0), hi.Offset(span, 0, 0))
		why = fmt.Sprintf("birth from ancestor %s's death %d generation(s) up", m.relative.DisplayName(), m.depth)
	}
	death, deathWhy := e.deathFor(direct, birth)
	return Result{
		Birth:       birth,
		Death:       death,
		Explanation: why + ", " + deathWhy,
		Relative:    m.relative,
		Phase:       PhaseAncestorScan,
	}, nil
}

// ascend walks the main parent family. A parent with evidence ends the walk
// at depth one, mother first; otherwise both branches are searched and the
// shallower wins, the mother's on ties.
func (e *Estimator) ascend(ctx context.Context, w *walk, p *record.Person, depth int) (match, error) {
	if err := ctx.Err(); err != nil {
		return match{}, err
	}
	if depth > e.cfg.MaxDepth {
		return match{}, w.cycle(p, true)
	}
	w.enter(p.Handle)

	fam, err := e.family(ctx, p.MainParentFamily())
	if err != nil {
		return match{}, err
	}
	if fam == nil {
		w.leave(p.Handle, match{})
		return match{}, nil
	}

	var parents []*record.Person
	for _, h := range []string{fam.Mother, fam.Father} {
		parent, d, err := e.evidence.ExtractHandle(ctx, h)
		if err != nil {
			return match{}, err
		}
		if parent == nil {
			continue
		}
		if w.marks[h] == gray {
			return match{}, w.cycle(parent, false)
		}
		switch {
		case d.HasBirth():
			m := match{depth: 1, births: []date.Date{d.Birth}, relative: parent}
			w.leave(p.Handle, m)
			return m, nil
		case d.HasDeathDate():
			m := match{depth: 1, deaths: []date.Date{d.Death.Date}, relative: parent}
			w.leave(p.Handle, m)
			return m, nil
		}
		parents = append(parents, parent)
	}

	var best match
	for _, parent := range parents {
		var m match
		if w.marks[parent.Handle] == black {
			m = w.memo[parent.Handle]
		} else if m, err = e.ascend(ctx, w, parent, depth+1); err != nil {
			return match{}, err
		}
		if !m.found() {
			continue
		}
		m.depth++
		if m.shallower(best) {
			best = m
		}
	}

	if best.found() {
		e.log.Debugw("Ancestor evidence found",
			logger.FieldHandle, p.Handle,
			logger.FieldRelative, best.relative.Handle,
			logger.FieldDepth, best.depth)
	}
	w.leave(p.Handle, best)
	return best, nil
}

func meanYear(dates []date.Date) int {
	sum := 0
	for _, d := range dates {
		sum += d.Start().Year()
	}
	return int(math.Round(float64(sum) / float64(len(dates))))
}
