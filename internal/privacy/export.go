package privacy

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/lifespan/internal/record"
	"github.com/ppiankov/lifespan/internal/store"
)

// Stats summarises an export
type Stats struct {
	Persons  int `json:"persons"`
	Living   int `json:"living"`
	Families int `json:"families"`
	Events   int `json:"events"`
}

// Export collects every visible person with the families and events they
// reference into a tree
func Export(ctx context.Context, p *Proxy) (store.Tree, Stats, error) {
	var (
		tree     store.Tree
		stats    Stats
		families = make(map[string]bool)
		events   = make(map[string]bool)
	)

	handles, err := p.PersonHandles(ctx)
	if err != nil {
		return tree, stats, err
	}

	addEvent := func(ref record.EventRef) error {
		if events[ref.Handle] {
			return nil
		}
		events[ref.Handle] = true
		ev, err := p.Event(ctx, ref.Handle)
		if err != nil {
			if record.IsNotFound(err) {
				return nil
			}
			return err
		}
		tree.Events = append(tree.Events, *ev)
		return nil
	}

	var famOrder []string
	for _, h := range handles {
		if err := ctx.Err(); err != nil {
			return tree, stats, err
		}
		person, err := p.Person(ctx, h)
		if err != nil {
			if record.IsNotFound(err) {
				continue
			}
			return tree, stats, errors.Wrapf(err, "export person %s", h)
		}
		if living, _ := p.IsLiving(ctx, person); living {
			stats.Living++
		}
		tree.Persons = append(tree.Persons, *person)
		for _, ref := range person.Events {
			if err := addEvent(ref); err != nil {
				return tree, stats, err
			}
		}
		for _, fh := range append(append([]string(nil), person.ParentFamilies...), person.Families...) {
			if !families[fh] {
				families[fh] = true
				famOrder = append(famOrder, fh)
			}
		}
	}

	for _, fh := range famOrder {
		f, err := p.Family(ctx, fh)
		if err != nil {
			if record.IsNotFound(err) {
				continue
			}
			return tree, stats, errors.Wrapf(err, "export family %s", fh)
		}
		tree.Families = append(tree.Families, *f)
		for _, ref := range f.Events {
			if err := addEvent(ref); err != nil {
				return tree, stats, err
			}
		}
	}

	stats.Persons = len(tree.Persons)
	stats.Families = len(tree.Families)
	stats.Events = len(tree.Events)
	return tree, stats, nil
}
