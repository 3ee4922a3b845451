// Package store provides record.Accessor implementations: an in-memory
// tree loaded from YAML/JSON, a SQLite database, a Neo4j/Memgraph graph and
// a read-through cache usable in front of any of them.
package store

import (
	"context"
	"sort"

	"github.com/ppiankov/lifespan/internal/record"
)

// Memory is an immutable in-memory record graph
type Memory struct {
	persons  map[string]*record.Person
	families map[string]*record.Family
	events   map[string]*record.Event
}

// Tree is the serialised form of a record graph
type Tree struct {
	Persons  []record.Person `json:"persons" yaml:"persons"`
	Families []record.Family `json:"families,omitempty" yaml:"families,omitempty"`
	Events   []record.Event  `json:"events,omitempty" yaml:"events,omitempty"`
}

// NewMemory indexes a tree by handle. Later duplicates replace earlier ones.
func NewMemory(t Tree) *Memory {
	m := &Memory{
		persons:  make(map[string]*record.Person, len(t.Persons)),
		families: make(map[string]*record.Family, len(t.Families)),
		events:   make(map[string]*record.Event, len(t.Events)),
	}
	for i := range t.Persons {
		p := clonePerson(&t.Persons[i])
		m.persons[p.Handle] = p
	}
	for i := range t.Families {
		f := cloneFamily(&t.Families[i])
		m.families[f.Handle] = f
	}
	for i := range t.Events {
		e := t.Events[i]
		e.Type = e.Type.Normalize()
		m.events[e.Handle] = &e
	}
	return m
}

// Person implements record.Accessor
func (m *Memory) Person(_ context.Context, handle string) (*record.Person, error) {
	p, ok := m.persons[handle]
	if !ok {
		return nil, record.NotFound("person", handle)
	}
	return clonePerson(p), nil
}

// Family implements record.Accessor
func (m *Memory) Family(_ context.Context, handle string) (*record.Family, error) {
	f, ok := m.families[handle]
	if !ok {
		return nil, record.NotFound("family", handle)
	}
	return cloneFamily(f), nil
}

// Event implements record.Accessor
func (m *Memory) Event(_ context.Context, handle string) (*record.Event, error) {
	e, ok := m.events[handle]
	if !ok {
		return nil, record.NotFound("event", handle)
	}
	out := *e
	return &out, nil
}

// PersonHandles implements record.Lister, sorted for stable output
func (m *Memory) PersonHandles(_ context.Context) ([]string, error) {
	handles := make([]string, 0, len(m.persons))
	for h := range m.persons {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles, nil
}

// Tree returns a sorted copy of the graph in serialised form
func (m *Memory) Tree() Tree {
	var t Tree
	for _, h := range sortedKeys(m.persons) {
		t.Persons = append(t.Persons, *clonePerson(m.persons[h]))
	}
	for _, h := range sortedKeys(m.families) {
		t.Families = append(t.Families, *cloneFamily(m.families[h]))
	}
	for _, h := range sortedKeys(m.events) {
		t.Events = append(t.Events, *m.events[h])
	}
	return t
}

// Len returns the number of persons, families and events
func (m *Memory) Len() (persons, families, events int) {
	return len(m.persons), len(m.families), len(m.events)
}

func sortedKeys[V any](in map[string]V) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clonePerson(p *record.Person) *record.Person {
	out := *p
	if p.Birth != nil {
		b := *p.Birth
		out.Birth = &b
	}
	if p.Death != nil {
		d := *p.Death
		out.Death = &d
	}
	out.Events = append([]record.EventRef(nil), p.Events...)
	out.ParentFamilies = append([]string(nil), p.ParentFamilies...)
	out.Families = append([]string(nil), p.Families...)
	return &out
}

func cloneFamily(f *record.Family) *record.Family {
	out := *f
	out.Children = append([]string(nil), f.Children...)
	out.Events = append([]record.EventRef(nil), f.Events...)
	return &out
}

// Close is a no-op so Memory satisfies Backend
func (m *Memory) Close() error {
	return nil
}
