package store

import (
	"fmt"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/record"
)

// Builder assembles a Tree incrementally. Dates are given in date.Parse
// form; an empty string records the event without a date.
type Builder struct {
	tree     Tree
	persons  map[string]int
	families map[string]int
	nextID   int
}

// NewBuilder returns an empty builder
func NewBuilder() *Builder {
	return &Builder{
		persons:  make(map[string]int),
		families: make(map[string]int),
	}
}

// PersonBuilder adds events to one person
type PersonBuilder struct {
	b   *Builder
	idx int
}

// Person adds (or returns) the person with the given handle
func (b *Builder) Person(handle, given, surname string) *PersonBuilder {
	if idx, ok := b.persons[handle]; ok {
		return &PersonBuilder{b: b, idx: idx}
	}
	b.tree.Persons = append(b.tree.Persons, record.Person{
		Handle: handle,
		Name:   record.Name{Given: given, Surname: surname},
	})
	idx := len(b.tree.Persons) - 1
	b.persons[handle] = idx
	return &PersonBuilder{b: b, idx: idx}
}

func (pb *PersonBuilder) person() *record.Person {
	return &pb.b.tree.Persons[pb.idx]
}

// Born records a designated birth event
func (pb *PersonBuilder) Born(when string) *PersonBuilder {
	ref := pb.b.event(record.EventBirth, when)
	pb.person().Birth = &ref
	pb.person().Events = append(pb.person().Events, ref)
	return pb
}

// Died records a designated death event
func (pb *PersonBuilder) Died(when string) *PersonBuilder {
	ref := pb.b.event(record.EventDeath, when)
	pb.person().Death = &ref
	pb.person().Events = append(pb.person().Events, ref)
	return pb
}

// Event appends an event in which the person holds the primary role
func (pb *PersonBuilder) Event(t record.EventType, when string) *PersonBuilder {
	return pb.EventRole(t, when, record.RolePrimary)
}

// EventRole appends an event with an explicit role
func (pb *PersonBuilder) EventRole(t record.EventType, when string, role record.Role) *PersonBuilder {
	ref := pb.b.event(t, when)
	ref.Role = role
	pb.person().Events = append(pb.person().Events, ref)
	return pb
}

// Handle returns the person's handle
func (pb *PersonBuilder) Handle() string {
	return pb.person().Handle
}

// FamilyBuilder adds events to one family
type FamilyBuilder struct {
	b   *Builder
	idx int
}

// Family records a family and links its members. Handles that do not (yet)
// name a person are kept as dangling references.
func (b *Builder) Family(handle, father, mother string, children ...string) *FamilyBuilder {
	b.tree.Families = append(b.tree.Families, record.Family{
		Handle:   handle,
		Father:   father,
		Mother:   mother,
		Children: append([]string(nil), children...),
	})
	idx := len(b.tree.Families) - 1
	b.families[handle] = idx

	for _, parent := range []string{father, mother} {
		if pi, ok := b.persons[parent]; ok && parent != "" {
			p := &b.tree.Persons[pi]
			if !contains(p.Families, handle) {
				p.Families = append(p.Families, handle)
			}
		}
	}
	for _, child := range children {
		if ci, ok := b.persons[child]; ok {
			p := &b.tree.Persons[ci]
			p.ParentFamilies = append(p.ParentFamilies, handle)
		}
	}
	return &FamilyBuilder{b: b, idx: idx}
}

// Event appends a family event
func (fb *FamilyBuilder) Event(t record.EventType, when string) *FamilyBuilder {
	ref := fb.b.event(t, when)
	ref.Role = record.RoleFamily
	f := &fb.b.tree.Families[fb.idx]
	f.Events = append(f.Events, ref)
	return fb
}

func (b *Builder) event(t record.EventType, when string) record.EventRef {
	b.nextID++
	handle := fmt.Sprintf("E%04d", b.nextID)
	b.tree.Events = append(b.tree.Events, record.Event{
		Handle: handle,
		Type:   t,
		Date:   date.MustParse(when),
	})
	return record.EventRef{Handle: handle, Role: record.RolePrimary}
}

// Tree returns the assembled tree
func (b *Builder) Tree() Tree {
	return b.tree
}

// Build returns the assembled tree as a Memory store
func (b *Builder) Build() *Memory {
	return NewMemory(b.tree)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
