// Package record defines the read-only genealogical record graph: people,
// families and events linked by handles, and the accessor contract used to
// resolve those handles.
package record

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ppiankov/lifespan/internal/date"
)

// ErrNotFound is returned by an Accessor for a handle that does not resolve
var ErrNotFound = errors.New("record not found")

// Accessor resolves handles to immutable record snapshots.
// Implementations return an error wrapping ErrNotFound for dangling handles.
type Accessor interface {
	Person(ctx context.Context, handle string) (*Person, error)
	Family(ctx context.Context, handle string) (*Family, error)
	Event(ctx context.Context, handle string) (*Event, error)
}

// Lister is implemented by accessors that can enumerate every person
type Lister interface {
	PersonHandles(ctx context.Context) ([]string, error)
}

// Role is the part a person or family plays in an event
type Role string

const (
	RolePrimary Role = "primary"
	RoleFamily  Role = "family"
	RoleOther   Role = "other"
)

// IsPrimary reports whether the role makes the event the person's own.
// An empty role is read as primary.
func (r Role) IsPrimary() bool {
	return r == RolePrimary || r == ""
}

// EventRef points from a person or family to an event
type EventRef struct {
	Handle string `json:"handle" yaml:"handle"`
	Role   Role   `json:"role,omitempty" yaml:"role,omitempty"`
}

// Name is a person's primary name
type Name struct {
	Given   string `json:"given,omitempty" yaml:"given,omitempty"`
	Surname string `json:"surname,omitempty" yaml:"surname,omitempty"`
}

func (n Name) String() string {
	return strings.TrimSpace(n.Given + " " + n.Surname)
}

// Person is a node of the record graph
type Person struct {
	Handle string `json:"handle" yaml:"handle"`
	Name   Name   `json:"name" yaml:"name"`

	Birth *EventRef `json:"birth,omitempty" yaml:"birth,omitempty"` // Designated birth event
	Death *EventRef `json:"death,omitempty" yaml:"death,omitempty"` // Designated death event

	Events         []EventRef `json:"events,omitempty" yaml:"events,omitempty"`                 // All events in recorded order
	ParentFamilies []string   `json:"parent_families,omitempty" yaml:"parent_families,omitempty"` // Families where this person is a child, main first
	Families       []string   `json:"families,omitempty" yaml:"families,omitempty"`               // Families where this person is a parent/spouse
}

// DisplayName returns the name or the handle when no name is recorded
func (p *Person) DisplayName() string {
	if p == nil {
		return ""
	}
	if s := p.Name.String(); s != "" {
		return s
	}
	return p.Handle
}

// MainParentFamily returns the first recorded parent family handle, or ""
func (p *Person) MainParentFamily() string {
	if len(p.ParentFamilies) == 0 {
		return ""
	}
	return p.ParentFamilies[0]
}

// PrimaryEvents returns event refs in which the person holds the primary role
func (p *Person) PrimaryEvents() []EventRef {
	var out []EventRef
	for _, ref := range p.Events {
		if ref.Role.IsPrimary() {
			out = append(out, ref)
		}
	}
	return out
}

// Family links two parents and their children
type Family struct {
	Handle   string     `json:"handle" yaml:"handle"`
	Father   string     `json:"father,omitempty" yaml:"father,omitempty"`
	Mother   string     `json:"mother,omitempty" yaml:"mother,omitempty"`
	Children []string   `json:"children,omitempty" yaml:"children,omitempty"`
	Events   []EventRef `json:"events,omitempty" yaml:"events,omitempty"`
}

// Spouse returns the other parent's handle for the given parent, or ""
// when handle is not a parent or the other parent is unrecorded
func (f *Family) Spouse(handle string) string {
	switch handle {
	case f.Father:
		if f.Mother == handle {
			return ""
		}
		return f.Mother
	case f.Mother:
		return f.Father
	default:
		return ""
	}
}

// Event is a dated occurrence
type Event struct {
	Handle      string    `json:"handle" yaml:"handle"`
	Type        EventType `json:"type" yaml:"type"`
	Date        date.Date `json:"date" yaml:"date"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// IsNotFound reports whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NotFound builds a not-found error for the given record kind and handle
func NotFound(kind, handle string) error {
	return errors.Wrapf(ErrNotFound, "%s %q", kind, handle)
}
