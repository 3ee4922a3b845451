package estimate

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrGraphCycle matches every *CycleError
var ErrGraphCycle = errors.New("graph cycle")

// CycleError reports a person reached again while still on the current
// traversal path (a person recorded as their own ancestor), or a walk that
// exceeded the configured depth.
//
// Reaching a person whose subtree the same walk already finished is not a
// cycle: pedigree collapse (cousin marriage, a double first cousin) joins
// branches legitimately, and the walk reuses that person's result instead.
// Only a revisit while the person is still being explored is reported.
type CycleError struct {
	Handle     string   // Person revisited
	Name       string   // Display name of that person
	Phase      Phase    // Phase whose walk detected the cycle
	Path       []string // Handles from the walk root to the revisit
	DepthLimit bool     // True when the depth guard fired instead
}

func (e *CycleError) Error() string {
	what := "loop"
	if e.DepthLimit {
		what = "depth limit exceeded"
	}
	msg := fmt.Sprintf("graph cycle in %s: %s at %s", e.Phase, what, e.Name)
	if len(e.Path) > 0 {
		msg += " (" + strings.Join(e.Path, " -> ") + ")"
	}
	return msg
}

// Is makes errors.Is(err, ErrGraphCycle) true
func (e *CycleError) Is(target error) bool {
	return target == ErrGraphCycle
}

// IsCycle reports whether err is, or wraps, a graph cycle
func IsCycle(err error) bool {
	return errors.Is(err, ErrGraphCycle)
}
