// Package report turns batch verdicts into JSON, Markdown and terminal output.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/estimate"
	"github.com/ppiankov/lifespan/internal/worker"
)

// Report is the outcome of one scan over a record source
type Report struct {
	RunID       string    `json:"run_id"`       // Unique per scan
	GeneratedAt time.Time `json:"generated_at"` // When the scan finished
	Source      string    `json:"source"`       // Store the records came from
	Reference   string    `json:"reference"`    // Date aliveness was judged against, empty for today
	GraceYears  int       `json:"grace_years,omitempty"`

	Summary Summary `json:"summary"`
	Entries []Entry `json:"entries"`
}

// Summary counts the verdicts of a report
type Summary struct {
	Total   int            `json:"total"`
	Alive   int            `json:"alive"`
	Dead    int            `json:"dead"`
	Errors  int            `json:"errors"`
	Cycles  int            `json:"cycles"`            // Errors caused by malformed ancestry
	ByPhase map[string]int `json:"by_phase,omitempty"` // Successful verdicts per deciding phase
}

// Entry is one person's verdict
type Entry struct {
	Handle      string `json:"handle"`
	Name        string `json:"name,omitempty"`
	Alive       bool   `json:"alive"`
	Birth       string `json:"birth,omitempty"`
	Death       string `json:"death,omitempty"`
	Phase       string `json:"phase,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	Relative    string `json:"relative,omitempty"` // Handle of the relative whose records decided
	Error       string `json:"error,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
}

// Meta describes the scan that produced a set of results
type Meta struct {
	Source     string
	Reference  date.Date
	GraceYears int
}

// Build assembles a report from batch results, keeping their order
func Build(results []*worker.VerdictResult, meta Meta, now time.Time) *Report {
	r := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: now.UTC(),
		Source:      meta.Source,
		Reference:   meta.Reference.String(),
		GraceYears:  meta.GraceYears,
		Summary:     Summary{ByPhase: make(map[string]int)},
		Entries:     make([]Entry, 0, len(results)),
	}

	for _, res := range results {
		if res == nil {
			continue
		}
		e := Entry{
			Handle:     res.Handle,
			Name:       res.Name,
			DurationMS: res.Duration.Milliseconds(),
		}
		r.Summary.Total++

		if res.Error != nil {
			e.Error = res.Error.Error()
			r.Summary.Errors++
			if estimate.IsCycle(res.Error) {
				r.Summary.Cycles++
			}
			r.Entries = append(r.Entries, e)
			continue
		}

		v := res.Verdict
		e.Alive = v.Alive
		e.Birth = v.Birth.String()
		e.Death = v.Death.String()
		e.Phase = v.Phase.String()
		e.Explanation = v.Explanation
		if v.Relative != nil {
			e.Relative = v.Relative.Handle
		}
		if v.Alive {
			r.Summary.Alive++
		} else {
			r.Summary.Dead++
		}
		r.Summary.ByPhase[e.Phase]++
		r.Entries = append(r.Entries, e)
	}
	return r
}

// Phases returns the phase names of the summary in a stable order
func (s Summary) Phases() []string {
	names := make([]string, 0, len(s.ByPhase))
	for name := range s.ByPhase {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
