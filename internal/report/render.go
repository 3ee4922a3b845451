package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/lifespan/internal/estimate"
)

// Renderer writes reports to files and a terminal
type Renderer struct {
	includeFooter bool
	out           io.Writer
}

// NewRenderer creates a renderer printing summaries to stdout
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter, out: os.Stdout}
}

// SetOutput redirects terminal summaries
func (r *Renderer) SetOutput(w io.Writer) {
	r.out = w
}

// RenderJSON writes the report as indented JSON to path
func (r *Renderer) RenderJSON(rep *Report, path string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal report")
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// RenderMarkdown writes the report as a Markdown document to path
func (r *Renderer) RenderMarkdown(rep *Report, path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown(rep)), 0644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// Markdown renders the report body
func (r *Renderer) Markdown(rep *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Lifespan report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", rep.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- Source: `%s`\n", rep.Source)
	ref := rep.Reference
	if ref == "" {
		ref = "today"
	}
	fmt.Fprintf(&b, "- Reference date: %s\n", ref)
	if rep.GraceYears != 0 {
		fmt.Fprintf(&b, "- Grace years: %d\n", rep.GraceYears)
	}

	s := rep.Summary
	fmt.Fprintf(&b, "\n## Summary\n\n")
	fmt.Fprintf(&b, "| Total | Probably alive | Dead | Errors | Cycles |\n")
	fmt.Fprintf(&b, "|---:|---:|---:|---:|---:|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n", s.Total, s.Alive, s.Dead, s.Errors, s.Cycles)

	if phases := s.Phases(); len(phases) > 0 {
		fmt.Fprintf(&b, "\n| Phase | Verdicts |\n|---|---:|\n")
		for _, name := range phases {
			fmt.Fprintf(&b, "| %s | %d |\n", name, s.ByPhase[name])
		}
	}

	fmt.Fprintf(&b, "\n## People\n\n")
	fmt.Fprintf(&b, "| Handle | Name | Alive | Birth | Death | Phase | Explanation |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|---|\n")
	for _, e := range rep.Entries {
		if e.Error != "" {
			fmt.Fprintf(&b, "| %s | %s | error | | | | %s |\n",
				mdEscape(e.Handle), mdEscape(e.Name), mdEscape(e.Error))
			continue
		}
		alive := "no"
		if e.Alive {
			alive = "yes"
		}
		explanation := e.Explanation
		if e.Relative != "" {
			explanation += " (via " + e.Relative + ")"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			mdEscape(e.Handle), mdEscape(e.Name), alive,
			orDash(e.Birth), orDash(e.Death), e.Phase, mdEscape(explanation))
	}

	if r.includeFooter {
		fmt.Fprintf(&b, "\n---\n\n")
		fmt.Fprintf(&b, "_Estimates are heuristic. \"Probably alive\" means the records cannot rule it out; treat such people as living._\n")
	}
	return b.String()
}

// RenderSummary prints a short overview to the terminal
func (r *Renderer) RenderSummary(rep *Report) {
	s := rep.Summary
	fmt.Fprintf(r.out, "\n")
	fmt.Fprintf(r.out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(r.out, "  Scan Complete\n")
	fmt.Fprintf(r.out, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(r.out, "\n")
	fmt.Fprintf(r.out, "  Run:       %s\n", rep.RunID)
	fmt.Fprintf(r.out, "  Total:     %d people\n", s.Total)
	fmt.Fprintf(r.out, "  Alive:     %d\n", s.Alive)
	fmt.Fprintf(r.out, "  Dead:      %d\n", s.Dead)
	fmt.Fprintf(r.out, "  Errors:    %d", s.Errors)
	if s.Cycles > 0 {
		fmt.Fprintf(r.out, " (%d ancestry cycles)", s.Cycles)
	}
	fmt.Fprintf(r.out, "\n")
	for _, name := range s.Phases() {
		fmt.Fprintf(r.out, "    %-18s %d\n", name+":", s.ByPhase[name])
	}
	fmt.Fprintf(r.out, "\n")
}

// RenderVerdict prints one decision
func (r *Renderer) RenderVerdict(handle, name string, v estimate.Verdict) {
	status := "✗ probably dead"
	if v.Alive {
		status = "✓ probably alive"
	}
	fmt.Fprintf(r.out, "%s (%s): %s\n", name, handle, status)
	fmt.Fprintf(r.out, "  Birth:  %s\n", orDash(v.Birth.String()))
	fmt.Fprintf(r.out, "  Death:  %s\n", orDash(v.Death.String()))
	fmt.Fprintf(r.out, "  Phase:  %s\n", v.Phase)
	fmt.Fprintf(r.out, "  Why:    %s\n", v.Explanation)
	if v.Relative != nil {
		fmt.Fprintf(r.out, "  Via:    %s (%s)\n", v.Relative.DisplayName(), v.Relative.Handle)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
