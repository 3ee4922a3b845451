package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/estimate"
	"github.com/ppiankov/lifespan/internal/record"
	"github.com/ppiankov/lifespan/internal/report"
)

var (
	asJSON     bool
	onDate     string
	graceYears int
)

// estimateCmd represents the estimate command
var estimateCmd = &cobra.Command{
	Use:   "estimate <handle>",
	Short: "Estimate one person's birth and death range",
	Long: `Estimate searches the person's own records, then parents and siblings,
spouses, descendants and ancestors, and prints the first range it can defend
together with the phase and relative that produced it.

Example:
  lifespan estimate I0042 --source tree.yaml
  lifespan estimate I0042 --source bolt://localhost:7687 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runEstimate,
}

// aliveCmd represents the alive command
var aliveCmd = &cobra.Command{
	Use:   "alive <handle>",
	Short: "Decide whether one person was probably alive on a date",
	Long: `Alive estimates the person's range and tests the date against it. The
range includes the birth date and excludes the death date. People without
any usable evidence are reported alive.

Example:
  lifespan alive I0042 --source tree.yaml
  lifespan alive I0042 --date 1950-06-01 --grace 5`,
	Args: cobra.ExactArgs(1),
	RunE: runAlive,
}

func init() {
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(aliveCmd)

	estimateCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	aliveCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	aliveCmd.Flags().StringVar(&onDate, "date", "", "reference date, e.g. 1950, 1950-06-01, 'abt 1950' (default today)")
	aliveCmd.Flags().IntVar(&graceYears, "grace", 0, "years added to the estimated death before comparing")
}

type rangeOutput struct {
	Handle      string `json:"handle"`
	Name        string `json:"name"`
	Birth       string `json:"birth,omitempty"`
	Death       string `json:"death,omitempty"`
	Phase       string `json:"phase"`
	Explanation string `json:"explanation"`
	Relative    string `json:"relative,omitempty"`
	Alive       *bool  `json:"alive,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

func runEstimate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	p, r, err := s.decider.Estimator().EstimateHandle(ctx, args[0])
	if err != nil {
		return err
	}

	out := newRangeOutput(p, r.Birth, r.Death, r.Phase, r.Explanation, r.Relative)
	if asJSON {
		return printJSON(out)
	}

	fmt.Printf("%s (%s)\n", out.Name, out.Handle)
	fmt.Printf("  Birth:  %s\n", orDash(out.Birth))
	fmt.Printf("  Death:  %s\n", orDash(out.Death))
	fmt.Printf("  Phase:  %s\n", out.Phase)
	fmt.Printf("  Why:    %s\n", out.Explanation)
	if r.Relative != nil {
		fmt.Printf("  Via:    %s (%s)\n", r.Relative.DisplayName(), r.Relative.Handle)
	}
	return nil
}

func runAlive(cmd *cobra.Command, args []string) error {
	ref, err := parseReference(onDate)
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if !ref.IsValid() {
		ref = date.Today(s.decider.Estimator().Config().Clock)
	}
	p, v, err := s.decider.DecideHandle(ctx, args[0], ref, estimate.WithGraceYears(graceYears))
	if err != nil {
		return err
	}

	if asJSON {
		out := newRangeOutput(p, v.Birth, v.Death, v.Phase, v.Explanation, v.Relative)
		out.Alive = &v.Alive
		out.Reference = ref.String()
		return printJSON(out)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Reference date: %s\n", ref)
	}
	report.NewRenderer(false).RenderVerdict(p.Handle, p.DisplayName(), v)
	return nil
}

// parseReference parses a --date value; empty means today
func parseReference(s string) (date.Date, error) {
	ref, err := date.Parse(s)
	if err != nil {
		return date.Date{}, errors.WithHint(errors.Wrapf(err, "invalid --date %q", s),
			"use forms like 1950, 1950-06, 1950-06-01, 'abt 1950' or 'bet 1950 and 1960'")
	}
	return ref, nil
}

func newRangeOutput(p *record.Person, birth, death date.Date, phase estimate.Phase, why string, rel *record.Person) rangeOutput {
	out := rangeOutput{
		Handle:      p.Handle,
		Name:        p.DisplayName(),
		Birth:       birth.String(),
		Death:       death.String(),
		Phase:       phase.String(),
		Explanation: why,
	}
	if rel != nil {
		out.Relative = rel.Handle
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
