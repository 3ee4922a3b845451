package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/lifespan/internal/estimate"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/privacy"
	"github.com/ppiankov/lifespan/internal/store"
)

var (
	redactOut  string
	redactMode string
)

// redactCmd represents the redact command
var redactCmd = &cobra.Command{
	Use:   "redact",
	Short: "Export the tree with probably-living people hidden",
	Long: `Redact writes a copy of the source as a YAML tree file in which every
person who is probably alive is hidden:
- restrict: the person stays, with given name "Living" and no events
- exclude:  the person and every reference to them are removed

People whose records form a cycle are treated as living.

Example:
  lifespan redact --source tree.db --out public.yaml
  lifespan redact --source tree.yaml --out public.yaml --mode exclude --date 2000`,
	Args: cobra.NoArgs,
	RunE: runRedact,
}

func init() {
	rootCmd.AddCommand(redactCmd)

	redactCmd.Flags().StringVarP(&redactOut, "out", "o", "", "output tree file (required)")
	redactCmd.Flags().StringVar(&redactMode, "mode", string(privacy.ModeRestrict), "restrict or exclude")
	redactCmd.Flags().StringVar(&onDate, "date", "", "reference date (default today)")
	redactCmd.Flags().IntVar(&graceYears, "grace", 0, "years added to each estimated death before comparing")
	_ = redactCmd.MarkFlagRequired("out")
}

func runRedact(cmd *cobra.Command, args []string) error {
	mode, err := privacy.ParseMode(redactMode)
	if err != nil {
		return err
	}
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

	proxy := privacy.NewProxy(s.backend, s.decider, mode, ref, logger.Logger,
		estimate.WithGraceYears(graceYears))
	tree, stats, err := privacy.Export(ctx, proxy)
	if err != nil {
		return errors.Wrap(err, "redact")
	}
	if err := store.WriteFile(redactOut, tree); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✓ Wrote %s (%s mode)\n", redactOut, mode)
	fmt.Fprintf(os.Stderr, "  Persons:   %d (%d living)\n", stats.Persons, stats.Living)
	fmt.Fprintf(os.Stderr, "  Families:  %d\n", stats.Families)
	fmt.Fprintf(os.Stderr, "  Events:    %d\n", stats.Events)
	return nil
}
