package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/lifespan/internal/estimate"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/report"
	"github.com/ppiankov/lifespan/internal/worker"
)

var (
	outJSON     string
	outMD       string
	concurrency int
	scanTimeout time.Duration
	noFooter    bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [handles-file]",
	Short: "Decide aliveness for many people in parallel",
	Long: `Scan decides every person in the source, or only the handles listed in a
file (one per line, # starts a comment), with a pool of workers:
- Each person gets the full estimate search
- Database sources can be throttled with concurrency.requests_per_second
- A JSON report is written, plus an optional Markdown report

Example:
  lifespan scan --source tree.yaml
  lifespan scan handles.txt --source tree.db --concurrency 8 --md report.md
  lifespan scan --source bolt://localhost:7687 --date 1940 --timeout 30m`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	// Output flags
	scanCmd.Flags().StringVar(&outJSON, "json", "lifespan-report.json", "output JSON path (empty to skip)")
	scanCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	scanCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	// Concurrency flags
	scanCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default concurrency.workers)")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 10*time.Minute, "total timeout for the scan")

	// Decision flags
	scanCmd.Flags().StringVar(&onDate, "date", "", "reference date (default today)")
	scanCmd.Flags().IntVar(&graceYears, "grace", 0, "years added to each estimated death before comparing")
}

func runScan(cmd *cobra.Command, args []string) error {
	ref, err := parseReference(onDate)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	workers := concurrency
	if workers <= 0 {
		workers = s.cfg.Concurrency.Workers
	}

	var handles []string
	if len(args) == 1 {
		if handles, err = worker.ReadHandlesFromFile(args[0]); err != nil {
			return errors.Wrapf(err, "read %s", args[0])
		}
	} else if handles, err = s.backend.PersonHandles(ctx); err != nil {
		return errors.Wrap(err, "list persons")
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Lifespan Scan\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Source:       %s\n", s.cfg.Store.Source)
	fmt.Fprintf(os.Stderr, "  People:       %d\n", len(handles))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", scanTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(s.decider, workers,
		s.cfg.Concurrency.RequestsPerSecond, s.cfg.Concurrency.Burst)
	processor.Source = s.cfg.Store.Source
	processor.Ref = ref
	processor.Timeout = s.cfg.Concurrency.Timeout
	if graceYears != 0 {
		processor.Options = []estimate.Option{estimate.WithGraceYears(graceYears)}
	}

	start := time.Now()
	results := processor.ProcessHandles(ctx, handles)

	if verbose {
		for _, r := range results {
			if r.Error != nil {
				fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Handle, r.Error)
			}
		}
	}

	rep := report.Build(results, report.Meta{
		Source:     s.cfg.Store.Source,
		Reference:  ref,
		GraceYears: graceYears,
	}, time.Now())
	logger.Logger.Infow("Scan finished",
		logger.FieldRunID, rep.RunID,
		logger.FieldCount, rep.Summary.Total,
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	renderer := report.NewRenderer(!noFooter)
	if outJSON != "" {
		if err := renderer.RenderJSON(rep, outJSON); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(rep, outMD); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", outMD)
	}
	renderer.RenderSummary(rep)

	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "scan interrupted")
	}
	return nil
}
