package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/privacy"
	"github.com/ppiankov/lifespan/internal/server"
)

var serveMode string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve range and aliveness queries over HTTP",
	Long: `Serve starts an HTTP API over the record source:

  GET /api/v1/persons/:handle/range
  GET /api/v1/persons/:handle/alive?date=1950&grace=5
  GET /api/v1/persons/:handle          (privacy filtered)
  GET /healthz

Example:
  lifespan serve --source tree.db --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default server.addr)")
	serveCmd.Flags().StringVar(&serveMode, "mode", string(privacy.ModeRestrict), "privacy mode for person records: restrict or exclude")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	mode, err := privacy.ParseMode(serveMode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	people := privacy.NewProxy(s.backend, s.decider, mode, date.Date{}, logger.Logger)
	srv := server.NewServer(s.decider, people, logger.Logger)

	if verbose {
		fmt.Fprintf(os.Stderr, "Serving %s on %s\n", s.cfg.Store.Source, s.cfg.Server.Addr)
	}
	return srv.Run(ctx, s.cfg.Server.Addr)
}
