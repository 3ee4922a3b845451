package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/lifespan/internal/config"
	"github.com/ppiankov/lifespan/internal/estimate"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/store"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "dev"

var (
	cfgFile string
	source  string
	verbose bool
	jsonLog bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "lifespan",
	Short: "Lifespan - estimate whether people in a family tree are probably alive",
	Long: `Lifespan estimates a plausible birth and death range for every person in a
genealogical record graph, and decides whether they were probably alive on a
given date, even when their own birth and death records are missing.

Missing evidence is filled in from parents, siblings, spouses, descendants
and ancestors. When nothing can be inferred a person is presumed alive, so
privacy filters built on lifespan err on the side of hiding people.

Sources:
  tree.yaml / tree.json        in-memory record tree
  tree.db / sqlite:path        SQLite database (see 'lifespan import')
  bolt://host:7687             Neo4j or Memgraph`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Initialize(jsonLog, verbose)
	},
}

// Execute runs the root command
func Execute() error {
	defer logger.Sync()
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lifespan %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.lifespan/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&source, "source", "s", "", "record source: tree file, SQLite database or bolt:// URI")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "log as JSON")

	// Bind flags to viper
	_ = viper.BindPFlag("store.source", rootCmd.PersistentFlags().Lookup("source"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		v.AddConfigPath(filepath.Join(home, ".lifespan"))
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", v.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
	}
}

// session is what most commands need: the config, an open source and a
// decider reading from it
type session struct {
	cfg     *config.Config
	backend store.Backend
	decider *estimate.Decider
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if cfg.Store.Source == "" {
		return nil, errors.WithHint(errors.New("no record source"),
			"pass --source, set store.source in the config file, or export LIFESPAN_STORE_SOURCE")
	}

	opts := cfg.StoreOptions()
	opts.Log = logger.Logger
	backend, err := store.Open(ctx, cfg.Store.Source, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.Store.Source)
	}

	est := estimate.New(backend, cfg.Estimate.Estimator(), logger.Logger)
	return &session{cfg: cfg, backend: backend, decider: estimate.NewDecider(est)}, nil
}

func (s *session) Close() {
	if err := s.backend.Close(); err != nil {
		logger.Logger.Warnw("Closing source failed", logger.FieldError, err)
	}
}
