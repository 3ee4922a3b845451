package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/lifespan/internal/config"
)

var (
	showTOML  bool
	forceInit bool
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage lifespan configuration",
	Long: `Manage lifespan configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (LIFESPAN_*, e.g. LIFESPAN_ESTIMATE_MAX_PLAUSIBLE_AGE_YEARS)
3. Config file (~/.lifespan/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, config file, env vars and flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		shown := cfg.Redacted()
		render := shown.YAML
		if showTOML {
			render = shown.TOML
		}
		data, err := render()
		if err != nil {
			return err
		}

		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("  Current Configuration")
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()
		fmt.Println(string(data))
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()
		fmt.Println("Configuration hierarchy (highest to lowest priority):")
		fmt.Println("  1. CLI flags")
		fmt.Println("  2. Environment variables (LIFESPAN_*, NEO4J_PASSWORD)")
		fmt.Println("  3. Config file (~/.lifespan/config.yaml)")
		fmt.Println("  4. Defaults")
		fmt.Println()
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.lifespan/config.yaml with every option set to its default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "find home directory")
		}
		configPath := filepath.Join(home, ".lifespan", "config.yaml")
		if cfgFile != "" {
			configPath = cfgFile
		}
		return writeDefaultConfig(configPath, forceInit)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configShowCmd.Flags().BoolVar(&showTOML, "toml", false, "print as TOML")
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

func writeDefaultConfig(configPath string, force bool) (err error) {
	if _, statErr := os.Stat(configPath); statErr == nil && !force {
		return errors.WithHint(errors.Newf("config file already exists: %s", configPath),
			"use 'lifespan config show' to view it, or pass --force to overwrite")
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return errors.Wrap(err, "create config directory")
	}

	data, err := config.DefaultConfig().YAML()
	if err != nil {
		return err
	}

	f, err := os.Create(configPath)
	if err != nil {
		return errors.Wrap(err, "create config file")
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "close config file")
		}
	}()

	// Helper for writing with error checking
	printf := func(format string, a ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(f, format, a...)
	}

	printf("# lifespan configuration\n")
	printf("#\n")
	printf("# Configuration hierarchy (highest to lowest priority):\n")
	printf("#   1. CLI flags\n")
	printf("#   2. Environment variables (LIFESPAN_*)\n")
	printf("#   3. This config file\n")
	printf("#   4. Built-in defaults\n\n")
	printf("%s", data)
	printf("\n# Graph database password (recommended to use the environment instead):\n")
	printf("#   export NEO4J_PASSWORD=...\n")
	if err != nil {
		return errors.Wrap(err, "write config")
	}

	fmt.Printf("✓ Created default configuration: %s\n", configPath)
	fmt.Printf("\nTo view the configuration:\n")
	fmt.Printf("  lifespan config show\n")
	fmt.Printf("\n")
	return nil
}
