package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/store"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <tree-file> <target>",
	Short: "Load a tree file into SQLite or a graph database",
	Long: `Import reads a YAML or JSON tree file and writes every person, family and
event into a database source. Records with the same handle are replaced.

Example:
  lifespan import tree.yaml tree.db
  lifespan import tree.yaml bolt://localhost:7687`,
	Args: cobra.ExactArgs(2),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	from, target := args[0], args[1]

	kind, _, err := store.Classify(target)
	if err != nil {
		return err
	}
	if kind == store.KindFile {
		return errors.WithHint(errors.Newf("cannot import into tree file %s", target),
			"import into a SQLite database (*.db) or a bolt:// URI")
	}

	m, err := store.LoadFile(from)
	if err != nil {
		return err
	}
	persons, families, events := m.Len()
	if verbose {
		fmt.Fprintf(os.Stderr, "Loaded %s: %d persons, %d families, %d events\n", from, persons, families, events)
	}

	ctx := context.Background()
	v := viper.GetViper()
	backend, err := store.Open(ctx, target, store.Options{
		Neo4jUser:     v.GetString("store.neo4j.user"),
		Neo4jPassword: v.GetString("store.neo4j.password"),
		Log:           logger.Logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	imp, ok := backend.(store.Importer)
	if !ok {
		return errors.Newf("source %s does not support import", target)
	}
	if err := imp.Import(ctx, m.Tree()); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✓ Imported %d persons, %d families, %d events into %s\n", persons, families, events, target)
	return nil
}
