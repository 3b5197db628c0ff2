// cmd/matchctl/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pathfinder-workers/internal/common/database"
	"pathfinder-workers/internal/common/logger"
	"pathfinder-workers/internal/embedding"
	"pathfinder-workers/internal/reference"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	dataPath   string
	sqlitePath string
	dimension  int
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "matchctl",
		Short:         "Inspect and exercise the matching engine against local reference data",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.dataPath, "data", "data/reference.yaml", "reference data YAML file")
	flags.StringVar(&opts.sqlitePath, "sqlite", "", "reference SQLite database; takes precedence over --data")
	flags.IntVar(&opts.dimension, "dimension", 384, "hash embedding dimension")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newScoreCmd(opts),
		newTriageCmd(opts),
		newSearchCmd(opts),
		newOccupationCmd(opts),
		newImportCmd(opts),
		newRegistryCmd(),
	)
	return root
}

func (o *options) logger() logger.Logger {
	return logger.NewStructured(o.logLevel, "console")
}

func (o *options) embedder() embedding.Embedder {
	return embedding.NewHashEmbedder(o.dimension)
}

// loadStore opens the configured source and loads one snapshot. Chunks stored without a
// vector are embedded with the hash embedder.
func (o *options) loadStore(ctx context.Context, log logger.Logger) (*reference.Store, func(), error) {
	closer := func() {}

	var loader reference.Loader
	if o.sqlitePath != "" {
		lite, err := database.NewSQLite(sqliteConfig(o.sqlitePath))
		if err != nil {
			return nil, closer, err
		}
		closer = func() { lite.Close() }
		loader = reference.NewSQLLoader(lite.DB, "sqlite", true)
	} else {
		loader = reference.NewFileLoader(o.dataPath)
	}

	store := reference.NewStore(loader, log, reference.WithEmbeddingBackfill(o.embedder()))
	if _, err := store.Reload(ctx); err != nil {
		closer()
		return nil, func() {}, err
	}
	return store, closer, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
