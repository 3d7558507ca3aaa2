package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facefind/internal/config"
	"github.com/kozaktomas/facefind/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <directory>",
	Short: "Index every photo in a directory",
	Long: `Index all photos already sitting in a directory.
Useful for bulk-loading an existing photo dump before starting the watcher,
or for re-indexing after switching embedding models.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().Int("concurrency", 0, "Parallel workers (defaults to INGEST_CONCURRENCY)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	dir := args[0]

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if n := mustGetInt(cmd, "concurrency"); n > 0 {
		cfg.Ingest.Concurrency = n
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Ingest.Mode == config.IngestModeMove {
		if err := os.MkdirAll(cfg.Ingest.PhotosDir, 0o755); err != nil {
			return fmt.Errorf("creating photos directory: %w", err)
		}
	}

	provider := newProvider(cfg)
	ctrl := ingest.NewController(cfg.Ingest.Concurrency)
	pipeline := ingest.NewPipeline(cfg.Ingest, cfg.Embedding, cfg.Formats, provider, st, ctrl)

	result, err := pipeline.Backfill(context.Background(), dir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	fmt.Printf("\nDone: %d files, %d faces indexed, %d skipped, %d errors\n",
		result.Files, result.Faces, result.Skipped, result.Errors)
	return nil
}
