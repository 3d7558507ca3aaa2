package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facefind/internal/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print index statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.Snapshot(context.Background())
	if err != nil {
		return fmt.Errorf("reading store: %w", err)
	}

	photos := make(map[string]struct{})
	for _, rec := range snap {
		photos[rec.PhotoRef] = struct{}{}
	}

	fmt.Printf("Backend: %s\n", cfg.Store.Backend)
	fmt.Printf("Faces:   %d\n", len(snap))
	fmt.Printf("Photos:  %d\n", len(photos))
	return nil
}
