package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/facefind/internal/config"
	"github.com/kozaktomas/facefind/internal/embedding"
	"github.com/kozaktomas/facefind/internal/imaging"
	"github.com/kozaktomas/facefind/internal/match"
)

var searchCmd = &cobra.Command{
	Use:   "search <image>",
	Short: "Find indexed photos containing the face in an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Float64("threshold", 0, "Max cosine distance for a match (defaults to SIMILARITY_THRESHOLD)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	provider := newProvider(cfg)
	engine := match.NewEngine(st, cfg.Search.Threshold)
	ctx := context.Background()

	payload := data
	if !cfg.Embedding.SendRaw {
		payload, err = imaging.Normalize(data, cfg.Embedding.MaxImageEdge)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", args[0], err)
		}
	}

	queries, err := provider.Extract(ctx, payload)
	if err != nil {
		if errors.Is(err, embedding.ErrNoFaceDetected) {
			fmt.Println("No face detected in the image")
			return nil
		}
		return fmt.Errorf("extracting faces: %w", err)
	}
	if len(queries) == 0 {
		fmt.Println("No face detected in the image")
		return nil
	}

	matches, err := engine.Search(ctx, queries, mustGetFloat64(cmd, "threshold"))
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(matches) == 0 {
		fmt.Println("No matching photos found")
		return nil
	}
	fmt.Printf("Found %d photo(s):\n", len(matches))
	for _, m := range matches {
		fmt.Printf("  %s\n", m)
	}
	return nil
}
