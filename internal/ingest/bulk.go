package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// BulkResult summarizes a backfill run.
type BulkResult struct {
	Files   int // candidate files seen
	Faces   int // embeddings committed
	Skipped int // filtered out or no faces
	Errors  int // per-file failures
}

// Backfill pushes every file already sitting in dir through the pipeline,
// with a progress bar. Used to index an existing photo dump before the
// watcher takes over. Files are processed with the controller's usual
// admission and concurrency rules.
func (p *Pipeline) Backfill(ctx context.Context, dir string) (BulkResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return BulkResult{}, fmt.Errorf("reading %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription(fmt.Sprintf("Embedding photos (%d workers)", cap(p.ctrl.slots))),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	var result BulkResult
	result.Files = len(paths)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, path := range paths {
		if !p.ctrl.Admit(path) {
			continue
		}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer p.ctrl.Release(path)
			p.ctrl.AcquireSlot()
			defer p.ctrl.ReleaseSlot()

			faces, err := p.ProcessFile(ctx, path)

			mu.Lock()
			switch {
			case err != nil:
				result.Errors++
				log.Printf("[ERROR] could not process %s: %v", filepath.Base(path), err)
			case faces == 0:
				result.Skipped++
			default:
				result.Faces += faces
			}
			mu.Unlock()
			bar.Add(1)
		}(path)
	}
	wg.Wait()

	return result, nil
}
