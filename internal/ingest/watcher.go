package ingest

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/fsnotify/fsnotify"
)

// Watcher subscribes to creation events on the watch directory
// (non-recursive) and feeds admitted paths into the pipeline.
type Watcher struct {
	fs       *fsnotify.Watcher
	pipeline *Pipeline
	dir      string
	doneCh   chan struct{}
}

// NewWatcher creates a watcher for dir. The directory is created if missing.
func NewWatcher(dir string, pipeline *Pipeline) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating watch directory: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fs:       fsWatcher,
		pipeline: pipeline,
		dir:      dir,
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins dispatching events. Processing happens off the dispatch
// goroutine, so a slow extraction never delays the next event.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fs.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	log.Printf("[WATCH] monitoring %s for new photos", w.dir)

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			// Directory events are ignored; the watch is non-recursive.
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			w.pipeline.Enqueue(ctx, event.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Printf("[WATCH] error: %v", err)
		}
	}
}

// Stop closes the underlying watcher and waits for the dispatch loop.
func (w *Watcher) Stop() error {
	err := w.fs.Close()
	<-w.doneCh
	return err
}
