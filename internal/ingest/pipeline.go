package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/facefind/internal/config"
	"github.com/kozaktomas/facefind/internal/embedding"
	"github.com/kozaktomas/facefind/internal/imaging"
	"github.com/kozaktomas/facefind/internal/store"
)

// Pipeline turns a raw file path into zero or more face embedding records.
// Every per-file failure is logged and contained: one bad photo never stops
// the pipeline or touches another file's processing.
type Pipeline struct {
	cfg      config.IngestConfig
	emb      config.EmbeddingConfig
	filter   *Filter
	provider embedding.Provider
	store    store.Store
	ctrl     *Controller
}

// NewPipeline wires the pipeline. The controller is shared with whoever feeds
// the pipeline events (watcher, bulk ingest).
func NewPipeline(cfg config.IngestConfig, emb config.EmbeddingConfig, formats config.FormatsConfig, provider embedding.Provider, st store.Store, ctrl *Controller) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		emb:      emb,
		filter:   NewFilter(formats),
		provider: provider,
		store:    st,
		ctrl:     ctrl,
	}
}

// Enqueue admits a filesystem event and processes the file on its own
// goroutine. Duplicate events for an in-flight path are dropped. The call
// returns immediately; extraction never blocks the event dispatch loop.
func (p *Pipeline) Enqueue(ctx context.Context, path string) {
	if !p.ctrl.Admit(path) {
		log.Printf("[DROPPED] %s already in flight", filepath.Base(path))
		return
	}
	go func() {
		defer p.ctrl.Release(path)
		p.ctrl.AcquireSlot()
		defer p.ctrl.ReleaseSlot()

		if _, err := p.ProcessFile(ctx, path); err != nil {
			log.Printf("[ERROR] could not process %s: %v", filepath.Base(path), err)
		}
	}()
}

// ProcessFile runs the full pipeline for one path synchronously and returns
// the number of faces committed. Skips (filtered files, no faces) return
// (0, nil). Callers that bypass Enqueue must handle admission themselves.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (int, error) {
	name := filepath.Base(path)

	if decision := p.filter.Check(path); decision != Accepted {
		log.Printf("[SKIPPED] %s: %s", name, decision)
		return 0, nil
	}

	// Give the producing process (a slow copy, a photographer's transfer
	// tool) time to finish writing before we read.
	p.settle(ctx, path)

	finalPath := path
	photoRef := name
	if p.cfg.Mode == config.IngestModeMove {
		moved, err := p.moveToServed(path)
		if err != nil {
			return 0, fmt.Errorf("moving into served directory: %w", err)
		}
		finalPath = moved
		photoRef = filepath.Base(moved)
	}
	log.Printf("[PROCESSING] new photo detected: %s", photoRef)

	data, err := os.ReadFile(finalPath)
	if err != nil {
		return 0, fmt.Errorf("reading photo: %w", err)
	}

	payload := data
	if !p.emb.SendRaw {
		payload, err = imaging.Normalize(data, p.emb.MaxImageEdge)
		if err != nil {
			return 0, fmt.Errorf("normalizing photo: %w", err)
		}
	}

	vectors, err := p.provider.Extract(ctx, payload)
	if err != nil {
		if errors.Is(err, embedding.ErrNoFaceDetected) {
			log.Printf("[SKIPPED] no faces found in %s", photoRef)
			return 0, nil
		}
		return 0, fmt.Errorf("extracting embeddings: %w", err)
	}
	if len(vectors) == 0 {
		log.Printf("[SKIPPED] no faces found in %s", photoRef)
		return 0, nil
	}

	// Commit one record at a time. A crash after the second of three
	// faces leaves two durable records, which is fine: the store is
	// append-only and search treats each face independently.
	committed := 0
	for _, vec := range vectors {
		rec := store.Record{
			ID:        uuid.New().String(),
			PhotoRef:  photoRef,
			Embedding: vec,
			Model:     p.provider.Name(),
			Dim:       len(vec),
			CreatedAt: time.Now().UTC(),
		}
		err := p.ctrl.Commit(func() error {
			return p.store.Append(ctx, rec)
		})
		if err != nil {
			return committed, fmt.Errorf("committing face %d of %d: %w", committed+1, len(vectors), err)
		}
		committed++
	}

	log.Printf("[SUCCESS] found %d faces in %s", committed, photoRef)
	return committed, nil
}

// settle waits the configured grace period, then probes the file size until
// it stops changing. Large transfers can outlive the probe rounds; in that
// case we proceed anyway and let decode errors surface per-file.
func (p *Pipeline) settle(ctx context.Context, path string) {
	if p.cfg.SettleDelay > 0 {
		select {
		case <-time.After(p.cfg.SettleDelay):
		case <-ctx.Done():
			return
		}
	}
	if p.cfg.SettleProbeInterval <= 0 || p.cfg.SettleProbeRounds <= 0 {
		return
	}

	prev := int64(-1)
	for i := 0; i < p.cfg.SettleProbeRounds; i++ {
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.Size() == prev && prev > 0 {
			return
		}
		prev = info.Size()
		select {
		case <-time.After(p.cfg.SettleProbeInterval):
		case <-ctx.Done():
			return
		}
	}
	log.Printf("[WARN] %s still growing after %d probes, reading anyway", filepath.Base(path), p.cfg.SettleProbeRounds)
}

// moveToServed relocates a watched file into the served photos directory
// under a sanitized name, returning the destination path.
func (p *Pipeline) moveToServed(path string) (string, error) {
	if err := os.MkdirAll(p.cfg.PhotosDir, 0o755); err != nil {
		return "", fmt.Errorf("creating photos directory: %w", err)
	}

	name := SanitizeFilename(filepath.Base(path))
	dest := filepath.Join(p.cfg.PhotosDir, name)
	if _, err := os.Stat(dest); err == nil {
		// Same filename from two cameras; keep both.
		dest = filepath.Join(p.cfg.PhotosDir, uuid.New().String()[:8]+"-"+name)
	}

	if err := moveFile(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// moveFile renames src to dest, falling back to copy+remove when the watch
// and served directories sit on different filesystems.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("copying file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing destination: %w", err)
	}
	return os.Remove(src)
}
