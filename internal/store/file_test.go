package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testRecord(photoRef string, vec []float32) Record {
	return Record{
		ID:        uuid.New().String(),
		PhotoRef:  photoRef,
		Embedding: vec,
		Model:     "test-model",
		Dim:       len(vec),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestOpen_MissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "missing.gob"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	count, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty store for missing file, got %d records", count)
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "faces.gob")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	want := []Record{
		testRecord("a.jpg", []float32{1, 0, 0}),
		testRecord("a.jpg", []float32{0, 1, 0}),
		testRecord("b.jpg", []float32{0, 0, 1}),
	}
	for _, rec := range want {
		if err := s.Append(ctx, rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, err := reloaded.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestOpen_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "faces.gob")
	if err := os.WriteFile(path, []byte("this is not a gob payload"), 0o644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open should swallow corruption, got error: %v", err)
	}

	count, _ := s.Count(context.Background())
	if count != 0 {
		t.Errorf("expected empty store after corrupt load, got %d records", count)
	}

	// The unreadable file must be preserved, not silently overwritten.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	quarantined := false
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt-") {
			quarantined = true
		}
	}
	if !quarantined {
		t.Error("expected corrupt store file to be quarantined")
	}
}

func TestOpen_TruncatedFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "faces.gob")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Append(ctx, testRecord("a.jpg", []float32{1, 2, 3})); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading store file: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)/2], 0o644); err != nil {
		t.Fatalf("truncating store file: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("Open on truncated file should not fail, got: %v", err)
	}
	count, _ := reloaded.Count(ctx)
	if count != 0 {
		t.Errorf("expected empty store after truncated load, got %d records", count)
	}
}

func TestAppend_PersistsEveryRecord(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "faces.gob")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// No Close between append and reopen: write-through means the file is
	// already complete after Append returns.
	if err := s.Append(ctx, testRecord("x.jpg", []float32{0.5, 0.5})); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	count, _ := reloaded.Count(ctx)
	if count != 1 {
		t.Errorf("expected 1 record on disk right after Append, got %d", count)
	}
}

func TestAppend_PersistFailurePropagates(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "db")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("creating store dir: %v", err)
	}

	s, err := Open(filepath.Join(dir, "faces.gob"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Append(ctx, testRecord("kept.jpg", []float32{1, 0})); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Yank the directory out from under the store; the next persist cannot
	// succeed and the append must fail loudly.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("removing store dir: %v", err)
	}

	if err := s.Append(ctx, testRecord("lost.jpg", []float32{0, 1})); err == nil {
		t.Fatal("expected Append to fail when the store cannot be persisted")
	}

	// The failed append must not leak into the visible state.
	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(snap) != 1 || snap[0].PhotoRef != "kept.jpg" {
		t.Errorf("expected snapshot to hold only the committed record, got %+v", snap)
	}
}

func TestSnapshot_NotTornByAppend(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "faces.gob"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Serialized appends (as the controller guarantees) racing concurrent
	// snapshot readers. Every snapshot must be a valid prefix of the final
	// record sequence.
	const total = 50
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			snap, err := s.Snapshot(ctx)
			if err != nil {
				t.Errorf("Snapshot failed: %v", err)
				return
			}
			for i, rec := range snap {
				if rec.PhotoRef != fmt.Sprintf("photo-%03d.jpg", i) {
					t.Errorf("torn snapshot: index %d holds %q", i, rec.PhotoRef)
					return
				}
			}
		}
	}()

	for i := 0; i < total; i++ {
		rec := testRecord(fmt.Sprintf("photo-%03d.jpg", i), []float32{float32(i)})
		if err := s.Append(ctx, rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	close(done)
	wg.Wait()

	count, _ := s.Count(ctx)
	if count != total {
		t.Errorf("expected %d records, got %d", total, count)
	}
}
