package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// fileFormatVersion is bumped when the gob payload shape changes.
const fileFormatVersion = 1

// filePayload is the on-disk shape of the store: one self-contained blob
// holding every record, rewritten whole on each append.
type filePayload struct {
	Version int
	SavedAt time.Time
	Records []Record
}

// FileStore keeps all records in memory and mirrors them to a single gob
// file. The record slice is swapped atomically on append, so Snapshot readers
// always see either the pre-append or the post-append state.
type FileStore struct {
	path string
	recs atomic.Pointer[[]Record]
}

// Open loads the store from path. A missing file yields an empty store. A
// file that cannot be decoded also yields an empty store: availability wins
// over history here, but the suspect file is set aside first so the next
// append does not overwrite the only copy of the old data.
func Open(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	empty := []Record{}
	s.recs.Store(&empty)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		log.Printf("[STORE] cannot read %s, starting empty: %v", path, err)
		return s, nil
	}

	var payload filePayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		quarantine := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		if renameErr := os.Rename(path, quarantine); renameErr != nil {
			log.Printf("[STORE] corrupt store %s could not be quarantined: %v", path, renameErr)
		} else {
			log.Printf("[STORE] corrupt store quarantined as %s", quarantine)
		}
		log.Printf("[STORE] failed to decode %s, starting empty: %v", path, err)
		return s, nil
	}

	s.recs.Store(&payload.Records)
	log.Printf("[STORE] loaded %d records from %s", len(payload.Records), path)
	return s, nil
}

// Append adds one record and rewrites the snapshot file. Callers must
// serialize Append externally; Snapshot may run concurrently.
func (s *FileStore) Append(ctx context.Context, rec Record) error {
	old := *s.recs.Load()
	next := make([]Record, len(old), len(old)+1)
	copy(next, old)
	next = append(next, rec)

	if err := s.persist(next); err != nil {
		// In-memory and on-disk state now diverge; the next successful
		// append rewrites the whole file and re-syncs them.
		return fmt.Errorf("persisting store after append: %w", err)
	}

	s.recs.Store(&next)
	return nil
}

// Snapshot returns the current record slice. The slice is never mutated after
// being stored, so callers may read it without copying.
func (s *FileStore) Snapshot(ctx context.Context) ([]Record, error) {
	return *s.recs.Load(), nil
}

// Count returns the number of records stored.
func (s *FileStore) Count(ctx context.Context) (int, error) {
	return len(*s.recs.Load()), nil
}

// Close persists the current state one last time.
func (s *FileStore) Close() error {
	return s.persist(*s.recs.Load())
}

// persist writes the full record list to a temp file and renames it into
// place, so a crash mid-write leaves the previous snapshot intact.
func (s *FileStore) persist(recs []Record) error {
	var buf bytes.Buffer
	payload := filePayload{
		Version: fileFormatVersion,
		SavedAt: time.Now(),
		Records: recs,
	}
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}
