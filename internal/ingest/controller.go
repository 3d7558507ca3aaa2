package ingest

import (
	"sync"
	"time"
)

// pendingFile tracks one path currently being ingested.
type pendingFile struct {
	firstSeen time.Time
}

// Controller guards the ingestion pipeline against the watcher's habit of
// firing several creation events for the same file. It admits each path at
// most once while that path is in flight, caps how many ingestion tasks run
// at once, and funnels every store mutation through a single commit lock.
//
// A duplicate event is dropped, not queued: a genuinely new write to the same
// path shows up as a fresh event once the current task finishes.
type Controller struct {
	mu       sync.Mutex
	inflight map[string]pendingFile

	slots chan struct{}

	commitMu sync.Mutex
}

// NewController creates a controller allowing up to maxConcurrent ingestion
// tasks at once.
func NewController(maxConcurrent int) *Controller {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Controller{
		inflight: make(map[string]pendingFile),
		slots:    make(chan struct{}, maxConcurrent),
	}
}

// Admit registers a path as in flight. Returns false if the path is already
// being processed, in which case the event must be dropped.
func (c *Controller) Admit(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inflight[path]; ok {
		return false
	}
	c.inflight[path] = pendingFile{firstSeen: time.Now()}
	return true
}

// Release removes a path from the in-flight set. Called on every completion,
// whether the file was embedded, skipped or failed.
func (c *Controller) Release(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, path)
}

// InFlight returns the number of paths currently admitted.
func (c *Controller) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// AcquireSlot blocks until a worker slot is free.
func (c *Controller) AcquireSlot() {
	c.slots <- struct{}{}
}

// ReleaseSlot frees a worker slot.
func (c *Controller) ReleaseSlot() {
	<-c.slots
}

// Commit runs fn under the store mutation lock. Every append in the process
// goes through here, so two ingestion tasks can extract embeddings in
// parallel but never interleave their store writes.
func (c *Controller) Commit(fn func() error) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	return fn()
}
