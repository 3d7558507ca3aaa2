// Package match finds stored photos whose face embeddings lie within a
// cosine distance threshold of a query.
package match

import (
	"context"
	"fmt"
	"sort"

	"github.com/kozaktomas/facefind/internal/store"
)

// Engine runs threshold searches over a store snapshot. The dataset is small
// enough (hundreds to low thousands of faces) that a linear scan per query
// face beats maintaining any index structure.
type Engine struct {
	store            store.Store
	defaultThreshold float64
}

// NewEngine creates a search engine over the given store.
func NewEngine(s store.Store, defaultThreshold float64) *Engine {
	return &Engine{store: s, defaultThreshold: defaultThreshold}
}

// DefaultThreshold returns the configured fallback threshold.
func (e *Engine) DefaultThreshold() float64 {
	return e.defaultThreshold
}

// Search returns the photo references whose stored face embedding lies within
// threshold cosine distance of any query embedding. A query photo containing
// several faces matches the union of each face's results. References are
// deduplicated and sorted for deterministic output. A threshold <= 0 selects
// the configured default.
func (e *Engine) Search(ctx context.Context, queries [][]float32, threshold float64) ([]string, error) {
	if threshold <= 0 {
		threshold = e.defaultThreshold
	}

	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading store snapshot: %w", err)
	}

	seen := make(map[string]struct{})
	for _, query := range queries {
		for _, rec := range snap {
			if CosineDistance(query, rec.Embedding) < threshold {
				seen[rec.PhotoRef] = struct{}{}
			}
		}
	}

	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs, nil
}
