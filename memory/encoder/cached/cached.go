// Package cached wraps an encoder with an in-process embedding cache.
//
// Encoding is deterministic, so a text seen twice always maps to the same
// vector; caching trades a little memory for skipping repeat work on hot
// queries and re-remembered phrases.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/alcoveai/alcove/memory"
)

// Encoder caches the vectors produced by an inner encoder, keyed by the
// exact input text.
type Encoder struct {
	inner memory.Encoder
	cache *ristretto.Cache
}

// New wraps inner with a cache. Entry cost is the vector's byte size.
func New(inner memory.Encoder) (*Encoder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e7,     // number of keys to track frequency of
		MaxCost:     1 << 30, // maximum cost of cache (1GB)
		BufferItems: 64,      // number of keys per Get buffer
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Encoder{
		inner: inner,
		cache: cache,
	}, nil
}

// Encode returns the cached vector for text, encoding on a miss.
// The returned slice is shared between callers and must not be modified.
func (e *Encoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.inner.Encode(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Set(text, vec, int64(4*len(vec)))
	return vec, nil
}

// Dimensions returns the inner encoder's embedding size.
func (e *Encoder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until buffered cache writes have been applied. Only tests
// need the determinism; normal callers can let writes land asynchronously.
func (e *Encoder) Wait() {
	e.cache.Wait()
}

// Close releases the cache's internal goroutines.
func (e *Encoder) Close() {
	e.cache.Close()
}
