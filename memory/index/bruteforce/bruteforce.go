// Package bruteforce implements exact similarity search by scanning every
// stored vector.
//
// At personal-assistant scale (hundreds to low thousands of memories) a full
// scan is microseconds of work, and exact scoring keeps result order
// reproducible across runs and machines.
package bruteforce

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/alcoveai/alcove/core"
	"github.com/alcoveai/alcove/memory"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different lengths, and vectors with zero magnitude, score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (float32(math.Sqrt(float64(na))) * float32(math.Sqrt(float64(nb))))
}

// TopK scores every item against query and returns up to k matches above
// minScore, best first.
//
// Ties on score go to the more recently created item. The cut to k happens
// before the minScore filter, so a crowded pool can return fewer than k
// matches even when more items clear the threshold.
func TopK(items []core.MemoryItem, query []float32, k int, minScore float32) []memory.Match {
	if k <= 0 || len(items) == 0 {
		return nil
	}

	matches := make([]memory.Match, 0, len(items))
	for _, item := range items {
		matches = append(matches, memory.Match{
			Item:  item,
			Score: CosineSimilarity(query, item.Embedding),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Item.CreatedAt.After(matches[j].Item.CreatedAt)
	})

	if k < len(matches) {
		matches = matches[:k]
	}

	results := make([]memory.Match, 0, len(matches))
	for _, match := range matches {
		if match.Score > minScore {
			results = append(results, match)
		}
	}
	return results
}

// Index is an in-memory similarity index over the full item set.
type Index struct {
	mu    sync.RWMutex
	items []core.MemoryItem
}

// New creates an empty index.
func New() *Index {
	return &Index{}
}

// Add indexes item, replacing any previous item with the same ID.
func (idx *Index) Add(ctx context.Context, item core.MemoryItem) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i := range idx.items {
		if idx.items[i].ID == item.ID {
			idx.items[i] = item
			return nil
		}
	}
	idx.items = append(idx.items, item)
	return nil
}

// Remove drops the item with the given ID. Unknown IDs are a no-op.
func (idx *Index) Remove(ctx context.Context, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i := range idx.items {
		if idx.items[i].ID == id {
			idx.items = append(idx.items[:i], idx.items[i+1:]...)
			return nil
		}
	}
	return nil
}

// Clear drops every indexed item.
func (idx *Index) Clear(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.items = nil
	return nil
}

// Search returns up to k matches for query scoring above minScore.
func (idx *Index) Search(ctx context.Context, query []float32, k int, minScore float32) ([]memory.Match, error) {
	idx.mu.RLock()
	items := make([]core.MemoryItem, len(idx.items))
	copy(items, idx.items)
	idx.mu.RUnlock()

	return TopK(items, query, k, minScore), nil
}
