// Package chromem backs the similarity index with chromem-go, a pure Go
// embedded vector database.
//
// It trades the brute-force backend's exact ordering guarantees for a
// database that other tooling can share. The default assistant wiring uses
// brute force; this backend is for pools large enough to care.
package chromem

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	log "github.com/sirupsen/logrus"

	"github.com/alcoveai/alcove/core"
	"github.com/alcoveai/alcove/memory"
)

const collectionName = "memories"

// Index stores embeddings in a single chromem-go collection.
type Index struct {
	mu  sync.RWMutex
	db  *chromem.DB
	col *chromem.Collection
}

// New creates an empty in-memory index.
func New() (*Index, error) {
	db := chromem.NewDB()

	col, err := db.CreateCollection(
		collectionName,
		nil, // No custom embedding func (we provide embeddings)
		nil, // No custom distance func (use default cosine)
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &Index{
		db:  db,
		col: col,
	}, nil
}

// Add indexes item, replacing any previous document with the same ID.
func (idx *Index) Add(ctx context.Context, item core.MemoryItem) error {
	idx.mu.RLock()
	col := idx.col
	idx.mu.RUnlock()

	doc := chromem.Document{
		ID:        item.ID,
		Content:   item.Text,
		Embedding: item.Embedding,
		Metadata: map[string]string{
			"created_at": item.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Remove drops the document with the given ID. Unknown IDs are a no-op.
func (idx *Index) Remove(ctx context.Context, id string) error {
	idx.mu.RLock()
	col := idx.col
	idx.mu.RUnlock()

	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Clear drops every document by recreating the collection.
func (idx *Index) Clear(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}

	col, err := idx.db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	idx.col = col
	return nil
}

// Search returns up to k matches for query scoring above minScore, best
// first. Tied scores go to the more recently created item.
func (idx *Index) Search(ctx context.Context, query []float32, k int, minScore float32) ([]memory.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	col := idx.col
	idx.mu.RUnlock()

	// chromem-go requires nResults <= collection size.
	// Retry with smaller limits if necessary.
	var results []chromem.Result
	for currentLimit := k; currentLimit >= 1; currentLimit-- {
		var err error
		results, err = col.QueryEmbedding(ctx, query, currentLimit, nil, nil)
		if err == nil {
			break
		}

		if isInsufficientDocsError(err) {
			if currentLimit == 1 {
				// Collection is empty
				return nil, nil
			}
			continue
		}

		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]memory.Match, 0, len(results))
	for _, result := range results {
		createdAt, err := time.Parse(time.RFC3339Nano, result.Metadata["created_at"])
		if err != nil {
			log.Printf("[CHROMEM] Skipping result %s: bad created_at: %v", result.ID, err)
			continue
		}

		// NaN-safe: zero-magnitude embeddings never match.
		if !(result.Similarity > minScore) {
			continue
		}

		matches = append(matches, memory.Match{
			Item: core.MemoryItem{
				ID:        result.ID,
				Text:      result.Content,
				Embedding: result.Embedding,
				CreatedAt: createdAt,
			},
			Score: result.Similarity,
		})
	}

	// chromem orders by similarity only; break score ties on recency.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && sameScoreNewer(matches[j], matches[j-1]); j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}

	return matches, nil
}

func sameScoreNewer(a, b memory.Match) bool {
	return a.Score == b.Score && a.Item.CreatedAt.After(b.Item.CreatedAt)
}

// isInsufficientDocsError checks if error is due to insufficient documents.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "nResults must be") ||
		strings.Contains(err.Error(), "number of documents")
}
