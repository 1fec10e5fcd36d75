package memory

import (
	"context"

	"github.com/alcoveai/alcove/core"
)

// Encoder converts text to fixed-size feature vectors.
// Implementations: hashing.Encoder (deterministic, model-free),
// cached.Encoder (ristretto memoization over any Encoder).
//
// Encoders used for memory must be deterministic: the same text must always
// produce the same vector, across calls and across process restarts, or
// stored embeddings stop matching their own text.
type Encoder interface {
	// Encode converts a single text to its feature vector.
	Encode(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the vector size every Encode result has.
	Dimensions() int
}

// Match pairs a memory item with its similarity to a query vector.
type Match struct {
	Item  core.MemoryItem
	Score float32
}

// Index ranks stored memory items against query vectors.
// Implementations: bruteforce.Index (linear scan, reference semantics),
// chromem.Index (embedded vector database).
//
// The index is a projection of the store, not a source of truth: the
// manager rebuilds it from the store at startup and keeps it in step after
// each successful store mutation.
type Index interface {
	// Add makes an item searchable.
	Add(ctx context.Context, item core.MemoryItem) error

	// Remove withdraws an item by id. Removing an unknown id is a no-op.
	Remove(ctx context.Context, id string) error

	// Clear withdraws everything.
	Clear(ctx context.Context) error

	// Search returns at most k items ranked by similarity to query,
	// highest first, keeping only scores strictly above minScore.
	Search(ctx context.Context, query []float32, k int, minScore float32) ([]Match, error)
}

// Store is the persistence the manager needs for memory items.
// *store.Store satisfies it.
type Store interface {
	InsertMemoryItem(ctx context.Context, item core.MemoryItem) error
	ListMemoryItems(ctx context.Context) ([]core.MemoryItem, error)
	DeleteMemoryItem(ctx context.Context, id string) error
	ClearMemoryItems(ctx context.Context) error
}

// Manager owns the memory lifecycle: encode, persist, retrieve-and-rank.
// This is the interface the engine and server consume; the engine treats a
// nil Manager as "memory disabled".
//
// Retrieved texts are contextual hints for generation, never a hard
// constraint: the orchestrator appends them to the system prompt and the
// model decides what to do with them.
type Manager interface {
	// Remember encodes text, persists it as a memory item, and returns
	// the stored item.
	Remember(ctx context.Context, text string) (core.MemoryItem, error)

	// Retrieve returns the texts of the at most k stored items most
	// similar to query, most relevant first, skipping anything at or
	// below the relevance threshold. k <= 0 means the configured
	// default. An empty pool returns immediately with no results.
	Retrieve(ctx context.Context, query string, k int) ([]string, error)

	// Forget deletes one item. The store is updated first; caches only
	// follow on success.
	Forget(ctx context.Context, id string) error

	// ForgetAll deletes every item.
	ForgetAll(ctx context.Context) error

	// List returns a snapshot of all items, most recently created first.
	List(ctx context.Context) ([]core.MemoryItem, error)
}
