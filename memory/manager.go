package memory

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/alcoveai/alcove/core"
)

// SimpleManager is the provided Manager implementation: a store-backed
// memory pool with an in-memory most-recent-first cache and a similarity
// index kept in step with the store.
//
// The store is the source of truth. The cache and index are only touched
// after a store operation succeeds, and both are rebuilt from the store when
// the manager is constructed, so a restart loses nothing.
type SimpleManager struct {
	store   Store
	encoder Encoder
	index   Index
	config  *Config

	mu    sync.RWMutex
	items []core.MemoryItem // most recent first
}

// NewSimpleManager creates a SimpleManager and seeds its cache and index
// from the store. A nil config uses DefaultConfig.
func NewSimpleManager(ctx context.Context, store Store, encoder Encoder, index Index, config *Config) (*SimpleManager, error) {
	if config == nil {
		config = DefaultConfig
	}

	items, err := store.ListMemoryItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load memory items: %w", err)
	}
	for _, item := range items {
		if err := index.Add(ctx, item); err != nil {
			return nil, fmt.Errorf("seed index: %w", err)
		}
	}
	log.Printf("[MEMORY] Loaded %d memory items", len(items))

	return &SimpleManager{
		store:   store,
		encoder: encoder,
		index:   index,
		config:  config,
		items:   items,
	}, nil
}

// Remember encodes text, persists it, and makes it retrievable.
func (m *SimpleManager) Remember(ctx context.Context, text string) (core.MemoryItem, error) {
	embedding, err := m.encoder.Encode(ctx, text)
	if err != nil {
		return core.MemoryItem{}, fmt.Errorf("encode memory: %w", err)
	}

	item := core.NewMemoryItem(text, embedding)
	if err := m.store.InsertMemoryItem(ctx, item); err != nil {
		return core.MemoryItem{}, fmt.Errorf("store memory: %w", err)
	}

	// Store succeeded; only now touch the projections.
	m.mu.Lock()
	m.items = append([]core.MemoryItem{item}, m.items...)
	m.mu.Unlock()

	if err := m.index.Add(ctx, item); err != nil {
		// The item is persisted and will be indexed on next startup.
		log.Printf("[MEMORY] Failed to index memory %s: %v", item.ID, err)
	}

	log.Printf("[MEMORY] Remembered %q", truncateLog(text, 50))
	return item, nil
}

// Retrieve returns the texts of the stored items most relevant to query.
func (m *SimpleManager) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	m.mu.RLock()
	total := len(m.items)
	m.mu.RUnlock()
	if total == 0 {
		return nil, nil
	}

	if k <= 0 {
		k = m.config.TopK
	}
	if k <= 0 {
		k = DefaultConfig.TopK
	}

	embedding, err := m.encoder.Encode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	matches, err := m.index.Search(ctx, embedding, k, m.config.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	log.Printf("[MEMORY] Retrieved %d of %d memories for query: %q",
		len(matches), total, truncateLog(query, 50))

	texts := make([]string, 0, len(matches))
	for _, match := range matches {
		texts = append(texts, match.Item.Text)
	}
	return texts, nil
}

// Forget deletes one memory item, store first.
func (m *SimpleManager) Forget(ctx context.Context, id string) error {
	if err := m.store.DeleteMemoryItem(ctx, id); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}

	m.mu.Lock()
	for i, item := range m.items {
		if item.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if err := m.index.Remove(ctx, id); err != nil {
		log.Printf("[MEMORY] Failed to unindex memory %s: %v", id, err)
	}
	return nil
}

// ForgetAll deletes every memory item, store first.
func (m *SimpleManager) ForgetAll(ctx context.Context) error {
	if err := m.store.ClearMemoryItems(ctx); err != nil {
		return fmt.Errorf("clear memories: %w", err)
	}

	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()

	if err := m.index.Clear(ctx); err != nil {
		log.Printf("[MEMORY] Failed to clear index: %v", err)
	}

	log.Printf("[MEMORY] Forgot all memories")
	return nil
}

// List returns a snapshot of all items, most recently created first.
func (m *SimpleManager) List(ctx context.Context) ([]core.MemoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.MemoryItem(nil), m.items...), nil
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Config holds SimpleManager configuration.
type Config struct {
	// MinSimilarity is the relevance threshold [0.0-1.0]: only matches
	// strictly above it are ever returned.
	// Default: 0.3 (tuned for the hashing encoder's lexical overlap scores)
	MinSimilarity float32

	// TopK is how many memories Retrieve returns when the caller does
	// not say.
	// Default: 3
	TopK int
}

// DefaultConfig is used when NewSimpleManager gets a nil config.
var DefaultConfig = &Config{
	MinSimilarity: 0.3,
	TopK:          3,
}
