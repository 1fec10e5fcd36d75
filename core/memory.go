package core

import (
	"time"

	"github.com/google/uuid"
)

// MemoryItem is a standalone remembered fact: free text plus the feature
// vector it was encoded to. Items are immutable after creation; the only
// operations are insert and delete.
type MemoryItem struct {
	// ID is the item's unique identifier.
	ID string

	// Text is the remembered content.
	Text string

	// Embedding is the item's feature vector. Its length is fixed by the
	// encoder that produced it and is the same for every stored item.
	Embedding []float32

	// CreatedAt is when the item was remembered.
	CreatedAt time.Time
}

// NewMemoryItem creates a memory item with a fresh ID and the current time.
func NewMemoryItem(text string, embedding []float32) MemoryItem {
	return MemoryItem{
		ID:        uuid.New().String(),
		Text:      text,
		Embedding: embedding,
		CreatedAt: time.Now(),
	}
}
