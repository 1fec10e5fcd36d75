package chromem_test

import (
	"context"
	"testing"
	"time"

	"github.com/alcoveai/alcove/core"
	"github.com/alcoveai/alcove/memory/index/chromem"
)

func item(id, text string, createdAt time.Time, embedding ...float32) core.MemoryItem {
	return core.MemoryItem{
		ID:        id,
		Text:      text,
		Embedding: embedding,
		CreatedAt: createdAt,
	}
}

func TestAddAndSearch(t *testing.T) {
	idx, err := chromem.New()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	ctx := context.Background()
	now := time.Now()

	if err := idx.Add(ctx, item("a", "wifi password is hunter2", now, 1, 0)); err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	if err := idx.Add(ctx, item("b", "dentist on friday", now, 0, 1)); err != nil {
		t.Fatalf("Failed to add: %v", err)
	}

	matches, err := idx.Search(ctx, []float32{1, 0}, 5, 0.3)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if matches[0].Item.ID != "a" {
		t.Errorf("Expected item a, got %s", matches[0].Item.ID)
	}
	if matches[0].Item.Text != "wifi password is hunter2" {
		t.Errorf("Expected original text back, got %q", matches[0].Item.Text)
	}
	if matches[0].Score < 0.99 {
		t.Errorf("Expected near-perfect score, got %v", matches[0].Score)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx, err := chromem.New()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}

	matches, err := idx.Search(context.Background(), []float32{1, 0}, 5, 0.3)
	if err != nil {
		t.Fatalf("Failed to search empty index: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected no matches, got %d", len(matches))
	}
}

func TestSearchKeepsCreationTime(t *testing.T) {
	idx, err := chromem.New()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	ctx := context.Background()
	created := time.Now().Add(-time.Hour).Round(0)

	if err := idx.Add(ctx, item("a", "note", created, 1, 0)); err != nil {
		t.Fatalf("Failed to add: %v", err)
	}

	matches, err := idx.Search(ctx, []float32{1, 0}, 1, 0.3)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if !matches[0].Item.CreatedAt.Equal(created) {
		t.Errorf("Expected created_at %v, got %v", created, matches[0].Item.CreatedAt)
	}
}

func TestRemove(t *testing.T) {
	idx, err := chromem.New()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	ctx := context.Background()

	if err := idx.Add(ctx, item("a", "note", time.Now(), 1, 0)); err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	if err := idx.Remove(ctx, "a"); err != nil {
		t.Fatalf("Failed to remove: %v", err)
	}
	if err := idx.Remove(ctx, "never-existed"); err != nil {
		t.Fatalf("Expected unknown ID removal to be a no-op, got %v", err)
	}

	matches, err := idx.Search(ctx, []float32{1, 0}, 5, 0.3)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected no matches after removal, got %d", len(matches))
	}
}

func TestClearThenReuse(t *testing.T) {
	idx, err := chromem.New()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	ctx := context.Background()

	if err := idx.Add(ctx, item("a", "note", time.Now(), 1, 0)); err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}

	matches, err := idx.Search(ctx, []float32{1, 0}, 5, 0.3)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected no matches after clear, got %d", len(matches))
	}

	// The index stays usable after a clear.
	if err := idx.Add(ctx, item("b", "fresh note", time.Now(), 0, 1)); err != nil {
		t.Fatalf("Failed to add after clear: %v", err)
	}
	matches, err = idx.Search(ctx, []float32{0, 1}, 5, 0.3)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("Expected 1 match after re-adding, got %d", len(matches))
	}
}

func TestThresholdFiltersWeakMatches(t *testing.T) {
	idx, err := chromem.New()
	if err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}
	ctx := context.Background()
	now := time.Now()

	if err := idx.Add(ctx, item("strong", "close", now, 1, 0)); err != nil {
		t.Fatalf("Failed to add: %v", err)
	}
	if err := idx.Add(ctx, item("weak", "distant", now, 0.5, 0.866)); err != nil {
		t.Fatalf("Failed to add: %v", err)
	}

	matches, err := idx.Search(ctx, []float32{1, 0}, 5, 0.6)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(matches) != 1 || matches[0].Item.ID != "strong" {
		t.Fatalf("Expected only the strong match, got %v", matches)
	}
}
