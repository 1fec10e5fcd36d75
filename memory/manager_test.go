package memory_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alcoveai/alcove/memory"
	"github.com/alcoveai/alcove/memory/encoder/hashing"
	"github.com/alcoveai/alcove/memory/index/bruteforce"
	"github.com/alcoveai/alcove/store"
)

// failingEncoder errors on every call, to prove code paths that must not
// reach the encoder.
type failingEncoder struct{}

func (f *failingEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("encoder should not have been called")
}

func (f *failingEncoder) Dimensions() int {
	return 384
}

// failingDeleteStore delegates everything except deletion.
type failingDeleteStore struct {
	memory.Store
}

func (f *failingDeleteStore) DeleteMemoryItem(ctx context.Context, id string) error {
	return errors.New("disk full")
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "alcove.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestManager(t *testing.T, st memory.Store) *memory.SimpleManager {
	t.Helper()
	manager, err := memory.NewSimpleManager(context.Background(), st, hashing.New(), bruteforce.New(), nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return manager
}

func TestSimpleManager_RememberAndRetrieve(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, newTestStore(t))

	item, err := manager.Remember(ctx, "the wifi password is hunter2")
	if err != nil {
		t.Fatalf("Failed to remember: %v", err)
	}
	if item.ID == "" {
		t.Error("Expected remembered item to have an ID")
	}
	if len(item.Embedding) != 384 {
		t.Errorf("Expected 384-dim embedding, got %d", len(item.Embedding))
	}

	if _, err := manager.Remember(ctx, "dentist appointment on friday at 3pm"); err != nil {
		t.Fatalf("Failed to remember: %v", err)
	}

	texts, err := manager.Retrieve(ctx, "what is the wifi password", 2)
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if len(texts) != 1 {
		t.Fatalf("Expected 1 relevant memory, got %d: %v", len(texts), texts)
	}
	if texts[0] != "the wifi password is hunter2" {
		t.Errorf("Expected the wifi memory, got %q", texts[0])
	}
}

func TestSimpleManager_RetrieveEmptyPool(t *testing.T) {
	ctx := context.Background()

	// The failing encoder proves an empty pool never reaches encoding.
	manager, err := memory.NewSimpleManager(ctx, newTestStore(t), &failingEncoder{}, bruteforce.New(), nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	texts, err := manager.Retrieve(ctx, "anything at all", 3)
	if err != nil {
		t.Fatalf("Expected no error on empty pool, got %v", err)
	}
	if len(texts) != 0 {
		t.Errorf("Expected no memories, got %v", texts)
	}
}

func TestSimpleManager_RetrieveCapsResults(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, newTestStore(t))

	for _, text := range []string{
		"grocery list includes milk",
		"grocery list includes eggs",
		"grocery list includes bread",
		"grocery list includes coffee",
	} {
		if _, err := manager.Remember(ctx, text); err != nil {
			t.Fatalf("Failed to remember: %v", err)
		}
	}

	texts, err := manager.Retrieve(ctx, "grocery list", 2)
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if len(texts) != 2 {
		t.Errorf("Expected exactly 2 memories, got %d", len(texts))
	}
}

func TestSimpleManager_RetrieveDefaultTopK(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, newTestStore(t))

	for _, text := range []string{
		"grocery list includes milk",
		"grocery list includes eggs",
		"grocery list includes bread",
		"grocery list includes coffee",
		"grocery list includes butter",
	} {
		if _, err := manager.Remember(ctx, text); err != nil {
			t.Fatalf("Failed to remember: %v", err)
		}
	}

	// k <= 0 falls back to the configured default of 3.
	texts, err := manager.Retrieve(ctx, "grocery list", 0)
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if len(texts) != 3 {
		t.Errorf("Expected default of 3 memories, got %d", len(texts))
	}
}

func TestSimpleManager_Forget(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, newTestStore(t))

	wifi, err := manager.Remember(ctx, "the wifi password is hunter2")
	if err != nil {
		t.Fatalf("Failed to remember: %v", err)
	}
	if _, err := manager.Remember(ctx, "dentist appointment on friday"); err != nil {
		t.Fatalf("Failed to remember: %v", err)
	}

	if err := manager.Forget(ctx, wifi.ID); err != nil {
		t.Fatalf("Failed to forget: %v", err)
	}

	items, err := manager.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item after forget, got %d", len(items))
	}
	if items[0].ID == wifi.ID {
		t.Error("Expected the forgotten item to be gone")
	}

	texts, err := manager.Retrieve(ctx, "what is the wifi password", 5)
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if len(texts) != 0 {
		t.Errorf("Expected forgotten memory to be unretrievable, got %v", texts)
	}
}

func TestSimpleManager_ForgetStoreFailure(t *testing.T) {
	ctx := context.Background()
	st := &failingDeleteStore{Store: newTestStore(t)}
	manager := newTestManager(t, st)

	item, err := manager.Remember(ctx, "the wifi password is hunter2")
	if err != nil {
		t.Fatalf("Failed to remember: %v", err)
	}

	if err := manager.Forget(ctx, item.ID); err == nil {
		t.Fatal("Expected forget to fail when the store fails")
	}

	// A failed delete must leave the item visible.
	items, err := manager.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected item to survive a failed delete, got %d items", len(items))
	}
}

func TestSimpleManager_ForgetAll(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, newTestStore(t))

	if _, err := manager.Remember(ctx, "the wifi password is hunter2"); err != nil {
		t.Fatalf("Failed to remember: %v", err)
	}
	if _, err := manager.Remember(ctx, "dentist appointment on friday"); err != nil {
		t.Fatalf("Failed to remember: %v", err)
	}

	if err := manager.ForgetAll(ctx); err != nil {
		t.Fatalf("Failed to forget all: %v", err)
	}

	items, err := manager.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items after forget all, got %d", len(items))
	}

	texts, err := manager.Retrieve(ctx, "wifi password", 5)
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if len(texts) != 0 {
		t.Errorf("Expected no memories after forget all, got %v", texts)
	}
}

func TestSimpleManager_ListMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, newTestStore(t))

	for _, text := range []string{"first note", "second note", "third note"} {
		if _, err := manager.Remember(ctx, text); err != nil {
			t.Fatalf("Failed to remember: %v", err)
		}
	}

	items, err := manager.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	for i, want := range []string{"third note", "second note", "first note"} {
		if items[i].Text != want {
			t.Errorf("Position %d: expected %q, got %q", i, want, items[i].Text)
		}
	}
}

func TestSimpleManager_ReloadFromStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alcove.db")

	st1, err := store.New(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	manager1 := newTestManager(t, st1)

	if _, err := manager1.Remember(ctx, "the wifi password is hunter2"); err != nil {
		t.Fatalf("Failed to remember: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := manager1.Remember(ctx, "dentist appointment on friday"); err != nil {
		t.Fatalf("Failed to remember: %v", err)
	}
	if err := st1.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}

	// A fresh manager over the same file sees everything and can search it.
	st2, err := store.New(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	t.Cleanup(func() { st2.Close() })
	manager2 := newTestManager(t, st2)

	items, err := manager2.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items after reload, got %d", len(items))
	}
	if items[0].Text != "dentist appointment on friday" {
		t.Errorf("Expected most recent item first, got %q", items[0].Text)
	}

	texts, err := manager2.Retrieve(ctx, "what is the wifi password", 2)
	if err != nil {
		t.Fatalf("Failed to retrieve: %v", err)
	}
	if len(texts) != 1 || texts[0] != "the wifi password is hunter2" {
		t.Errorf("Expected the wifi memory after reload, got %v", texts)
	}
}
