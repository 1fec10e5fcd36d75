// Package chat manages the lifecycle of conversations and their transcripts.
//
// The manager mirrors the store in memory for cheap reads; every mutation
// goes to the store first and the mirror is updated only on success, so the
// store is always the durable truth and a crashed process loses nothing.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/alcoveai/alcove/core"
)

// ErrNotFound reports an operation against a conversation that does not
// exist (never created, or already deleted).
var ErrNotFound = errors.New("conversation not found")

// titleWords is how many leading words of the first user message become the
// conversation title.
const titleWords = 6

// Store is the persistence surface the manager needs. *store.Store
// satisfies it.
type Store interface {
	InsertConversation(ctx context.Context, c *core.Conversation) error
	GetConversation(ctx context.Context, id string) (*core.Conversation, error)
	ListConversations(ctx context.Context) ([]*core.Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string, updatedAt time.Time) error
	DeleteConversation(ctx context.Context, id string) error
	ClearConversations(ctx context.Context) error
	InsertMessage(ctx context.Context, conversationID string, m core.Message) error
}

// Manager tracks every conversation plus which one is active. All methods
// are safe for concurrent use; callers are expected to serialize appends
// within a single conversation so transcripts interleave sensibly.
type Manager struct {
	mu            sync.RWMutex
	store         Store
	conversations map[string]*core.Conversation
	activeID      string
}

// NewManager creates a manager mirroring the store's current contents.
func NewManager(ctx context.Context, store Store) (*Manager, error) {
	loaded, err := store.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}

	conversations := make(map[string]*core.Conversation, len(loaded))
	for _, c := range loaded {
		conversations[c.ID] = c
	}
	log.Printf("[CHAT] Loaded %d conversations", len(loaded))

	return &Manager{
		store:         store,
		conversations: conversations,
	}, nil
}

// Create starts a new conversation with the default title and makes it
// active.
func (m *Manager) Create(ctx context.Context, modelID string) (*core.Conversation, error) {
	conv := core.NewConversation(modelID)

	if err := m.store.InsertConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	m.mu.Lock()
	m.conversations[conv.ID] = conv
	m.activeID = conv.ID
	m.mu.Unlock()

	log.Printf("[CHAT] Created conversation %s", conv.ID)
	return conv.Clone(), nil
}

// Append persists msg to the conversation and returns the refreshed
// transcript. The first user message of a still-untitled conversation also
// sets the title.
func (m *Manager) Append(ctx context.Context, conversationID string, msg core.Message) (*core.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}

	if err := m.store.InsertMessage(ctx, conversationID, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if msg.Role == core.RoleUser && conv.Title == core.DefaultTitle {
		if title := deriveTitle(msg.Content); title != core.DefaultTitle {
			if err := m.store.UpdateConversationTitle(ctx, conversationID, title, msg.CreatedAt); err != nil {
				return nil, fmt.Errorf("title conversation: %w", err)
			}
			log.Printf("[CHAT] Titled conversation %s: %q", conversationID, title)
		}
	}

	// Reload so the mirror carries exactly what a restart would see.
	fresh, err := m.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("reload conversation: %w", err)
	}
	if fresh == nil {
		return nil, ErrNotFound
	}
	m.conversations[conversationID] = fresh

	return fresh.Clone(), nil
}

// Rename sets a conversation's title.
func (m *Manager) Rename(ctx context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}

	now := time.Now()
	if err := m.store.UpdateConversationTitle(ctx, id, title, now); err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}

	conv.Title = title
	conv.UpdatedAt = now
	return nil
}

// Delete removes a conversation and its messages. Deleting the active
// conversation leaves no conversation active.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[id]; !ok {
		return ErrNotFound
	}

	if err := m.store.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	delete(m.conversations, id)
	if m.activeID == id {
		m.activeID = ""
	}

	log.Printf("[CHAT] Deleted conversation %s", id)
	return nil
}

// DeleteAll removes every conversation.
func (m *Manager) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.ClearConversations(ctx); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}

	m.conversations = make(map[string]*core.Conversation)
	m.activeID = ""

	log.Printf("[CHAT] Deleted all conversations")
	return nil
}

// Get returns a snapshot of one conversation.
func (m *Manager) Get(ctx context.Context, id string) (*core.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conv.Clone(), nil
}

// List returns snapshots of every conversation, most recently updated
// first.
func (m *Manager) List(ctx context.Context) []*core.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*core.Conversation, 0, len(m.conversations))
	for _, conv := range m.conversations {
		list = append(list, conv.Clone())
	}

	sort.Slice(list, func(i, j int) bool {
		if !list[i].UpdatedAt.Equal(list[j].UpdatedAt) {
			return list[i].UpdatedAt.After(list[j].UpdatedAt)
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}

// Active returns a snapshot of the active conversation, or nil when no
// conversation is active.
func (m *Manager) Active() *core.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[m.activeID]
	if !ok {
		return nil
	}
	return conv.Clone()
}

// SetActive switches the active conversation. An empty ID clears the
// selection.
func (m *Manager) SetActive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		m.activeID = ""
		return nil
	}
	if _, ok := m.conversations[id]; !ok {
		return ErrNotFound
	}
	m.activeID = id
	return nil
}

// deriveTitle builds a short title from the leading words of text. Text
// with no words keeps the default title.
func deriveTitle(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return core.DefaultTitle
	}
	if len(words) <= titleWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleWords], " ") + "…"
}
