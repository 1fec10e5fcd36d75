// Package store provides durable SQLite-backed storage for conversations,
// messages, and memory items.
//
// The store is the single source of truth: managers keep in-memory
// projections and resynchronize from here after mutations. Timestamps are
// persisted as float unix seconds (REAL columns) and feature vectors as raw
// float32 blobs (four bytes per component).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/alcoveai/alcove/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	model_id   TEXT NOT NULL,
	created_at REAL NOT NULL,
	updated_at REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

CREATE TABLE IF NOT EXISTS memory_items (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	created_at REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memory_items_created ON memory_items(created_at);
`

// Store persists conversations, messages, and memory items in SQLite.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// New opens (or creates) the SQLite database at path and initializes the
// schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps the pragmas below in effect for every
	// statement and serializes writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	// SQLite leaves foreign keys off unless asked
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertConversation persists a new conversation row.
func (s *Store) InsertConversation(ctx context.Context, c *core.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, model_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.ModelID, toUnixSeconds(c.CreatedAt), toUnixSeconds(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// GetConversation loads one conversation with its messages in chronological
// order. Returns (nil, nil) when the id is unknown.
func (s *Store) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.getConversation(ctx, id)
	if err != nil || c == nil {
		return c, err
	}

	c.Messages, err = s.listMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) getConversation(ctx context.Context, id string) (*core.Conversation, error) {
	var (
		c                    core.Conversation
		createdAt, updatedAt float64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, model_id, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.ModelID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	c.CreatedAt = fromUnixSeconds(createdAt)
	c.UpdatedAt = fromUnixSeconds(updatedAt)
	return &c, nil
}

// ListConversations returns every conversation, most recently updated first,
// each eagerly loaded with its messages in chronological order.
func (s *Store) ListConversations(ctx context.Context) ([]*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, model_id, created_at, updated_at FROM conversations ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	var conversations []*core.Conversation
	for rows.Next() {
		var (
			c                    core.Conversation
			createdAt, updatedAt float64
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.ModelID, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.CreatedAt = fromUnixSeconds(createdAt)
		c.UpdatedAt = fromUnixSeconds(updatedAt)
		conversations = append(conversations, &c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	// Close before loading messages: the single connection is still held
	// while the cursor is open.
	rows.Close()

	for _, c := range conversations {
		c.Messages, err = s.listMessages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
	}
	return conversations, nil
}

// UpdateConversationTitle sets a conversation's title and bumps its
// updated-at timestamp.
func (s *Store) UpdateConversationTitle(ctx context.Context, id, title string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, toUnixSeconds(updatedAt), id,
	)
	if err != nil {
		return fmt.Errorf("update conversation title: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation and all of its messages in one
// transaction, so a crash cannot leave orphans.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete conversation: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return tx.Commit()
}

// ClearConversations removes every message and every conversation in one
// transaction. Messages go first to respect referential integrity.
func (s *Store) ClearConversations(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear conversations: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	return tx.Commit()
}

// InsertMessage persists a message and bumps its conversation's updated-at
// timestamp to the message's creation time.
func (s *Store) InsertMessage(ctx context.Context, conversationID string, m core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, conversationID, string(m.Role), m.Content, toUnixSeconds(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		toUnixSeconds(m.CreatedAt), conversationID,
	)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// ListMessages returns a conversation's messages ordered by timestamp
// ascending.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listMessages(ctx, conversationID)
}

func (s *Store) listMessages(ctx context.Context, conversationID string) ([]core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []core.Message
	for rows.Next() {
		var (
			m         core.Message
			role      string
			createdAt float64
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = core.Role(role)
		m.CreatedAt = fromUnixSeconds(createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// InsertMemoryItem persists a memory item with its embedding blob.
func (s *Store) InsertMemoryItem(ctx context.Context, item core.MemoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_items (id, text, embedding, created_at) VALUES (?, ?, ?, ?)`,
		item.ID, item.Text, encodeVector(item.Embedding), toUnixSeconds(item.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert memory item: %w", err)
	}
	return nil
}

// ListMemoryItems returns all memory items, most recently created first.
// Rows with corrupt embeddings are skipped and logged rather than failing
// the whole load.
func (s *Store) ListMemoryItems(ctx context.Context) ([]core.MemoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, embedding, created_at FROM memory_items ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list memory items: %w", err)
	}
	defer rows.Close()

	var items []core.MemoryItem
	for rows.Next() {
		var (
			item      core.MemoryItem
			blob      []byte
			createdAt float64
		)
		if err := rows.Scan(&item.ID, &item.Text, &blob, &createdAt); err != nil {
			log.Printf("[STORE] Skipping unreadable memory item: %v", err)
			continue
		}
		item.Embedding, err = decodeVector(blob)
		if err != nil {
			log.Printf("[STORE] Skipping corrupt memory item %s: %v", item.ID, err)
			continue
		}
		item.CreatedAt = fromUnixSeconds(createdAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteMemoryItem removes a single memory item.
func (s *Store) DeleteMemoryItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory item: %w", err)
	}
	return nil
}

// ClearMemoryItems removes every memory item.
func (s *Store) ClearMemoryItems(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_items`)
	if err != nil {
		return fmt.Errorf("clear memory items: %w", err)
	}
	return nil
}

// toUnixSeconds converts a time to float unix seconds for a REAL column.
func toUnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// fromUnixSeconds converts float unix seconds back to a time.
func fromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
