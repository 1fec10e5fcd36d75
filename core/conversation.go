package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// DefaultTitle is the title given to a conversation before its first user
// message produces a derived one.
const DefaultTitle = "New Chat"

// Message is a single turn in a conversation.
type Message struct {
	// ID is the message's unique identifier.
	ID string

	// Role is who authored the message: user, assistant, or system.
	Role Role

	// Content is the message text. It is only appended to while the
	// in-memory instance is streaming; persisted content never changes.
	Content string

	// CreatedAt is when the message was created.
	CreatedAt time.Time

	// Streaming marks a message whose content is still being produced.
	// It is transient: the store never records it, and a loaded message
	// always has it false.
	Streaming bool
}

// NewMessage creates a message with a fresh ID and the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// Conversation is a titled, ordered sequence of messages tied to one model.
type Conversation struct {
	// ID is the conversation's unique identifier.
	ID string

	// Title is the human-readable name shown in conversation lists.
	Title string

	// ModelID identifies the model this conversation talks to.
	ModelID string

	// Messages holds the conversation's messages in chronological order.
	Messages []Message

	// CreatedAt is when the conversation was created.
	CreatedAt time.Time

	// UpdatedAt bumps on every mutation and never decreases.
	UpdatedAt time.Time
}

// NewConversation creates an empty conversation with the default title.
func NewConversation(modelID string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.New().String(),
		Title:     DefaultTitle,
		ModelID:   modelID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy safe to hand to concurrent readers.
func (c *Conversation) Clone() *Conversation {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	return &out
}
