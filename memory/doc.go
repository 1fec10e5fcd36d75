// Package memory provides durable long-term memory for the assistant.
//
// A memory item is a short piece of text worth keeping across sessions
// ("the wifi password is hunter2"), together with its embedding. Items are
// persisted first and indexed second, so the store is always the source of
// truth and the index can be rebuilt from it at any time.
//
// Architecture:
//   - Encoder: Text-to-vector conversion (deterministic hashing encoder
//     by default, with an optional caching decorator)
//   - Index: Similarity search over embeddings (exact brute-force scan or
//     an embedded vector database)
//   - Store: Persistence backend for the items themselves
//   - Manager: Orchestrates remember, retrieve, and forget operations
//
// Integration:
//   - Before generation: Retrieve loads memories relevant to the user's turn
//   - The engine injects retrieved texts into the system prompt as hints
//
// Retrieval is best-effort: a memory hint can inform a reply but never
// constrains it, and an unavailable memory subsystem degrades to answering
// without hints rather than failing the turn.
package memory
