package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/alcoveai/alcove/chat"
	"github.com/alcoveai/alcove/core"
)

// messagePayload is a transcript message on the wire.
type messagePayload struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// conversationPayload is a conversation with its transcript on the wire.
type conversationPayload struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	ModelID   string           `json:"model_id,omitempty"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
	Messages  []messagePayload `json:"messages"`
}

// memoryPayload is a memory item on the wire. Embeddings stay internal.
type memoryPayload struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// CreateConversationRequest is the payload for creating a conversation.
type CreateConversationRequest struct {
	ModelID string `json:"model_id,omitempty"`
}

// RenameConversationRequest is the payload for renaming a conversation.
type RenameConversationRequest struct {
	Title string `json:"title"`
}

// CreateMemoryRequest is the payload for storing a memory.
type CreateMemoryRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListConversations(w http.ResponseWriter, req *http.Request) {
	list := s.config.Chats.List(req.Context())

	payload := make([]conversationPayload, 0, len(list))
	for _, conv := range list {
		payload = append(payload, toConversationPayload(conv))
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, req *http.Request) {
	var request CreateConversationRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		failureResponse(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	modelID := request.ModelID
	if modelID == "" {
		modelID = s.config.Model
	}

	conv, err := s.config.Chats.Create(req.Context(), modelID)
	if err != nil {
		log.WithError(err).Error("error creating conversation")
		failureResponse(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	respondJSON(w, http.StatusCreated, toConversationPayload(conv))
}

func (s *Server) handleGetConversation(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	conv, err := s.config.Chats.Get(req.Context(), id)
	if errors.Is(err, chat.ErrNotFound) {
		failureResponse(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		log.WithError(err).Error("error loading conversation")
		failureResponse(w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}

	respondJSON(w, http.StatusOK, toConversationPayload(conv))
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	var request RenameConversationRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		failureResponse(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if request.Title == "" {
		failureResponse(w, http.StatusBadRequest, "Title is required")
		return
	}

	err := s.config.Chats.Rename(req.Context(), id, request.Title)
	if errors.Is(err, chat.ErrNotFound) {
		failureResponse(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		log.WithError(err).Error("error renaming conversation")
		failureResponse(w, http.StatusInternalServerError, "Failed to rename conversation")
		return
	}

	conv, err := s.config.Chats.Get(req.Context(), id)
	if err != nil {
		log.WithError(err).Error("error reloading conversation")
		failureResponse(w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}
	respondJSON(w, http.StatusOK, toConversationPayload(conv))
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	err := s.config.Chats.Delete(req.Context(), id)
	if errors.Is(err, chat.ErrNotFound) {
		failureResponse(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		log.WithError(err).Error("error deleting conversation")
		failureResponse(w, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearConversations(w http.ResponseWriter, req *http.Request) {
	if err := s.config.Chats.DeleteAll(req.Context()); err != nil {
		log.WithError(err).Error("error clearing conversations")
		failureResponse(w, http.StatusInternalServerError, "Failed to clear conversations")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMemories(w http.ResponseWriter, req *http.Request) {
	if s.config.Memory == nil {
		failureResponse(w, http.StatusServiceUnavailable, "Memory is disabled")
		return
	}

	items, err := s.config.Memory.List(req.Context())
	if err != nil {
		log.WithError(err).Error("error listing memories")
		failureResponse(w, http.StatusInternalServerError, "Failed to list memories")
		return
	}

	payload := make([]memoryPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, toMemoryPayload(item))
	}
	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, req *http.Request) {
	if s.config.Memory == nil {
		failureResponse(w, http.StatusServiceUnavailable, "Memory is disabled")
		return
	}

	var request CreateMemoryRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		failureResponse(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if request.Text == "" {
		failureResponse(w, http.StatusBadRequest, "Text is required")
		return
	}

	item, err := s.config.Memory.Remember(req.Context(), request.Text)
	if err != nil {
		log.WithError(err).Error("error storing memory")
		failureResponse(w, http.StatusInternalServerError, "Failed to store memory")
		return
	}

	respondJSON(w, http.StatusCreated, toMemoryPayload(item))
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, req *http.Request) {
	if s.config.Memory == nil {
		failureResponse(w, http.StatusServiceUnavailable, "Memory is disabled")
		return
	}

	if err := s.config.Memory.Forget(req.Context(), mux.Vars(req)["id"]); err != nil {
		log.WithError(err).Error("error deleting memory")
		failureResponse(w, http.StatusInternalServerError, "Failed to delete memory")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearMemories(w http.ResponseWriter, req *http.Request) {
	if s.config.Memory == nil {
		failureResponse(w, http.StatusServiceUnavailable, "Memory is disabled")
		return
	}

	if err := s.config.Memory.ForgetAll(req.Context()); err != nil {
		log.WithError(err).Error("error clearing memories")
		failureResponse(w, http.StatusInternalServerError, "Failed to clear memories")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toConversationPayload(conv *core.Conversation) conversationPayload {
	messages := make([]messagePayload, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		messages = append(messages, messagePayload{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}
	return conversationPayload{
		ID:        conv.ID,
		Title:     conv.Title,
		ModelID:   conv.ModelID,
		CreatedAt: conv.CreatedAt.Format(time.RFC3339),
		UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
		Messages:  messages,
	}
}

func toMemoryPayload(item core.MemoryItem) memoryPayload {
	return memoryPayload{
		ID:        item.ID,
		Text:      item.Text,
		CreatedAt: item.CreatedAt.Format(time.RFC3339),
	}
}

// respondJSON writes v as the JSON response body.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("error encoding response")
	}
}

// failureResponse writes the JSON error envelope.
func failureResponse(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]interface{}{
		"code":    code,
		"message": message,
	})
}
