// Package server exposes the assistant over HTTP: a websocket for
// streaming chat plus a small REST API for transcripts and memories.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/alcoveai/alcove/chat"
	"github.com/alcoveai/alcove/engine"
	"github.com/alcoveai/alcove/memory"
)

// Config holds everything the server serves.
type Config struct {
	// Engine runs assistant turns. Required.
	Engine *engine.Engine

	// Chats manages conversations. Required.
	Chats *chat.Manager

	// Memory manages long-term memories. Optional; nil disables the
	// memory endpoints.
	Memory memory.Manager

	// Model is the model ID given to newly created conversations.
	Model string

	// SystemPrompt overrides the engine's default prompt when set.
	SystemPrompt string

	// MaxTokens caps response length; 0 uses the engine default.
	MaxTokens int64

	// Temperature is forwarded to generation when > 0.
	Temperature float64

	// TopP is forwarded to generation when > 0.
	TopP float64
}

// Server serves the chat websocket and the REST API.
type Server struct {
	config   Config
	router   *mux.Router
	metrics  *metrics
	upgrader websocket.Upgrader
}

// New creates a server. It does not start listening.
func New(config Config) *Server {
	s := &Server{
		config:  config,
		metrics: newMetrics(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Single-user local deployment; the UI may load from
				// any local port.
				return true
			},
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebsocket)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations", s.handleCreateConversation).Methods(http.MethodPost)
	api.HandleFunc("/conversations", s.handleClearConversations).Methods(http.MethodDelete)
	api.HandleFunc("/conversations/{id}", s.handleGetConversation).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}", s.handleRenameConversation).Methods(http.MethodPatch)
	api.HandleFunc("/conversations/{id}", s.handleDeleteConversation).Methods(http.MethodDelete)
	api.HandleFunc("/memories", s.handleListMemories).Methods(http.MethodGet)
	api.HandleFunc("/memories", s.handleCreateMemory).Methods(http.MethodPost)
	api.HandleFunc("/memories", s.handleClearMemories).Methods(http.MethodDelete)
	api.HandleFunc("/memories/{id}", s.handleDeleteMemory).Methods(http.MethodDelete)

	return r
}

// Handler returns the server's HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	log.WithField("addr", addr).Info("alcove server listening")
	return http.ListenAndServe(addr, s.router)
}
