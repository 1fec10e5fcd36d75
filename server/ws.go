package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/alcoveai/alcove/engine"
)

// clientFrame is what the client sends over /ws.
type clientFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
}

// serverFrame is what the server sends back: "chunk" frames while the
// reply streams, then exactly one "done" or "error" frame.
type serverFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
	Error          string `json:"error,omitempty"`
}

// handleWebsocket runs one chat session. Frames are handled one at a time,
// so a connection never runs concurrent turns in a conversation, and all
// writes happen from this goroutine.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("Failed to upgrade websocket connection")
		return
	}
	defer conn.Close()

	s.metrics.WebsocketConnections.Inc()
	defer s.metrics.WebsocketConnections.Dec()

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("websocket closed unexpectedly")
			}
			return
		}

		switch frame.Type {
		case "chat":
			s.handleChatFrame(r.Context(), conn, frame)
		default:
			s.writeError(conn, "", fmt.Sprintf("unknown frame type %q", frame.Type))
		}
	}
}

// handleChatFrame runs one turn and streams its reply back.
func (s *Server) handleChatFrame(ctx context.Context, conn *websocket.Conn, frame clientFrame) {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conversationID := frame.ConversationID
	if conversationID == "" {
		conv, err := s.config.Chats.Create(ctx, s.config.Model)
		if err != nil {
			log.WithError(err).Error("error creating conversation")
			s.metrics.RecordTurn("error", time.Since(start))
			s.writeError(conn, "", "Failed to create conversation")
			return
		}
		conversationID = conv.ID
	}

	var writeErr error
	output, err := s.config.Engine.Respond(ctx, &engine.Input{
		ConversationID: conversationID,
		UserText:       frame.Content,
		SystemPrompt:   s.config.SystemPrompt,
		MaxTokens:      s.config.MaxTokens,
		Temperature:    s.config.Temperature,
		TopP:           s.config.TopP,
		StreamCallback: func(chunk string, done bool) {
			if done || writeErr != nil {
				return
			}
			writeErr = conn.WriteJSON(serverFrame{
				Type:           "chunk",
				ConversationID: conversationID,
				Content:        chunk,
			})
			if writeErr != nil {
				// Client went away; stop generating and keep what
				// already streamed.
				cancel()
			}
		},
	})

	if err != nil {
		if ctx.Err() != nil {
			s.metrics.RecordTurn("canceled", time.Since(start))
		} else {
			s.metrics.RecordTurn("error", time.Since(start))
		}
		message := err.Error()
		if output != nil && output.Error != nil {
			message = output.Error.Error()
		}
		s.writeError(conn, conversationID, message)
		return
	}
	if writeErr != nil {
		log.WithError(writeErr).Warn("websocket write failed mid-stream")
		s.metrics.RecordTurn("canceled", time.Since(start))
		return
	}

	s.metrics.RecordTurn("ok", time.Since(start))
	if err := conn.WriteJSON(serverFrame{Type: "done", ConversationID: conversationID}); err != nil {
		log.WithError(err).Warn("failed to write done frame")
	}
}

func (s *Server) writeError(conn *websocket.Conn, conversationID, message string) {
	err := conn.WriteJSON(serverFrame{
		Type:           "error",
		ConversationID: conversationID,
		Error:          message,
	})
	if err != nil {
		log.WithError(err).Debug("failed to write error frame")
	}
}
