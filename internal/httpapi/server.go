// Package httpapi exposes the agent over HTTP: one-shot query and chat
// endpoints plus a cookie-addressed SSE stream for incremental answers.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bull/wikiquery/internal/agent"
	"github.com/bull/wikiquery/internal/config"
)

// sessionCookie names the cookie that ties a created streaming chat to its
// later SSE request.
const sessionCookie = "session_id"

// ChatAgent is the agent capability the server fronts.
type ChatAgent interface {
	AnswerQuery(ctx context.Context, question string) (agent.ChatEntry, error)
	Chat(ctx context.Context, chat []agent.ChatEntry) (agent.ChatEntry, error)
	ChatStreaming(ctx context.Context, chat []agent.ChatEntry) iter.Seq2[agent.ChatEntry, error]
}

// StatusReporter exposes corpus size for the health endpoint.
type StatusReporter interface {
	RowCount() int
}

// Server routes HTTP requests to the agent.
type Server struct {
	agent          ChatAgent
	corpus         StatusReporter
	sessions       *sessionStore
	allowedOrigins []string
	logger         *slog.Logger
}

// New creates a Server. allowedOrigins come from cfg; an empty list disables
// CORS headers entirely.
func New(chatAgent ChatAgent, corpus StatusReporter, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		agent:          chatAgent,
		corpus:         corpus,
		sessions:       newSessionStore(),
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}
}

// Handler builds the route table. Mount it directly on http.Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /query/{query}", s.handleQuery)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /create_streaming_chat", s.handleCreateStreamingChat)
	mux.HandleFunc("GET /get_streaming_chat_response", s.handleStreamingChatResponse)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.withCORS(mux)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	question := r.PathValue("query")

	entry, err := s.agent.AnswerQuery(r.Context(), question)
	if err != nil {
		s.logger.Error("Query failed", "question", question, "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	chat, ok := decodeChat(w, r, s.logger)
	if !ok {
		return
	}

	entry, err := s.agent.Chat(r.Context(), chat)
	if err != nil {
		s.logger.Error("Chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleCreateStreamingChat stores the submitted history under a fresh
// session id and hands that id back as a cookie. The stream itself is pulled
// from handleStreamingChatResponse.
func (s *Server) handleCreateStreamingChat(w http.ResponseWriter, r *http.Request) {
	chat, ok := decodeChat(w, r, s.logger)
	if !ok {
		return
	}

	sessionID := uuid.NewString()
	s.sessions.put(sessionID, chat)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		SameSite: http.SameSiteNoneMode,
		Secure:   true,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStreamingChatResponse(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing session cookie")
		return
	}
	chat, ok := s.sessions.get(cookie.Value)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for entry, err := range s.agent.ChatStreaming(r.Context(), chat) {
		if err != nil {
			// Headers are already out; all we can do is log and close.
			s.logger.Error("Streaming chat failed", "error", err)
			return
		}
		if r.Context().Err() != nil {
			s.logger.Debug("Client disconnected from stream")
			return
		}
		if writeErr := writeSSE(w, entry); writeErr != nil {
			s.logger.Debug("Stream write failed", "error", writeErr)
			return
		}
		flusher.Flush()
	}
}

func decodeChat(w http.ResponseWriter, r *http.Request, logger *slog.Logger) ([]agent.ChatEntry, bool) {
	var chat []agent.ChatEntry
	if err := json.NewDecoder(r.Body).Decode(&chat); err != nil {
		logger.Error("Invalid chat payload", "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"status_code": 10422,
			"message":     strings.ReplaceAll(err.Error(), "\n", " "),
			"data":        nil,
		})
		return nil, false
	}
	return chat, true
}

// writeSSE frames one entry the way EventSource expects: event name, a fixed
// message id, the client retry interval in milliseconds, then the JSON body.
func writeSSE(w http.ResponseWriter, entry agent.ChatEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode sse entry: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: message\nid: message_id\nretry: 10000\ndata: %s\n\n", data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
