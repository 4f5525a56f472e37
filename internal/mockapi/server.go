// Package mockapi serves a local stand-in for the Devin session API.
//
// Sessions are kept in memory. A created or messaged session reports
// "running" until its completion delay has passed; the next read after that
// appends the agent's reply followed by the "sleep" token and marks the
// session completed. Completion is evaluated on read, so no timers outlive a
// request and tests can drive time with [WithClock].
package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"devinflow/internal/devin"
)

// DefaultCompletionDelay is how long a session stays running.
const DefaultCompletionDelay = 2 * time.Second

// sleepToken is what the agent writes once it has nothing more to do.
const sleepToken = "sleep"

// Responder produces the agent reply for a prompt or follow-up message.
// followUp is true for messages sent to an existing session.
type Responder func(message string, followUp bool) string

// DefaultResponder replies the way the hosted mock did.
func DefaultResponder(message string, followUp bool) string {
	if followUp {
		return "Handoff completed: " + message
	}
	return "Main task completed successfully"
}

// Config holds the server settings.
type Config struct {
	// APIKey, when set, is the only bearer token accepted. Any non-empty
	// token is accepted otherwise.
	APIKey string

	// CompletionDelay is how long a session runs before completing. Zero
	// completes on the first read.
	CompletionDelay time.Duration
}

type mockSession struct {
	data       devin.Session
	completeAt time.Time
	reply      string
	pending    bool
}

// Server is the mock session API.
type Server struct {
	router    chi.Router
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	responder Responder

	mu       sync.Mutex
	sessions map[string]*mockSession
	msgSeq   int
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

// WithResponder replaces [DefaultResponder].
func WithResponder(r Responder) ServerOption {
	return func(s *Server) {
		s.responder = r
	}
}

// New creates a mock server.
func New(cfg Config, opts ...ServerOption) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    slog.Default(),
		now:       time.Now,
		responder: DefaultResponder,
		sessions:  make(map[string]*mockSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/sessions", s.handleCreateSession)
		r.Post("/sessions/{sessionID}/messages", s.handleSendMessage)
		r.Get("/session/{sessionID}", s.handleGetSession)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Debug("mock api request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" || (s.cfg.APIKey != "" && token != s.cfg.APIKey) {
			respondError(w, http.StatusUnauthorized, "Missing or invalid authorization header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.sessionCount(),
		"timestamp":       s.timestamp(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req devin.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	title := req.Title
	if title == "" {
		title = "Session for: " + truncate(req.Prompt, 50) + "..."
	}

	now := s.timestamp()
	s.mu.Lock()
	id := "devin-" + uuid.NewString()
	sess := &mockSession{
		data: devin.Session{
			SessionID:  id,
			Status:     "running",
			StatusEnum: "IN_PROGRESS",
			Title:      title,
			CreatedAt:  now,
			UpdatedAt:  now,
			PlaybookID: req.PlaybookID,
			Tags:       []string{"api", "mock"},
		},
	}
	s.appendLocked(sess, devin.MessageTypeUser, req.Prompt)
	s.scheduleLocked(sess, s.responder(req.Prompt, false))
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Info("mock session created", slog.String("session_id", id))
	respondJSON(w, http.StatusOK, devin.CreatedSession{
		SessionID:  id,
		URL:        devin.SessionURL(id),
		Status:     "running",
		Title:      title,
		CreatedAt:  now,
		PlaybookID: req.PlaybookID,
		IsNew:      true,
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req devin.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	msgID := s.appendLocked(sess, devin.MessageTypeUser, req.Message)
	sess.data.Status = "running"
	sess.data.StatusEnum = "IN_PROGRESS"
	s.scheduleLocked(sess, s.responder(req.Message, true))
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message_id": msgID,
		"session_id": id,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}
	s.completeIfDueLocked(sess)
	snapshot := sess.data
	snapshot.Messages = append([]devin.Message(nil), sess.data.Messages...)
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, snapshot)
}

// sessionCount returns the number of sessions created so far.
func (s *Server) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) scheduleLocked(sess *mockSession, reply string) {
	sess.reply = reply
	sess.pending = true
	sess.completeAt = s.now().Add(s.cfg.CompletionDelay)
}

func (s *Server) completeIfDueLocked(sess *mockSession) {
	if !sess.pending || s.now().Before(sess.completeAt) {
		return
	}
	sess.pending = false
	s.appendLocked(sess, devin.MessageTypeDevin, sess.reply)
	s.appendLocked(sess, devin.MessageTypeDevin, sleepToken)
	sess.data.Status = "completed"
	sess.data.StatusEnum = "COMPLETED"
}

func (s *Server) appendLocked(sess *mockSession, msgType, text string) string {
	s.msgSeq++
	id := fmt.Sprintf("msg-%d", s.msgSeq)
	now := s.timestamp()
	sess.data.Messages = append(sess.data.Messages, devin.Message{
		Type:      msgType,
		Message:   text,
		Timestamp: now,
		EventID:   id,
	})
	sess.data.UpdatedAt = now
	return id
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("starting mock session API", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
