package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tecbitlyfe/bitlyfe/internal/chat"
	"github.com/tecbitlyfe/bitlyfe/internal/dispatch"
	"github.com/tecbitlyfe/bitlyfe/internal/persona"
	"github.com/tecbitlyfe/bitlyfe/internal/provider"
	"github.com/tecbitlyfe/bitlyfe/internal/store"
)

const (
	serviceName  = "bitlyfe"
	maxBodyBytes = 1 << 20 // 1 MB
)

// ProviderStatuser reports the provider chain for /health.
type ProviderStatuser interface {
	Status() []dispatch.ProviderStatus
}

// Options configures optional server behaviour.
type Options struct {
	AuthToken string // empty = no auth required
	StaticDir string // empty = no static files
	Version   string
}

// Server is an HTTP API server that exposes the companion.
type Server struct {
	store     store.Store
	chat      *chat.Service
	personas  *persona.Registry
	providers ProviderStatuser
	opts      Options
	logger    *slog.Logger
}

// NewServer creates a new Server with the given dependencies.
func NewServer(
	st store.Store,
	svc *chat.Service,
	personas *persona.Registry,
	providers ProviderStatuser,
	opts Options,
	logger *slog.Logger,
) *Server {
	return &Server{
		store:     st,
		chat:      svc,
		personas:  personas,
		providers: providers,
		opts:      opts,
		logger:    logger,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// No auth: liveness and public share links.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/share/{code}", s.handleOpenShare)

	mux.HandleFunc("POST /chat", s.auth(s.handleChat))
	mux.HandleFunc("GET /api/conversations", s.auth(s.handleConversations))

	mux.HandleFunc("GET /api/memory/stats", s.auth(s.handleMemoryStats))
	mux.HandleFunc("GET /api/memory/search", s.auth(s.handleSearchQuery))
	mux.HandleFunc("POST /api/memory/search", s.auth(s.handleSearchBody))
	mux.HandleFunc("POST /api/memory/create", s.auth(s.handleCreateMemory))
	mux.HandleFunc("GET /api/memory/list", s.auth(s.handleListMemories))

	mux.HandleFunc("GET /api/persona/list", s.auth(s.handleListPersonas))
	mux.HandleFunc("GET /api/persona/current", s.auth(s.handleGetPersona))
	mux.HandleFunc("POST /api/persona/current", s.auth(s.handleSetPersona))
	mux.HandleFunc("GET /api/persona/player", s.auth(s.handleGetPlayer))
	mux.HandleFunc("POST /api/persona/player", s.auth(s.handleSetPlayer))
	mux.HandleFunc("POST /api/persona/autofill", s.auth(s.handleAutofill))

	mux.HandleFunc("POST /api/share", s.auth(s.handleCreateShare))
	mux.HandleFunc("GET /api/share", s.auth(s.handleListShares))
	mux.HandleFunc("POST /api/quest/complete", s.auth(s.handleQuest))

	mux.Handle("GET /debug/vars", s.auth(expvar.Handler().ServeHTTP))

	if s.opts.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return mux
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when a token is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AuthToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AuthToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// --- health ---

type healthResponse struct {
	Status    string                    `json:"status"`
	Timestamp time.Time                 `json:"timestamp"`
	Service   string                    `json:"service"`
	Version   string                    `json:"version"`
	Database  string                    `json:"database"`
	Providers []dispatch.ProviderStatus `json:"providers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Service:   serviceName,
		Version:   s.opts.Version,
		Database:  "ok",
		Providers: s.providers.Status(),
	}
	status := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health: database ping failed", "error", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, resp)
}

// --- helpers ---

// decodeJSON reads a size-limited JSON body into v, writing 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps a service error onto a status code. Storage and other
// unexpected errors are logged and reported as 500 without detail.
func (s *Server) writeFailure(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, store.ErrInvalidInput), errors.Is(err, dispatch.ErrUnknownProvider):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, provider.ErrMissingCredential):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, dispatch.ErrAllProvidersFailed):
		s.logger.Warn(op, "error", err)
		s.writeError(w, http.StatusBadGateway, "all providers failed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusGatewayTimeout, "request cancelled")
	default:
		s.logger.Error(op, "error", err)
		s.writeError(w, http.StatusInternalServerError, op)
	}
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
