// Package server exposes the orchestration engine over HTTP: the chat
// endpoint, persona and provider discovery, conversation search, and the
// memory-store maintenance surface.
package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"github.com/miniagi/miniagi/logging"
	"github.com/miniagi/miniagi/memory"
	"github.com/miniagi/miniagi/model"
	"github.com/miniagi/miniagi/orchestrator"
	"github.com/miniagi/miniagi/persona"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures the HTTP server.
type Options struct {
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string
	// Temperature is reported by the provider-info endpoint.
	Temperature float64
	// ArchiveDir receives gzip NDJSON exports from the archive endpoint.
	ArchiveDir string
	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// Server wires HTTP handlers to the engine's components.
type Server struct {
	orch      *orchestrator.Orchestrator
	store     *memory.Store
	personas  *persona.Registry
	transport model.Transport
	opts      Options
	logger    logging.Logger
}

// New builds a Server.
func New(
	orch *orchestrator.Orchestrator,
	store *memory.Store,
	personas *persona.Registry,
	transport model.Transport,
	optFns ...func(o *Options),
) *Server {
	opts := Options{
		CORSOrigins: []string{"*"},
		Temperature: 0.2,
		ArchiveDir:  "./data/archives",
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{
		orch:      orch,
		store:     store,
		personas:  personas,
		transport: transport,
		opts:      opts,
		logger:    opts.Logger,
	}
}

// Router assembles the chi router with global middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(CORS(s.opts.CORSOrigins))

	r.Post("/chat", s.handleChat)
	r.Get("/health", s.handleHealth)
	r.Get("/llm/info", s.handleLLMInfo)
	r.Get("/personas", s.handlePersonas)
	r.Get("/conversations/search", s.handleSearch)
	r.Delete("/sessions/cleanup", s.handleCleanup)
	r.Get("/db/stats", s.handleDBStats)
	r.Post("/db/optimize", s.handleDBOptimize)
	r.Post("/db/archive", s.handleDBArchive)

	return r
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.orch.Run(r.Context(), orchestrator.Request{
		Input:          req.LastUserMessage(),
		SystemOverride: req.SystemInstruction(),
		SessionID:      req.SessionID,
		UserID:         req.UserID,
		Persona:        req.Persona,
		MaxSteps:       req.MaxSteps,
	})
	if err != nil {
		s.logger.Error("orchestration failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "orchestration failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLLMInfo(w http.ResponseWriter, _ *http.Request) {
	info := s.transport.Info()
	writeJSON(w, http.StatusOK, map[string]string{
		"provider":    info.Provider,
		"model":       info.Name,
		"temperature": strconv.FormatFloat(s.opts.Temperature, 'g', -1, 64),
	})
}

func (s *Server) handlePersonas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"personas": s.personas.Available()})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter 'q'")
		return
	}
	limit := queryInt(r, "limit", 20)

	turns, err := s.store.Search(r.Context(), q,
		r.URL.Query().Get("user_id"), r.URL.Query().Get("session_id"), limit)
	if err != nil {
		s.logger.Error("conversation search failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if turns == nil {
		turns = []memory.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": turns, "count": len(turns)})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	if days <= 0 {
		writeError(w, http.StatusBadRequest, "'days' must be positive")
		return
	}

	deleted, err := s.store.CleanupOlderThan(r.Context(), days)
	if err != nil {
		s.logger.Error("session cleanup failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions_deleted": deleted, "days": days})
}

func (s *Server) handleDBStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("database stats failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDBOptimize(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Optimize(r.Context()); err != nil {
		s.logger.Error("database optimize failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "optimize failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "optimized"})
}

func (s *Server) handleDBArchive(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 90)
	if days <= 0 {
		writeError(w, http.StatusBadRequest, "'days' must be positive")
		return
	}

	result, err := s.store.ArchiveOlderThan(r.Context(), days, s.opts.ArchiveDir)
	if err != nil {
		s.logger.Error("archive failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "archive failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
