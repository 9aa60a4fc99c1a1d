package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jdekker/atblog/internal/blog"
	"github.com/jdekker/atblog/internal/config"
	"github.com/jdekker/atblog/internal/feed"
)

// Server is the HTTP server exposing the blog read API and the RSS feed.
type Server struct {
	cfg        *config.Config
	service    *blog.Service
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new HTTP server backed by the given blog service.
func NewServer(cfg *config.Config, service *blog.Service, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		service: service,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/profile", s.handleProfile)
	mux.HandleFunc("GET /api/posts", s.handleListPosts)
	mux.HandleFunc("GET /api/posts/{rkey}", s.handleGetPost)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/links", s.handleLinks)
	mux.HandleFunc("GET /blog/rss", s.handleRSS)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the server's root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	snap := s.service.Load(r.Context())
	if snap.Identity == nil {
		writeError(w, http.StatusServiceUnavailable, "IdentityUnavailable", "identity has not been resolved yet")
		return
	}
	writeJSON(w, http.StatusOK, snap.Identity)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	snap := s.service.Load(r.Context())
	posts := snap.Collection.Sorted()

	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be a positive integer")
			return
		}
		posts = snap.Collection.Latest(limit)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"posts": posts,
		"total": snap.Collection.Len(),
	})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	rkey := r.PathValue("rkey")
	snap := s.service.Load(r.Context())

	post, ok := snap.Collection.Get(rkey)
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "no such post")
		return
	}

	resp := map[string]any{
		"post":     post,
		"adjacent": snap.Collection.Adjacent(rkey),
	}
	if milestone, ok := blog.GetMilestone(post.Number); ok {
		resp["milestone"] = milestone
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.service.Load(r.Context())
	writeJSON(w, http.StatusOK, snap.Collection.Stats())
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	board, err := s.service.LinkBoard(r.Context())
	if err != nil {
		s.logger.Error("failed to load link board", "error", err)
		writeError(w, http.StatusBadGateway, "UpstreamError", "failed to load link board")
		return
	}
	if board == nil {
		writeError(w, http.StatusNotFound, "NotFound", "no link board published")
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Server) handleRSS(w http.ResponseWriter, r *http.Request) {
	snap := s.service.Load(r.Context())

	rss, err := feed.BuildRSS(snap.Identity, snap.Collection.Sorted(), s.cfg.BaseURL, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to build rss feed", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to build feed")
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "max-age=0, s-maxage=3600")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, rss)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
