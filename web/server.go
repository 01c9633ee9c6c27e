// Package web is the dashboard: a JSON API over the store and the config
// file, a charts page, and a trigger for background collection runs.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/richardnixondev/reddit-image-collect/collector"
	"github.com/richardnixondev/reddit-image-collect/config"
	"github.com/richardnixondev/reddit-image-collect/store"
)

// Server owns the HTTP surface and the state of the background collection
// job. The collector itself stays a pure function; "running or idle" is a
// job record here, not a global.
type Server struct {
	manager *config.Manager
	store   *store.Store

	job jobState
}

type jobState struct {
	mu         sync.Mutex
	running    bool
	startedAt  time.Time
	finishedAt *time.Time
	lastStats  *collector.Stats
	lastError  string
}

func NewServer(manager *config.Manager, st *store.Store) *Server {
	return &Server{manager: manager, store: st}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleCharts)

	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("GET /api/subreddits", s.handleListSubreddits)
	mux.HandleFunc("POST /api/subreddits", s.handleAddSubreddit)
	mux.HandleFunc("DELETE /api/subreddits/{name}", s.handleDeleteSubreddit)
	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("POST /api/users", s.handleAddUser)
	mux.HandleFunc("DELETE /api/users/{name}", s.handleDeleteUser)

	mux.HandleFunc("GET /api/blacklist", s.handleGetBlacklist)
	mux.HandleFunc("POST /api/blacklist/{kind}", s.handleAddBlacklist)
	mux.HandleFunc("DELETE /api/blacklist/{kind}/{value}", s.handleDeleteBlacklist)

	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/media", s.handleMedia)
	mux.HandleFunc("GET /api/recent", s.handleRecent)
	mux.HandleFunc("DELETE /api/media/{id}", s.handleDeleteMedia)
	mux.HandleFunc("GET /api/thumbnail/{id}", s.handleThumbnail)

	mux.HandleFunc("GET /api/favorites", s.handleListFavorites)
	mux.HandleFunc("POST /api/favorites/{id}", s.handleAddFavorite)
	mux.HandleFunc("DELETE /api/favorites/{id}", s.handleDeleteFavorite)

	mux.HandleFunc("POST /api/run", s.handleStartRun)
	mux.HandleFunc("GET /api/run", s.handleRunStatus)

	if cfg, err := s.manager.Current(); err == nil {
		fileServer := http.FileServer(http.Dir(cfg.Download.OutputDir))
		mux.Handle("GET /media/", http.StripPrefix("/media/", fileServer))
	}

	return mux
}

// ListenAndServe blocks serving the dashboard on addr.
func (s *Server) ListenAndServe(addr string) error {
	log.Info().Str("addr", addr).Msg("dashboard listening")
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

// RunStatus is the job record reported by GET /api/run.
type RunStatus struct {
	Running    bool             `json:"running"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	LastStats  *collector.Stats `json:"last_stats,omitempty"`
	LastError  string           `json:"last_error,omitempty"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	s.job.mu.Lock()
	if s.job.running {
		s.job.mu.Unlock()
		writeError(w, http.StatusConflict, "collection already running")
		return
	}
	s.job.running = true
	s.job.startedAt = time.Now().UTC()
	s.job.finishedAt = nil
	s.job.lastError = ""
	s.job.mu.Unlock()

	go s.collect()

	writeJSONStatus(w, http.StatusAccepted, map[string]string{"message": "collection started"})
}

func (s *Server) collect() {
	cfg, err := s.manager.Current()
	if err != nil {
		s.finishRun(nil, err)
		return
	}
	stats, err := collector.New(cfg, s.store).Run(context.Background())
	s.finishRun(&stats, err)
}

func (s *Server) finishRun(stats *collector.Stats, err error) {
	now := time.Now().UTC()
	s.job.mu.Lock()
	defer s.job.mu.Unlock()
	s.job.running = false
	s.job.finishedAt = &now
	s.job.lastStats = stats
	if err != nil {
		s.job.lastError = err.Error()
		log.Err(err).Msg("background collection failed")
	}
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	s.job.mu.Lock()
	status := RunStatus{
		Running:    s.job.running,
		FinishedAt: s.job.finishedAt,
		LastStats:  s.job.lastStats,
		LastError:  s.job.lastError,
	}
	if s.job.running || s.job.lastStats != nil || s.job.lastError != "" {
		started := s.job.startedAt
		status.StartedAt = &started
	}
	s.job.mu.Unlock()
	writeJSON(w, status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("encoding response failed")
	}
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": message})
}
