// Package api exposes the inbox over HTTP: a ranked message listing,
// mutation endpoints, preference endpoints, daemon status, and metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"unibox/internal/metrics"
	"unibox/internal/rank"
	"unibox/internal/store"
	"unibox/internal/syncer"
)

// Server is the HTTP front of the sync daemon.
type Server struct {
	store     *store.Store
	filters   *store.Filters
	theme     *store.Theme
	coord     *syncer.Coordinator
	engine    *syncer.Engine
	collector *metrics.Collector
	logger    *slog.Logger

	srv *http.Server
}

// New creates the API server listening on the given port.
func New(port int, st *store.Store, filters *store.Filters, theme *store.Theme, coord *syncer.Coordinator, engine *syncer.Engine, collector *metrics.Collector, logger *slog.Logger) *Server {
	s := &Server{
		store:     st,
		filters:   filters,
		theme:     theme,
		coord:     coord,
		engine:    engine,
		collector: collector,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/messages", s.handleListMessages)
	mux.HandleFunc("POST /v1/messages/{id}/read", s.handleMarkRead)
	mux.HandleFunc("POST /v1/messages/{id}/archive", s.handleArchive)
	mux.HandleFunc("DELETE /v1/messages/{id}", s.handleDelete)
	mux.HandleFunc("GET /v1/filters", s.handleGetFilters)
	mux.HandleFunc("PUT /v1/filters", s.handlePutFilters)
	mux.HandleFunc("GET /v1/theme", s.handleGetTheme)
	mux.HandleFunc("PUT /v1/theme", s.handlePutTheme)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if collector != nil {
		mux.HandleFunc("GET /metrics", collector.Handler())
	}

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the underlying handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

type listResponse struct {
	Messages []messageView `json:"messages"`
	Total    int           `json:"total"`
	Unread   int           `json:"unread"`
	Mode     string        `json:"mode"`
	HideRead bool          `json:"hideRead"`
}

type messageView struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Preview   string    `json:"preview"`
	Timestamp time.Time `json:"timestamp"`
	Priority  float64   `json:"priority"`
	IsRead    bool      `json:"isRead"`
	IsUrgent  bool      `json:"isUrgent,omitempty"`
	SenderVIP bool      `json:"senderVIP,omitempty"`
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	mode := s.filters.Mode()
	if q := r.URL.Query().Get("mode"); q != "" {
		parsed, err := rank.ParseMode(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = parsed
	}

	hideRead := s.filters.HideRead()
	if q := r.URL.Query().Get("hide_read"); q != "" {
		hideRead = q == "true" || q == "1"
	}

	all := s.store.All()
	ranked := rank.Rank(all, mode)

	views := make([]messageView, 0, len(ranked))
	for _, m := range ranked {
		if hideRead && m.IsRead {
			continue
		}
		views = append(views, messageView{
			ID:        m.ID,
			Source:    string(m.Source),
			Sender:    m.Sender,
			Subject:   m.Subject,
			Preview:   m.Preview,
			Timestamp: m.Timestamp,
			Priority:  rank.ClampPriority(m.Priority),
			IsRead:    m.IsRead,
			IsUrgent:  m.IsUrgent,
			SenderVIP: m.SenderVIP,
		})
	}

	writeJSON(w, http.StatusOK, listResponse{
		Messages: views,
		Total:    len(all),
		Unread:   s.store.Unread(),
		Mode:     string(mode),
		HideRead: hideRead,
	})
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, apply func(context.Context, string)) {
	id := r.PathValue("id")
	if !s.store.Has(id) {
		writeError(w, http.StatusNotFound, "unknown message id")
		return
	}
	apply(r.Context(), id)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "state": "pending"})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.coord.MarkRead)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.coord.Archive)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.coord.Delete)
}

type filtersView struct {
	HideRead bool   `json:"hideRead"`
	Mode     string `json:"mode"`
}

func (s *Server) handleGetFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, filtersView{
		HideRead: s.filters.HideRead(),
		Mode:     string(s.filters.Mode()),
	})
}

func (s *Server) handlePutFilters(w http.ResponseWriter, r *http.Request) {
	var req filtersView
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	mode, err := rank.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.filters.SetHideRead(req.HideRead)
	s.filters.SetMode(mode)
	s.handleGetFilters(w, r)
}

type themeView struct {
	Mode string `json:"mode"`
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, themeView{Mode: s.theme.Mode()})
}

func (s *Server) handlePutTheme(w http.ResponseWriter, r *http.Request) {
	var req themeView
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	switch req.Mode {
	case "light", "dark", "system":
	default:
		writeError(w, http.StatusBadRequest, "unknown theme mode")
		return
	}
	s.theme.SetMode(req.Mode)
	s.handleGetTheme(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"feed":   string(s.engine.FeedStatus()),
		"total":  s.store.Len(),
		"unread": s.store.Unread(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
