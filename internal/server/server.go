// Package server exposes the headline feeds, search and favorites over a
// local JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bryan-buckman/headlines/internal/favorites"
	"github.com/bryan-buckman/headlines/internal/feed"
	"github.com/bryan-buckman/headlines/internal/model"
	"github.com/bryan-buckman/headlines/internal/opml"
	"github.com/bryan-buckman/headlines/internal/preferences"
	"github.com/bryan-buckman/headlines/internal/search"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxBodyBytes = 1 << 20
	maxWait      = 30 * time.Second
)

// Deps are the components the server routes requests to.
type Deps struct {
	Headlines *feed.Engine
	Search    *feed.Engine
	Searcher  *search.Controller
	Favorites *favorites.Synchronizer
	Prefs     *preferences.Service
	Logger    *slog.Logger
}

// Server is the main HTTP server.
type Server struct {
	headlines *feed.Engine
	search    *feed.Engine
	searcher  *search.Controller
	favorites *favorites.Synchronizer
	prefs     *preferences.Service
	logger    *slog.Logger
	router    chi.Router
	http      *http.Server
}

// New creates a new server.
func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		headlines: d.Headlines,
		search:    d.Search,
		searcher:  d.Searcher,
		favorites: d.Favorites,
		prefs:     d.Prefs,
		logger:    logger.With("component", "server"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/feed", func(r chi.Router) {
			r.Get("/", s.handleSnapshot(s.headlines))
			r.Post("/", s.handleStartFeed)
			r.Post("/more", s.handleMore(s.headlines))
			r.Post("/retry", s.handleRetry(s.headlines))
			r.Get("/events", s.handleFeedEvents(s.headlines))
		})

		r.Route("/search", func(r chi.Router) {
			r.Get("/", s.handleSearchSnapshot)
			r.Put("/", s.handleUpdateQuery)
			r.Post("/", s.handleSubmitQuery)
			r.Post("/more", s.handleMore(s.search))
			r.Post("/retry", s.handleRetry(s.search))
			r.Get("/events", s.handleFeedEvents(s.search))
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", s.handleListFavorites)
			r.Post("/", s.handleAddFavorite)
			r.Delete("/", s.handleRemoveFavorite)
			r.Post("/toggle", s.handleToggleFavorite)
			r.Get("/status", s.handleFavoriteStatus)
			r.Get("/events", s.handleFavoriteEvents)
			r.Get("/export-opml", s.handleExportOPML)
			r.Post("/import-opml", s.handleImportOPML)
		})

		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleSaveSettings)
		r.Get("/countries", s.handleCountries)
		r.Get("/categories", s.handleCategories)
	})

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server starting", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// --- Feed handlers ---

func (s *Server) handleSnapshot(e *feed.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.snapshot(r, e))
	}
}

// snapshot returns the engine state; with ?wait=true it first waits for an
// in-flight load to finish.
func (s *Server) snapshot(r *http.Request, e *feed.Engine) feed.Snapshot {
	if r.URL.Query().Get("wait") != "true" {
		return e.Snapshot()
	}
	ctx, cancel := context.WithTimeout(r.Context(), maxWait)
	defer cancel()
	snap, err := e.WaitIdle(ctx)
	if err != nil {
		return e.Snapshot()
	}
	return snap
}

func (s *Server) handleStartFeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Country  string `json:"country"`
		Category string `json:"category"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	snap := s.headlines.Invalidate(model.Filters{Country: req.Country, Category: req.Category})
	writeJSON(w, http.StatusAccepted, snap)
}

func (s *Server) handleMore(e *feed.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accepted := e.RequestMore()
		writeJSON(w, http.StatusOK, map[string]any{"accepted": accepted, "feed": e.Snapshot()})
	}
}

func (s *Server) handleRetry(e *feed.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accepted := e.Retry()
		writeJSON(w, http.StatusOK, map[string]any{"accepted": accepted, "feed": e.Snapshot()})
	}
}

func (s *Server) handleFeedEvents(e *feed.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, unsubscribe := e.Subscribe()
		defer unsubscribe()
		stream(w, r, "snapshot", ch)
	}
}

// --- Search handlers ---

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleSearchSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"query": s.searcher.Query(),
		"feed":  s.snapshot(r, s.search),
	})
}

func (s *Server) handleUpdateQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.searcher.UpdateQuery(req.Query)
	writeJSON(w, http.StatusOK, map[string]string{"query": s.searcher.Query()})
}

func (s *Server) handleSubmitQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.searcher.UpdateQuery(req.Query)
	s.searcher.SubmitQuery(req.Query)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled", "query": req.Query})
}

// --- Favorites handlers ---

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	all, err := s.favorites.All(r.Context())
	if err != nil {
		s.fail(w, "list favorites", err)
		return
	}
	if all == nil {
		all = []model.Article{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var a model.Article
	if !decodeJSON(w, r, &a) {
		return
	}
	if err := s.favorites.Add(r.Context(), a); err != nil {
		s.fail(w, "add favorite", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"favorite": true, "title": a.Title})
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	var a model.Article
	if !decodeJSON(w, r, &a) {
		return
	}
	on, err := s.favorites.Toggle(r.Context(), a)
	if err != nil {
		s.fail(w, "toggle favorite", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorite": on, "title": a.Title})
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	if err := s.favorites.RemoveKey(r.Context(), title); err != nil {
		s.fail(w, "remove favorite", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorite": false, "title": title})
}

func (s *Server) handleFavoriteStatus(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	on, err := s.favorites.Contains(r.Context(), model.Article{Title: title})
	if err != nil {
		s.fail(w, "favorite status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"favorite": on, "title": title})
}

func (s *Server) handleFavoriteEvents(w http.ResponseWriter, r *http.Request) {
	if title := r.URL.Query().Get("title"); title != "" {
		stream(w, r, "favorite", s.favorites.IsFavorite(r.Context(), model.Article{Title: title}))
		return
	}
	stream(w, r, "favorites", s.favorites.List(r.Context()))
}

func (s *Server) handleImportOPML(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("opml")
		if err != nil {
			http.Error(w, "No file provided", http.StatusBadRequest)
			return
		}
		defer file.Close()
		src = file
	}

	articles, err := opml.Parse(src)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse OPML: %v", err), http.StatusBadRequest)
		return
	}

	imported := 0
	for _, a := range articles {
		if err := s.favorites.Add(r.Context(), a); err != nil {
			s.logger.WarnContext(r.Context(), "import favorite failed", "title", a.Title, "error", err)
			continue
		}
		imported++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"imported": imported,
		"total":    len(articles),
	})
}

func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	all, err := s.favorites.All(r.Context())
	if err != nil {
		s.fail(w, "export favorites", err)
		return
	}
	data, err := opml.Export("Headlines Favorites", all)
	if err != nil {
		s.fail(w, "export favorites", err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", "attachment; filename=headlines-favorites.opml")
	w.Write(data)
}

// --- Settings handlers ---

type settingsResponse struct {
	Theme        preferences.Theme    `json:"theme"`
	ThemeName    string               `json:"theme_name"`
	Language     preferences.Language `json:"language"`
	LanguageCode string               `json:"language_code"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	resp, err := s.settings(r.Context())
	if err != nil {
		s.fail(w, "get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme    *int `json:"theme"`
		Language *int `json:"language"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	if req.Theme != nil {
		if err := s.prefs.SetTheme(ctx, preferences.Theme(*req.Theme)); err != nil {
			s.fail(w, "save theme", err)
			return
		}
	}
	if req.Language != nil {
		if err := s.prefs.SetLanguage(ctx, preferences.Language(*req.Language)); err != nil {
			s.fail(w, "save language", err)
			return
		}
	}
	resp, err := s.settings(ctx)
	if err != nil {
		s.fail(w, "get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) settings(ctx context.Context) (settingsResponse, error) {
	theme, err := s.prefs.Theme(ctx)
	if err != nil {
		return settingsResponse{}, err
	}
	lang, err := s.prefs.Language(ctx)
	if err != nil {
		return settingsResponse{}, err
	}
	return settingsResponse{
		Theme:        theme,
		ThemeName:    theme.String(),
		Language:     lang,
		LanguageCode: lang.Code(),
	}, nil
}

func (s *Server) handleCountries(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Countries)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Categories)
}

// --- Helpers ---

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, favorites.ErrEmptyKey), errors.Is(err, preferences.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error(op+" failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// stream writes each value from ch as a server-sent event until ch closes
// or the client goes away.
func stream[T any](w http.ResponseWriter, r *http.Request, event string, ch <-chan T) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
