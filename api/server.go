// Package api provides the HTTP API and dashboard server.
//
// It exposes the loaded thin panel through the portfolio simulator, the
// sector index, and the event study, plus CSV/XLSX exports, SVG charts,
// reference tables, and a WebSocket that announces dataset reloads.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	stdlog "log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/seenimoa/panelstudy/internal/config"
	"github.com/seenimoa/panelstudy/internal/eventstudy"
	"github.com/seenimoa/panelstudy/internal/reference"
	"github.com/seenimoa/panelstudy/internal/store"
	"github.com/seenimoa/panelstudy/web"
)

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	store   *store.Store
	wsHub   *WSHub
	log     zerolog.Logger
	version string
	serveUI bool // when true, serve the embedded dashboard page at /

	evMu     sync.Mutex
	evFor    *store.Dataset
	evCached []eventstudy.Event
}

// Options configures NewServer.
type Options struct {
	Version string
	ServeUI bool
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, st *store.Store, log zerolog.Logger, opts Options) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		cfg:     cfg,
		store:   st,
		wsHub:   NewWSHub(log),
		log:     log.With().Str("component", "api").Logger(),
		version: opts.Version,
		serveUI: opts.ServeUI,
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// NotifyReload announces a freshly loaded dataset to WebSocket clients.
func (s *Server) NotifyReload(ds *store.Dataset) {
	s.wsHub.Broadcast(WSMessage{Type: "dataset_reloaded", Data: datasetInfo(ds)})
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:         s.cfg.API.Addr(),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.wsHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	s.log.Info().Str("addr", httpSrv.Addr).Msg("listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  stdlog.New(s.log, "", 0),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/meta", s.handleMeta)
		r.Get("/tickers/search", s.handleSearchTickers)

		// Views
		r.Get("/portfolio", s.handlePortfolio)
		r.Get("/sectors", s.handleSectors)
		r.Get("/events", s.handleEvents)
		r.Get("/events/individual", s.handleIndividualEvents)

		// Renderings of a view
		r.Get("/{view}/export", s.handleExport)
		r.Get("/{view}/chart.svg", s.handleChart)
		r.Get("/{view}/report", s.handleReport)

		// Reference tables
		r.Get("/reference/forms", s.handleForms)
		r.Get("/reference/etfs", s.handleETFs)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)

		r.Get("/ws", s.handleWebSocket)
	})

	if s.serveUI {
		s.mountUI(r, web.FS())
	}
	return r
}

// mountUI serves the embedded dashboard. Unknown paths fall back to
// index.html.
func (s *Server) mountUI(r chi.Router, static fs.FS) {
	fileServer := http.FileServerFS(static)
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(r.URL.Path, "/")
		if p == "" {
			p = "index.html"
		}
		f, err := static.Open(p)
		if err != nil {
			serveIndexHTML(w, static)
			return
		}
		f.Close()
		if strings.HasSuffix(p, ".html") {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		}
		fileServer.ServeHTTP(w, r)
	})
}

func serveIndexHTML(w http.ResponseWriter, static fs.FS) {
	data, err := fs.ReadFile(static, "index.html")
	if err != nil {
		http.Error(w, "dashboard not available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

// ============================================================
// Response envelope
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("failed to write JSON response")
	}
}

func (s *Server) writeData(w http.ResponseWriter, data any) {
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, APIResponse{Success: false, Error: msg})
}

// fail maps err onto an HTTP status and writes the error envelope.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeError(w, status, err.Error())
}

// ============================================================
// Health / meta / search
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, err := s.store.Dataset()
	s.writeData(w, map[string]any{
		"status":  "ok",
		"version": s.version,
		"loaded":  err == nil,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// DatasetInfo describes the loaded thin panel.
type DatasetInfo struct {
	Path         string       `json:"path"`
	LoadedAt     time.Time    `json:"loaded_at"`
	Rows         int          `json:"rows"`
	Tickers      int          `json:"tickers"`
	Bounds       store.Bounds `json:"bounds"`
	Availability string       `json:"availability"`
}

func datasetInfo(ds *store.Dataset) DatasetInfo {
	return DatasetInfo{
		Path:         ds.Path,
		LoadedAt:     ds.LoadedAt,
		Rows:         len(ds.Rows),
		Tickers:      len(ds.Tickers()),
		Bounds:       ds.Bounds(),
		Availability: ds.Availability(),
	}
}

// MetaResponse lists what the dashboard controls can offer.
type MetaResponse struct {
	Dataset    DatasetInfo            `json:"dataset"`
	Sectors    []string               `json:"sectors"`
	EventTypes []string               `json:"event_types"`
	Limits     config.DashboardConfig `json:"limits"`
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	ds, err := s.store.Dataset()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeData(w, MetaResponse{
		Dataset:    datasetInfo(ds),
		Sectors:    ds.Sectors(),
		EventTypes: eventstudy.Types(s.events(ds)),
		Limits:     s.cfg.Dashboard,
	})
}

func (s *Server) handleSearchTickers(w http.ResponseWriter, r *http.Request) {
	matches, err := s.store.Search(r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if matches == nil {
		matches = []string{}
	}
	s.writeData(w, matches)
}

// events returns the event table of ds, built once per dataset.
func (s *Server) events(ds *store.Dataset) []eventstudy.Event {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	if s.evFor != ds {
		s.evCached = eventstudy.BuildEvents(ds)
		s.evFor = ds
	}
	return s.evCached
}

// ============================================================
// Reference tables
// ============================================================

func (s *Server) handleForms(w http.ResponseWriter, r *http.Request) {
	forms, err := reference.LoadForms(s.cfg.Data.Path(s.cfg.Data.FormsFile))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeData(w, forms)
}

func (s *Server) handleETFs(w http.ResponseWriter, r *http.Request) {
	etfs, err := reference.LoadETFs(s.cfg.Data.Path(s.cfg.Data.ETFsFile))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "ETF table not available; run \"panelstudy reference etfs\"")
		return
	}
	s.writeData(w, etfs)
}
