package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kartoza/movie-predict/internal/api"
	"github.com/kartoza/movie-predict/internal/catalog"
	"github.com/kartoza/movie-predict/internal/config"
	"github.com/kartoza/movie-predict/internal/predict"
	"github.com/kartoza/movie-predict/internal/sessions"
	"github.com/kartoza/movie-predict/internal/simulation"
)

//go:embed static/*
var staticFS embed.FS

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	client     predict.Client
	samples    *catalog.Store
	registry   *sessions.Registry
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

// New creates a new Server with all components initialized
func New(cfg config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		logger: zap.L().Named("server"),
		ctx:    ctx,
		cancel: cancel,
	}

	s.client = predict.NewClient(
		predict.WithBaseURL(cfg.Backend.URL),
		predict.WithTimeout(cfg.Backend.Timeout()),
		predict.WithRateLimit(cfg.Backend.RateLimit, cfg.Backend.RateBurst),
	)

	// Sample movies from <data-dir>/samples.db, or the built-in set
	s.samples = catalog.Open(cfg.DataDir, zap.L().Named("catalog"))

	s.registry = sessions.NewRegistry(s.client, zap.L().Named("sessions"),
		simulation.WithQuietPeriod(cfg.Simulation.QuietPeriod()),
		simulation.WithFormatter(simulation.ParseLocale(cfg.Display.Locale)),
		simulation.WithContext(ctx),
	)
	go s.registry.Run(ctx, cfg.Simulation.IdleTimeout())

	// Set up routes
	s.setupRoutes()

	return s, nil
}

// Router exposes the configured routes, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.client, s.samples, s.registry, s.cfg)
	apiHandler.RegisterRoutes(apiRouter)

	// Static frontend files (embedded)
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		s.logger.Warn("could not load embedded static files", zap.Error(err))
		return
	}

	// SPA fallback: serve index.html for any non-API route
	fileServer := http.FileServer(http.FS(staticContent))
	s.router.PathPrefix("/").Handler(spaHandler{staticContent: staticContent, fileServer: fileServer})
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: api.DefaultLongPoll + 35*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("server listening", zap.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Server.Port)))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Cancel in-flight recomputes and close sessions and stores
	s.cancel()
	s.registry.Close()
	if err := s.samples.Close(); err != nil {
		s.logger.Warn("closing sample store", zap.Error(err))
	}

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// spaHandler serves the SPA, falling back to index.html for client-side routing
type spaHandler struct {
	staticContent fs.FS
	fileServer    http.Handler
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "index.html"
	}

	// fs.FS paths must not have a leading slash
	cleanPath := strings.TrimPrefix(path, "/")

	if _, err := fs.Stat(h.staticContent, cleanPath); err != nil {
		r.URL.Path = "/"
	}

	h.fileServer.ServeHTTP(w, r)
}
