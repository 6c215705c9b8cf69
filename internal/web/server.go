// Package web serves the listening statistics as a JSON API.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/justestif/go-spotify-listening-stats/internal/dataset"
	"github.com/justestif/go-spotify-listening-stats/internal/genres"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8080"

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "listening_stats_http_requests_total", Help: "HTTP requests by route and status"},
		[]string{"method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listening_stats_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration)
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr    string
	Dataset *dataset.Dataset
	Genres  *genres.Service
	Logger  logrus.FieldLogger
}

// Server is the HTTP server for the statistics API.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	logger   logrus.FieldLogger
}

// NewServer creates a new web server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	router := chi.NewRouter()

	s := &Server{
		router:   router,
		handlers: NewHandlers(cfg.Dataset, cfg.Genres, cfg.Logger),
		logger:   cfg.Logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // enrichment may sit out a Retry-After
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.Get("/healthz", h.Health)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/years", h.Years)
		r.Get("/overview", h.Overview)
		r.Get("/top", h.Top)
		r.Get("/skipped", h.MostSkipped)
		r.Get("/heatmap", h.Heatmap)
		r.Get("/platforms", h.Platforms)
		r.Get("/timeline", h.Timeline)
		r.Get("/search", h.Search)
		r.Get("/tracks/stats", h.TrackStats)
		r.Get("/artists/plays", h.ArtistPlays)
		r.Get("/one-hit-wonders", h.OneHitWonders)
		r.Get("/one-hit-wonders/stats", h.OneHitStats)
		r.Get("/not-on-playlist", h.TopNotOnPlaylist)
		r.Get("/not-on-playlist/stats", h.NotOnPlaylistStats)
		r.Post("/reload", h.Reload)

		r.Route("/playlists", func(r chi.Router) {
			r.Get("/", h.Playlists)
			r.Get("/overview", h.PlaylistOverview)
			r.Get("/tracks", h.PlaylistTracks)
			r.Get("/top-artists", h.PlaylistTopArtists)
			r.Get("/artists", h.ArtistDistribution)
			r.Get("/duplicates", h.Duplicates)
			r.Get("/overlap", h.Overlap)
			r.Get("/track-overlaps", h.TrackOverlaps)
		})

		r.Route("/genres", func(r chi.Router) {
			r.Get("/", h.Genres)
			r.Get("/status", h.GenreStatus)
			r.Get("/top", h.TopGenres)
			r.Get("/trends", h.GenreTrends)
			r.Get("/artist", h.ArtistGenres)
			r.Get("/groups", h.GenreGroups)
			r.Post("/enrich", h.Enrich)
		})
	})
}

// requestLogger logs each request and records it in the HTTP metrics.
func requestLogger(l logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				route := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}
				elapsed := time.Since(start)

				httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
				httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())

				l.WithFields(logrus.Fields{
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     status,
					"bytes":      ww.BytesWritten(),
					"duration":   elapsed,
					"request_id": middleware.GetReqID(r.Context()),
				}).Debug("Handled request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Infof("Starting server at http://%s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and handles graceful shutdown on interrupt signals.
func (s *Server) Run() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		s.logger.Info("Shutting down server...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}
