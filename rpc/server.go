package rpc

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventpool/native/rewards"
	"eventpool/observability"
)

var errUnauthorizedToken = errors.New("missing or invalid bearer token")

// Config carries the HTTP surface settings.
type Config struct {
	// AuthToken protects the mutating endpoints. Empty disables auth, which
	// is only acceptable for local development.
	AuthToken string
	RateLimit RateLimit
}

// Server exposes the reward ledger over HTTP.
type Server struct {
	engine  *rewards.Engine
	logger  *slog.Logger
	metrics *observability.APIMetrics
	auth    string
	limiter *RateLimiter
}

// NewServer wires the ledger engine behind the HTTP handlers.
func NewServer(engine *rewards.Engine, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:  engine,
		logger:  logger,
		metrics: observability.API(),
		auth:    strings.TrimSpace(cfg.AuthToken),
		limiter: NewRateLimiter(cfg.RateLimit),
	}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.limiter.Middleware)
	r.Use(s.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/pools", func(r chi.Router) {
		r.Get("/{event}", s.handleGetPool)
		r.Get("/{event}/allocations/{participant}", s.handleGetAllocation)
		r.Post("/{event}/allocations/query", s.handleQueryAllocations)
		r.Post("/{event}/claims", s.handleClaim)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/", s.handleCreatePool)
			r.Post("/{event}/topups", s.handleTopUp)
			r.Post("/{event}/allocations", s.handleAllocate(false))
			r.Post("/{event}/allocations/batch", s.handleAllocateBatch)
			r.Post("/{event}/allocations/bonus", s.handleAllocate(true))
			r.Post("/{event}/reclaim", s.handleReclaim)
		})
	})

	return r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.auth)) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, errUnauthorizedToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		duration := time.Since(started)
		s.metrics.Observe(route, r.Method, recorder.status, duration)
		s.logger.Info("http request",
			slog.String("route", route),
			slog.String("method", r.Method),
			slog.Int("status", recorder.status),
			slog.Duration("duration", duration),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
