package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/matijazezelj/evroute/internal/config"
	"github.com/matijazezelj/evroute/internal/geo"
	"github.com/matijazezelj/evroute/internal/geocode"
	"github.com/matijazezelj/evroute/internal/graph"
	"github.com/matijazezelj/evroute/internal/importer"
	"github.com/matijazezelj/evroute/internal/routing"
)

// Server is the evroute HTTP server providing the routing REST API.
type Server struct {
	store      graph.Store
	source     graph.Source
	importer   *importer.Importer
	geocoder   geocode.Geocoder
	logger     *slog.Logger
	metric     geo.Metric
	vehicle    routing.Vehicle
	options    routing.Options
	listen     string
	readOnly   bool
	apiToken   string
	corsOrigin string
	srv        *http.Server

	active atomic.Pointer[view]

	// rate limiter state
	limiters sync.Map // map[string]*ipLimiter
}

// view is the snapshot requests are answered from, with its station set
// prepared for the router.
type view struct {
	snap     *graph.Snapshot
	stations *routing.Stations
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a new Server. im and geocoder may be nil, which disables the
// endpoints that need them.
func New(store graph.Store, source graph.Source, im *importer.Importer, geocoder geocode.Geocoder, cfg *config.Config, logger *slog.Logger) *Server {
	metric, err := geo.ParseMetric(cfg.Routing.Metric)
	if err != nil {
		logger.Warn("falling back to haversine", "metric", cfg.Routing.Metric, "error", err)
		metric = geo.Haversine{}
	}
	return &Server{
		store:      store,
		source:     source,
		importer:   im,
		geocoder:   geocoder,
		logger:     logger,
		metric:     metric,
		vehicle:    cfg.Vehicle.Vehicle(),
		options:    cfg.Routing.Options(),
		listen:     cfg.Server.Listen,
		readOnly:   cfg.Server.ReadOnly,
		apiToken:   cfg.Server.APIToken,
		corsOrigin: cfg.Server.CORSOrigin,
	}
}

// Reload loads a fresh snapshot from the source and makes it active.
// Requests in flight finish on the snapshot they started with.
func (s *Server) Reload(ctx context.Context) error {
	snap, err := s.source.Load(ctx, s.metric)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	stations, err := routing.NewStations(snap.Network, snap.StationNodes())
	if err != nil {
		return fmt.Errorf("preparing stations: %w", err)
	}
	s.active.Store(&view{snap: snap, stations: stations})
	s.logger.Info("snapshot loaded", "source", s.source.Name(),
		"nodes", snap.Network.NodeCount(), "edges", snap.Network.EdgeCount(), "stations", stations.Len())
	return nil
}

// securityHeaders adds standard security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// limitBody caps request body size to 1 MB on mutating methods.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter limits API requests to 10/sec burst 20 per client IP.
func (s *Server) rateLimiter(next http.Handler) http.Handler {
	// Clean up stale entries every 5 minutes.
	go func() {
		for {
			time.Sleep(5 * time.Minute)
			s.limiters.Range(func(key, value any) bool {
				il := value.(*ipLimiter)
				if time.Since(il.lastSeen) > 10*time.Minute {
					s.limiters.Delete(key)
				}
				return true
			})
		}
	}()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		ip, _, _ := net.SplitHostPort(r.RemoteAddr)
		if ip == "" {
			ip = r.RemoteAddr
		}

		val, _ := s.limiters.LoadOrStore(ip, &ipLimiter{
			limiter:  rate.NewLimiter(10, 20),
			lastSeen: time.Now(),
		})
		il := val.(*ipLimiter)
		il.lastSeen = time.Now()

		if !il.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers when a cors_origin is configured.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin != "" && strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware returns a handler that checks for a valid bearer token
// on /api/ routes when an API token is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only protect API routes (not healthz)
		if s.apiToken != "" && strings.HasPrefix(r.URL.Path, "/api/") {
			auth := r.Header.Get("Authorization")
			token := strings.TrimPrefix(auth, "Bearer ")
			if token == auth || subtle.ConstantTimeCompare([]byte(token), []byte(s.apiToken)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, s)

	// Middleware chain: security headers → body limit → CORS → rate limit → auth → mux
	var handler http.Handler = mux
	handler = s.authMiddleware(handler)
	handler = s.rateLimiter(handler)
	handler = s.corsMiddleware(handler)
	handler = limitBody(handler)
	handler = securityHeaders(handler)
	return handler
}

// Start starts the HTTP server. The first snapshot must have been loaded
// with Reload.
func (s *Server) Start() error {
	if s.active.Load() == nil {
		return fmt.Errorf("no snapshot loaded")
	}

	s.srv = &http.Server{
		Addr:         s.listen,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting server", "listen", s.listen)
	if s.apiToken != "" {
		s.logger.Info("API authentication enabled")
	} else {
		s.logger.Warn("API authentication disabled (set server.api_token to enable)")
	}
	fmt.Printf("evroute server running at http://localhost%s\n", s.listen)

	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
