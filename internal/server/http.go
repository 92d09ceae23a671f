package server

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/loop-dev/loop-battle/internal/auth"
	"github.com/loop-dev/loop-battle/internal/config"
	"github.com/loop-dev/loop-battle/internal/logging"
)

// Pinger reports whether a backing store is reachable.
type Pinger func(ctx context.Context) error

// Routes are the feature endpoints mounted on the base router.
type Routes struct {
	// API is mounted behind bearer authentication.
	API func(r chi.Router)
	// WebSocket authenticates from the token query parameter itself.
	WebSocket http.HandlerFunc
}

// NewUpgrader returns a WebSocket upgrader that only accepts the configured origins.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, origin)
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// NewHTTPServer wires base routes (health, readiness, metrics) and the feature routes.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, tokens auth.TokenValidator, ready []Pinger, routes Routes) *http.Server {
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: NewRouter(cfg, logger, tokens, ready, routes),
	}
}

// NewRouter builds the chi router. Split from NewHTTPServer for tests.
func NewRouter(cfg *config.App, logger zerolog.Logger, tokens auth.TokenValidator, ready []Pinger, routes Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(cfg.CORS))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), ready); err != nil {
			logger := logging.FromContext(r.Context())
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Handle("/metrics", promhttp.Handler())

	if routes.WebSocket != nil {
		r.Get("/ws/rooms/{roomID}", routes.WebSocket)
	}

	if routes.API != nil {
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(tokens, logger))
			r.Use(auth.RequireAuth)
			routes.API(r)
		})
	}

	return r
}

func pingDependencies(ctx context.Context, ready []Pinger) error {
	for _, ping := range ready {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func cors(cfg config.CORS) func(http.Handler) http.Handler {
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && slices.Contains(cfg.AllowedOrigins, origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", maxAge)
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
