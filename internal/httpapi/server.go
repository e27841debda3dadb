// Package httpapi serves the bridge's read-only admin plane: login,
// health, the loaded routing table, recent forward activity, counters
// and the Prometheus scrape endpoint.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rmacdonaldsmith/mqttbridge-go/internal/metrics"
	"github.com/rmacdonaldsmith/mqttbridge-go/internal/tap"
)

// Server represents the HTTP API server
type Server struct {
	jwtAuth    *JWTAuth
	handlers   *Handlers
	middleware *Middleware
	server     *http.Server
	stats      *metrics.Metrics
	log        *slog.Logger
}

// Config holds server configuration
type Config struct {
	// ListenAddress is the address the API listens on, e.g. ":8080".
	ListenAddress string

	// SecretKey signs the JWT tokens. When empty a well-known
	// development key is used; set it in any real deployment.
	SecretKey string

	// TokenTTL is how long issued tokens stay valid.
	TokenTTL time.Duration
}

// NewServer creates a new HTTP API server
func NewServer(b Bridge, activity *tap.Tap, stats *metrics.Metrics, config Config, log *slog.Logger) *Server {
	secretKey := config.SecretKey
	if secretKey == "" {
		secretKey = "mqttbridge-dev-secret-key-change-in-production"
	}
	if log == nil {
		log = slog.Default()
	}

	jwtAuth := NewJWTAuth(secretKey, config.TokenTTL)
	handlers := NewHandlers(b, activity, stats, jwtAuth)
	middleware := NewMiddleware(jwtAuth, log)

	server := &Server{
		jwtAuth:    jwtAuth,
		handlers:   handlers,
		middleware: middleware,
		stats:      stats,
		log:        log,
	}

	mux := server.setupRoutes()
	server.server = &http.Server{
		Addr:           config.ListenAddress,
		Handler:        mux,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return server
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("admin api listening", "address", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the server's root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Apply global middleware
	withMiddleware := func(handler http.HandlerFunc) http.Handler {
		return s.middleware.Recovery(
			s.middleware.Logging(
				s.middleware.CORS(
					s.middleware.ContentType(handler))))
	}

	// Authentication endpoint (no auth required)
	mux.Handle("/api/v1/auth/login", withMiddleware(s.handlers.Login))

	// Health endpoint (no auth required)
	mux.Handle("/api/v1/health", withMiddleware(s.handlers.Health))

	// Bridge state endpoints (auth required)
	mux.Handle("/api/v1/routes", withMiddleware(s.middleware.AuthRequired(s.handlers.Routes)))
	mux.Handle("/api/v1/activity", withMiddleware(s.middleware.AuthRequired(s.handlers.Activity)))

	// Counter endpoint (admin auth required)
	mux.Handle("/api/v1/stats", withMiddleware(s.middleware.AdminRequired(s.handlers.Stats)))

	// Prometheus scrape endpoint (no auth, no JSON middleware)
	mux.Handle("/metrics", s.stats.Handler())

	// Root endpoint with API info
	mux.Handle("/", withMiddleware(s.handleRoot))

	return mux
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, "Not found", http.StatusNotFound)
		return
	}

	info := map[string]interface{}{
		"service":     "MQTT Bridge Admin API",
		"version":     "1.0.0",
		"description": "Read-only HTTP API over the MQTT bridge pipeline",
		"endpoints": map[string]interface{}{
			"auth": map[string]string{
				"login": "POST /api/v1/auth/login",
			},
			"health":   "GET /api/v1/health",
			"routes":   "GET /api/v1/routes",
			"activity": "GET /api/v1/activity?limit={limit}",
			"stats":    "GET /api/v1/stats",
			"metrics":  "GET /metrics",
		},
		"authentication": "Bearer JWT token required for routes, activity and stats",
	}

	s.writeJSON(w, info, http.StatusOK)
}

// Helper methods

// writeError writes an error response as JSON
func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
