package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rmacdonaldsmith/mqttbridge-go/internal/bridge"
	"github.com/rmacdonaldsmith/mqttbridge-go/internal/metrics"
	"github.com/rmacdonaldsmith/mqttbridge-go/internal/tap"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/routing"
)

// DefaultActivityLimit is how many records the activity endpoint
// returns when no limit parameter is given.
const DefaultActivityLimit = 50

// Bridge is the read-only view of the pipeline the API serves. The
// running *bridge.Bridge satisfies it.
type Bridge interface {
	Started() bool
	Connections() []bridge.ConnectionStatus
	Table() *routing.Table
	QueueDepth() int
	QueueCapacity() int
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	bridge   Bridge
	activity *tap.Tap
	stats    *metrics.Metrics
	jwtAuth  *JWTAuth
	started  time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(b Bridge, activity *tap.Tap, stats *metrics.Metrics, jwtAuth *JWTAuth) *Handlers {
	return &Handlers{
		bridge:   b,
		activity: activity,
		stats:    stats,
		jwtAuth:  jwtAuth,
		started:  time.Now(),
	}
}

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.validateJSON(r); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ClientID == "" {
		h.writeError(w, "clientId is required", http.StatusBadRequest)
		return
	}

	isAdmin := req.ClientID == AdminClientID

	token, expiresAt, err := h.jwtAuth.GenerateToken(req.ClientID, isAdmin)
	if err != nil {
		h.writeError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, AuthResponse{
		Token:     token,
		ClientID:  req.ClientID,
		ExpiresAt: expiresAt,
	}, http.StatusOK)
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statuses := h.bridge.Connections()
	connections := make([]ConnectionHealth, 0, len(statuses))
	healthy := h.bridge.Started()
	for _, status := range statuses {
		connections = append(connections, ConnectionHealth{
			ID:        int(status.ID),
			Name:      status.Name,
			Connected: status.Connected,
		})
		if !status.Connected {
			healthy = false
		}
	}

	resp := HealthResponse{
		Healthy:       healthy,
		Running:       h.bridge.Started(),
		Connections:   connections,
		QueueDepth:    h.bridge.QueueDepth(),
		QueueCapacity: h.bridge.QueueCapacity(),
		Uptime:        time.Since(h.started).Round(time.Second).String(),
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, resp, status)
}

// Routes handles GET /api/v1/routes
func (h *Handlers) Routes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names := h.connectionNames()
	tableRoutes := h.bridge.Table().Routes()
	routes := make([]RouteInfo, 0, len(tableRoutes))
	for _, route := range tableRoutes {
		destinations := make([]DestinationInfo, 0, len(route.Destinations))
		for _, dest := range route.Destinations {
			destinations = append(destinations, DestinationInfo{
				Connection: names[dest.Conn],
				Topic:      dest.Topic.String(),
				QoS:        int(dest.QoS),
			})
		}
		routes = append(routes, RouteInfo{
			Source:       names[route.Source],
			Pattern:      route.Pattern.String(),
			Destinations: destinations,
		})
	}

	h.writeJSON(w, RoutesResponse{Count: len(routes), Routes: routes}, http.StatusOK)
}

// Activity handles GET /api/v1/activity?limit=N
func (h *Handlers) Activity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := DefaultActivityLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.writeError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := h.activity.Recent(limit)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, ActivityResponse{
		Total:   h.activity.Total(),
		Count:   len(records),
		Records: records,
	}, http.StatusOK)
}

// Stats handles GET /api/v1/stats
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, StatsResponse{
		Snapshot:      h.stats.Totals(),
		QueueDepth:    h.bridge.QueueDepth(),
		QueueCapacity: h.bridge.QueueCapacity(),
		Uptime:        time.Since(h.started).Round(time.Second).String(),
	}, http.StatusOK)
}

// connectionNames maps connection IDs to their configured names.
func (h *Handlers) connectionNames() map[broker.ConnID]string {
	statuses := h.bridge.Connections()
	names := make(map[broker.ConnID]string, len(statuses))
	for _, status := range statuses {
		names[status.ID] = status.Name
	}
	return names
}

// validateJSON checks the request declares a JSON body.
func (h *Handlers) validateJSON(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errors.New("Content-Type must be application/json")
	}
	return nil
}

// writeError writes an error response as JSON
func (h *Handlers) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
