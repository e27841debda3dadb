package httpapi

import (
	"time"

	"github.com/rmacdonaldsmith/mqttbridge-go/internal/metrics"
	"github.com/rmacdonaldsmith/mqttbridge-go/internal/tap"
)

// Request/Response types for the HTTP API

// AuthRequest represents a login request
type AuthRequest struct {
	ClientID string `json:"clientId"`
}

// AuthResponse represents a login response
type AuthResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"clientId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ConnectionHealth describes one broker connection in the health view
type ConnectionHealth struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// HealthResponse represents the bridge health view
type HealthResponse struct {
	Healthy       bool               `json:"healthy"`
	Running       bool               `json:"running"`
	Connections   []ConnectionHealth `json:"connections"`
	QueueDepth    int                `json:"queueDepth"`
	QueueCapacity int                `json:"queueCapacity"`
	Uptime        string             `json:"uptime"`
}

// DestinationInfo is one delivery target of a route
type DestinationInfo struct {
	Connection string `json:"connection"`
	Topic      string `json:"topic"`
	QoS        int    `json:"qos"`
}

// RouteInfo is one routing table entry
type RouteInfo struct {
	Source       string            `json:"source"`
	Pattern      string            `json:"pattern"`
	Destinations []DestinationInfo `json:"destinations"`
}

// RoutesResponse represents the loaded routing table
type RoutesResponse struct {
	Count  int         `json:"count"`
	Routes []RouteInfo `json:"routes"`
}

// ActivityResponse represents recent forwards from the activity tap
type ActivityResponse struct {
	Total   int64        `json:"total"`
	Count   int          `json:"count"`
	Records []tap.Record `json:"records"`
}

// StatsResponse represents the aggregate pipeline counters
type StatsResponse struct {
	metrics.Snapshot
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	Uptime        string `json:"uptime"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
