package httpclient

import "time"

// Config holds client configuration
type Config struct {
	// ServerURL is the base URL of the bridge admin API (e.g., "http://localhost:8080")
	ServerURL string

	// ClientID is the identifier this client authenticates as. The
	// server grants admin access to the "admin" identifier.
	ClientID string

	// Timeout for HTTP requests
	Timeout time.Duration
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// AuthResponse represents the response from authentication
type AuthResponse struct {
	Token     string    `json:"token"`
	ClientID  string    `json:"clientId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ConnectionHealth reports one broker connection's state
type ConnectionHealth struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// HealthResponse represents the bridge health report
type HealthResponse struct {
	Healthy       bool               `json:"healthy"`
	Running       bool               `json:"running"`
	Connections   []ConnectionHealth `json:"connections"`
	QueueDepth    int                `json:"queueDepth"`
	QueueCapacity int                `json:"queueCapacity"`
	Uptime        string             `json:"uptime"`
}

// DestinationInfo describes one delivery target of a route
type DestinationInfo struct {
	Connection string `json:"connection"`
	Topic      string `json:"topic"`
	QoS        int    `json:"qos"`
}

// RouteInfo describes one route in the loaded table
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

// ActivityDestination is one delivery of a recorded forward
type ActivityDestination struct {
	Connection string `json:"connection"`
	Topic      string `json:"topic"`
	QoS        int    `json:"qos"`
}

// ActivityRecord is one recorded forward
type ActivityRecord struct {
	Seq          int64                 `json:"seq"`
	Time         time.Time             `json:"time"`
	SourceConn   string                `json:"source_connection"`
	SourceTopic  string                `json:"source_topic"`
	Destinations []ActivityDestination `json:"destinations"`
	Bytes        int                   `json:"bytes"`
}

// ActivityResponse represents recent forward activity
type ActivityResponse struct {
	Total   int64            `json:"total"`
	Count   int              `json:"count"`
	Records []ActivityRecord `json:"records"`
}

// StatsResponse represents the bridge counters (admin only)
type StatsResponse struct {
	MessagesInbound   int64  `json:"messages_inbound"`
	MessagesRouted    int64  `json:"messages_routed"`
	MessagesUnrouted  int64  `json:"messages_unrouted"`
	MessagesPublished int64  `json:"messages_published"`
	PublishFailures   int64  `json:"publish_failures"`
	RouteCacheHits    int64  `json:"route_cache_hits"`
	RouteCacheMisses  int64  `json:"route_cache_misses"`
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	Uptime            string `json:"uptime"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
