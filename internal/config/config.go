// Package config loads and validates the bridge's YAML configuration
// and turns it into the runtime configs of the individual components.
//
// Environment references like ${MQTT_PASSWORD} are expanded before the
// YAML is parsed, so secrets can stay out of the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rmacdonaldsmith/mqttbridge-go/internal/bridge"
	"github.com/rmacdonaldsmith/mqttbridge-go/internal/mqttconn"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/routing"
)

// MaxConnections is the hard cap implied by the compact connection
// identifier type.
const MaxConnections = 256

var (
	// ErrNoConnections is returned when the file declares no connections
	ErrNoConnections = errors.New("config must declare at least one connection")
	// ErrDuplicateName is returned when two connections share a name
	ErrDuplicateName = errors.New("duplicate connection name")
	// ErrTooManyConnections is returned when more connections are declared than connection IDs exist
	ErrTooManyConnections = errors.New("too many connections")
	// ErrEmptyFile is returned when the config file has no content
	ErrEmptyFile = errors.New("config file is empty")
)

// Duration wraps time.Duration so YAML values can be written as "30s",
// "5m" or plain nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler. The int case must come
// first: yaml decodes any scalar into a string, so probing the string
// form first would eat numeric values too.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string (e.g. \"30s\") or nanoseconds")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Connection is one broker connection declaration. Declaration order
// assigns the connection IDs routes resolve to.
type Connection struct {
	Name              string   `yaml:"name"`
	BrokerURL         string   `yaml:"broker_url"`
	ClientID          string   `yaml:"client_id"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	PersistentSession bool     `yaml:"persistent_session"`
	KeepAlive         Duration `yaml:"keep_alive"`
	ConnectTimeout    Duration `yaml:"connect_timeout"`
	TLS               *TLS     `yaml:"tls"`
}

// TLS is the optional TLS block of a connection.
type TLS struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
	Insecure bool   `yaml:"insecure"`
}

// Bridge holds the pipeline tuning block.
type Bridge struct {
	QueueSize        int      `yaml:"queue_size"`
	PublishTimeout   Duration `yaml:"publish_timeout"`
	SubscribeTimeout Duration `yaml:"subscribe_timeout"`

	// SubscribeQoS is the QoS level for source subscriptions, 1 or 2.
	// Zero (or omitted) keeps the AtLeastOnce default.
	SubscribeQoS int `yaml:"subscribe_qos"`

	// RouteCacheSize overrides the router's resolved-topic cache size.
	// Zero disables the cache; nil keeps the default.
	RouteCacheSize *int `yaml:"route_cache_size"`

	// ActivityLogSize is the capacity of the in-memory activity tap.
	ActivityLogSize int `yaml:"activity_log_size"`
}

// API holds the admin HTTP API block.
type API struct {
	Enabled       bool     `yaml:"enabled"`
	ListenAddress string   `yaml:"listen_address"`
	SecretKey     string   `yaml:"secret_key"`
	TokenTTL      Duration `yaml:"token_ttl"`
}

// Logging holds the log output block.
type Logging struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is "console" for human-readable output or "json".
	Format string `yaml:"format"`
}

// File is the complete on-disk configuration document.
type File struct {
	Connections []Connection `yaml:"connections"`

	// Routes are route specs in the textual form
	//
	//	<source-conn> <source-pattern> <dest-conn> <dest-topic> <qos>
	//
	// for example "east sensors/# west mirror/sensors 1".
	Routes []string `yaml:"routes"`

	Bridge  Bridge  `yaml:"bridge"`
	API     API     `yaml:"api"`
	Logging Logging `yaml:"logging"`
}

// Load reads, expands, parses and validates the configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(os.ExpandEnv(string(data)))
}

// Parse parses an already-expanded YAML document.
func Parse(document string) (*File, error) {
	decoder := yaml.NewDecoder(strings.NewReader(document))
	decoder.KnownFields(true)

	var f File
	if err := decoder.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}

	f.SetDefaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// SetDefaults fills in defaults for zero-valued fields.
func (f *File) SetDefaults() {
	if f.API.ListenAddress == "" {
		f.API.ListenAddress = ":8080"
	}
	if f.API.TokenTTL == 0 {
		f.API.TokenTTL = Duration(24 * time.Hour)
	}
	if f.Logging.Level == "" {
		f.Logging.Level = "info"
	}
	if f.Logging.Format == "" {
		f.Logging.Format = "console"
	}
}

// Validate validates the whole document. Route specs are parsed here
// too, so every configuration error surfaces at load time.
func (f *File) Validate() error {
	if len(f.Connections) == 0 {
		return ErrNoConnections
	}
	if len(f.Connections) > MaxConnections {
		return fmt.Errorf("%w: %d declared, at most %d supported",
			ErrTooManyConnections, len(f.Connections), MaxConnections)
	}

	seen := make(map[string]bool, len(f.Connections))
	for i, conn := range f.Connections {
		if seen[conn.Name] {
			return fmt.Errorf("connection %d: %w: %q", i, ErrDuplicateName, conn.Name)
		}
		seen[conn.Name] = true

		cfg := conn.brokerConfig()
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("connection %d (%s): %w", i, conn.Name, err)
		}
	}

	if _, err := f.BuildTable(); err != nil {
		return err
	}

	if _, err := broker.QoSFromInt(f.Bridge.SubscribeQoS); err != nil {
		return fmt.Errorf("bridge subscribe_qos: %w", err)
	}

	switch f.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging level %q: must be debug, info, warn or error", f.Logging.Level)
	}
	switch f.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging format %q: must be console or json", f.Logging.Format)
	}

	return nil
}

// ConnIDs returns the name to connection ID mapping implied by
// declaration order.
func (f *File) ConnIDs() map[string]broker.ConnID {
	ids := make(map[string]broker.ConnID, len(f.Connections))
	for i, conn := range f.Connections {
		ids[conn.Name] = broker.ConnID(i)
	}
	return ids
}

// BrokerConfigs returns one mqttconn.Config per declared connection, in
// declaration order.
func (f *File) BrokerConfigs() []mqttconn.Config {
	configs := make([]mqttconn.Config, 0, len(f.Connections))
	for _, conn := range f.Connections {
		configs = append(configs, conn.brokerConfig())
	}
	return configs
}

func (c Connection) brokerConfig() mqttconn.Config {
	cfg := mqttconn.Config{
		Name:              c.Name,
		BrokerURL:         c.BrokerURL,
		ClientID:          c.ClientID,
		Username:          c.Username,
		Password:          c.Password,
		PersistentSession: c.PersistentSession,
		KeepAlive:         c.KeepAlive.Duration(),
		ConnectTimeout:    c.ConnectTimeout.Duration(),
	}
	if c.TLS != nil {
		cfg.TLS = &mqttconn.TLSConfig{
			CertFile: c.TLS.CertFile,
			KeyFile:  c.TLS.KeyFile,
			CAFile:   c.TLS.CAFile,
			Insecure: c.TLS.Insecure,
		}
	}
	return cfg
}

// BuildTable parses every route spec and builds the routing table.
func (f *File) BuildTable() (*routing.Table, error) {
	ids := f.ConnIDs()
	routes := make([]routing.Route, 0, len(f.Routes))
	for i, line := range f.Routes {
		route, err := ParseRouteSpec(line, ids)
		if err != nil {
			return nil, fmt.Errorf("route %d (%q): %w", i, line, err)
		}
		routes = append(routes, route)
	}

	table, err := routing.NewTable(routes...)
	if err != nil {
		return nil, fmt.Errorf("routing table: %w", err)
	}
	return table, nil
}

// BridgeConfig returns the pipeline configuration.
func (f *File) BridgeConfig() bridge.Config {
	return bridge.Config{
		QueueSize:        f.Bridge.QueueSize,
		SubscribeQoS:     broker.QoS(f.Bridge.SubscribeQoS),
		PublishTimeout:   f.Bridge.PublishTimeout.Duration(),
		SubscribeTimeout: f.Bridge.SubscribeTimeout.Duration(),
	}
}
