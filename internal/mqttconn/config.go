package mqttconn

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyName is returned when the connection name is empty
	ErrEmptyName = errors.New("connection name cannot be empty")
	// ErrEmptyBrokerURL is returned when no broker URL is provided
	ErrEmptyBrokerURL = errors.New("broker URL cannot be empty")
	// ErrInvalidScheme is returned when the broker URL scheme is not supported
	ErrInvalidScheme = errors.New("broker URL must use tcp, ssl, tls, ws or wss scheme")
	// ErrIncompleteTLSKeyPair is returned when only one of cert and key is set
	ErrIncompleteTLSKeyPair = errors.New("tls cert file and key file must be set together")
)

// TLSConfig holds the optional TLS material for a connection.
type TLSConfig struct {
	// CertFile and KeyFile form the client certificate pair. Both must
	// be set, or neither.
	CertFile string
	KeyFile  string

	// CAFile, when set, replaces the system roots for verifying the
	// broker's certificate.
	CAFile string

	// Insecure skips broker certificate verification.
	Insecure bool
}

// Config describes one broker connection.
type Config struct {
	// Name is the bridge-local name routes refer to.
	Name string

	// BrokerURL is the broker endpoint, e.g. "tcp://mqtt.local:1883"
	// or "ssl://mqtt.example.com:8883".
	BrokerURL string

	// ClientID is the MQTT client identifier. When empty, one is
	// derived from Name plus a random suffix so two bridge instances
	// never collide on the broker.
	ClientID string

	// Username and Password are the broker credentials, both optional.
	Username string
	Password string

	// PersistentSession asks the broker to keep session state across
	// reconnects. The default is a clean session.
	PersistentSession bool

	// KeepAlive is the MQTT keepalive interval.
	KeepAlive time.Duration

	// ConnectTimeout bounds the initial broker handshake.
	ConnectTimeout time.Duration

	// NotificationBuffer is the capacity of the notification channel.
	NotificationBuffer int

	// TLS enables TLS when non-nil.
	TLS *TLSConfig
}

// SetDefaults fills in defaults for zero-valued fields.
func (c *Config) SetDefaults() {
	if c.KeepAlive == 0 {
		c.KeepAlive = 30 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.NotificationBuffer == 0 {
		c.NotificationBuffer = 64
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrEmptyName
	}
	if c.BrokerURL == "" {
		return ErrEmptyBrokerURL
	}
	if !hasValidScheme(c.BrokerURL) {
		return fmt.Errorf("%w: %q", ErrInvalidScheme, c.BrokerURL)
	}
	if c.TLS != nil {
		if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
			return ErrIncompleteTLSKeyPair
		}
	}
	return nil
}

func hasValidScheme(url string) bool {
	for _, scheme := range []string{"tcp://", "ssl://", "tls://", "ws://", "wss://"} {
		if strings.HasPrefix(url, scheme) {
			return true
		}
	}
	return false
}
