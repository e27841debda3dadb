// Package mqttconn adapts an MQTT client session to the
// broker.Connection interface the bridge consumes.
package mqttconn

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/topic"
)

// Conn is a broker.Connection backed by an Eclipse Paho MQTT client.
//
// The client reconnects automatically; on every (re)connect the adapter
// replays its subscriptions, which is required for clean sessions where
// the broker forgets them, and pushes a Connected notification.
type Conn struct {
	id     broker.ConnID
	name   string
	config Config
	client mqtt.Client
	log    *slog.Logger

	notifications chan broker.Notification
	done          chan struct{}

	mu     sync.Mutex
	subs   map[string]broker.QoS
	closed bool
}

// Dial connects to the broker described by config and returns the
// connection once the initial session is established, or an error when
// ctx expires first.
func Dial(ctx context.Context, id broker.ConnID, config Config, log *slog.Logger) (*Conn, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection config: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	c := &Conn{
		id:            id,
		name:          config.Name,
		config:        config,
		log:           log.With("connection", config.Name),
		notifications: make(chan broker.Notification, config.NotificationBuffer),
		done:          make(chan struct{}),
		subs:          make(map[string]broker.QoS),
	}

	clientID := config.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("mqttbridge-%s-%s", config.Name, uuid.NewString()[:8])
	}

	opts := mqtt.NewClientOptions().
		AddBroker(config.BrokerURL).
		SetClientID(clientID).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetCleanSession(!config.PersistentSession).
		SetKeepAlive(config.KeepAlive).
		SetConnectTimeout(config.ConnectTimeout).
		SetAutoReconnect(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if config.TLS != nil {
		tlsConfig, err := newTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("tls config for %s: %w", config.Name, err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	c.client = mqtt.NewClient(opts)
	if err := waitToken(ctx, c.client.Connect()); err != nil {
		return nil, fmt.Errorf("connect to %s (%s): %w", config.Name, config.BrokerURL, err)
	}

	return c, nil
}

// ID implements broker.Connection.
func (c *Conn) ID() broker.ConnID { return c.id }

// Name implements broker.Connection.
func (c *Conn) Name() string { return c.name }

// IsConnected implements broker.Connection.
func (c *Conn) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Subscribe implements broker.Connection. The pattern is remembered and
// replayed after every reconnect.
func (c *Conn) Subscribe(ctx context.Context, pattern topic.Topic, qos broker.QoS) error {
	if err := pattern.ValidatePattern(); err != nil {
		return err
	}

	filter := pattern.String()
	c.mu.Lock()
	c.subs[filter] = qos
	c.mu.Unlock()

	if err := waitToken(ctx, c.client.Subscribe(filter, byte(qos), c.onMessage)); err != nil {
		return fmt.Errorf("subscribe %q: %w", filter, err)
	}
	return nil
}

// Publish implements broker.Connection.
func (c *Conn) Publish(ctx context.Context, msg broker.Message) error {
	token := c.client.Publish(msg.Topic.String(), byte(msg.QoS), msg.Retained, msg.Payload)
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("publish %q: %w", msg.Topic.String(), err)
	}
	return nil
}

// Notifications implements broker.Connection.
func (c *Conn) Notifications() <-chan broker.Notification {
	return c.notifications
}

// Close disconnects from the broker. It is idempotent. The notification
// channel stops carrying events but stays open; consumers exit through
// their own context.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	c.client.Disconnect(250)
	return nil
}

// onMessage converts an inbound MQTT message into a notification.
func (c *Conn) onMessage(_ mqtt.Client, msg mqtt.Message) {
	c.push(broker.MessageReceived{Message: broker.Message{
		Topic:     topic.Parse(msg.Topic()),
		Payload:   msg.Payload(),
		QoS:       broker.QoS(msg.Qos()),
		Retained:  msg.Retained(),
		Duplicate: msg.Duplicate(),
	}})
}

// onConnect fires on the initial connect and every reconnect.
func (c *Conn) onConnect(client mqtt.Client) {
	c.mu.Lock()
	resumed := len(c.subs) > 0
	subs := make(map[string]broker.QoS, len(c.subs))
	for filter, qos := range c.subs {
		subs[filter] = qos
	}
	c.mu.Unlock()

	// Replay subscriptions without blocking the connect callback.
	for filter, qos := range subs {
		token := client.Subscribe(filter, byte(qos), c.onMessage)
		go func(filter string, token mqtt.Token) {
			<-token.Done()
			if err := token.Error(); err != nil {
				c.log.Error("resubscribe failed", "pattern", filter, "error", err)
			}
		}(filter, token)
	}

	c.push(broker.Connected{Resumed: resumed})
}

func (c *Conn) onConnectionLost(_ mqtt.Client, err error) {
	c.push(broker.ConnectionLost{Err: err})
}

// push delivers a notification unless the connection is closed. A full
// channel blocks the caller, which applies backpressure to the paho
// dispatch loop rather than dropping messages.
func (c *Conn) push(n broker.Notification) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.notifications <- n:
	case <-c.done:
	}
}

// waitToken waits for a paho token to complete or ctx to expire.
func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.Insecure,
	}

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		caCert, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	return tlsConfig, nil
}

// Verify that Conn implements the Connection interface at compile time
var _ broker.Connection = (*Conn)(nil)
