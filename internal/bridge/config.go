package bridge

import (
	"errors"
	"fmt"
	"time"

	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
)

var (
	// ErrInvalidQueueSize is returned when the forward queue size is negative
	ErrInvalidQueueSize = errors.New("queue size cannot be negative")
	// ErrInvalidTimeout is returned when a timeout is negative
	ErrInvalidTimeout = errors.New("timeout cannot be negative")
)

// Config holds the bridge tuning knobs.
type Config struct {
	// QueueSize is the capacity of the forward queue between the
	// listeners and the emitter. When the queue is full, listeners
	// block, which applies backpressure to inbound consumption.
	QueueSize int

	// SubscribeQoS is the quality-of-service level used when
	// registering source subscriptions. Defaults to AtLeastOnce so the
	// broker redelivers messages that were in flight across a
	// reconnect; AtMostOnce subscriptions would silently cap every
	// route below the QoS its destinations ask for.
	SubscribeQoS broker.QoS

	// SubscribeTimeout bounds each subscribe call during startup.
	SubscribeTimeout time.Duration

	// PublishTimeout bounds each publish the emitter performs.
	PublishTimeout time.Duration
}

// SetDefaults fills in defaults for zero-valued fields.
func (c *Config) SetDefaults() {
	if c.QueueSize == 0 {
		c.QueueSize = 256
	}
	if c.SubscribeQoS == 0 {
		c.SubscribeQoS = broker.AtLeastOnce
	}
	if c.SubscribeTimeout == 0 {
		c.SubscribeTimeout = 10 * time.Second
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = 10 * time.Second
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.QueueSize < 0 {
		return ErrInvalidQueueSize
	}
	if c.SubscribeQoS > broker.ExactlyOnce {
		return fmt.Errorf("invalid subscribe qos %d", c.SubscribeQoS)
	}
	if c.SubscribeTimeout < 0 || c.PublishTimeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}
