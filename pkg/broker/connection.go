package broker

import (
	"context"
	"io"
	"strconv"

	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/topic"
)

// ConnID identifies a connection inside the bridge. IDs are assigned at
// configuration time, in declaration order, and stay stable for the
// lifetime of the process. The routing layer stores ConnIDs rather than
// Connection values so routing stays pure data.
type ConnID uint8

func (id ConnID) String() string {
	return "conn-" + strconv.Itoa(int(id))
}

// Connection is a single broker session the bridge listens on and
// publishes to.
type Connection interface {
	io.Closer

	// ID returns the bridge-assigned identifier for this connection.
	ID() ConnID

	// Name returns the human-readable name from configuration.
	Name() string

	// Subscribe registers interest in every topic matching the pattern.
	// Matching messages arrive as MessageReceived notifications.
	Subscribe(ctx context.Context, pattern topic.Topic, qos QoS) error

	// Publish sends a message to the broker and waits for the delivery
	// guarantee implied by its QoS, or for ctx to be canceled.
	Publish(ctx context.Context, msg Message) error

	// Notifications returns the channel of connection events. After
	// Close the channel stops carrying events and may be closed;
	// consumers should exit on their own context as well.
	Notifications() <-chan Notification

	// IsConnected reports whether the session is currently established.
	IsConnected() bool
}
