package broker

import (
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/topic"
)

// Message is a single publish received from or sent to a broker.
//
// Payload is shared between every consumer of the message and must be
// treated as read-only; the bridge fans a single inbound payload out to
// many destinations without copying it.
type Message struct {
	Topic    topic.Topic
	Payload  []byte
	QoS      QoS
	Retained bool

	// Duplicate is set on redeliveries of an AtLeastOnce message.
	Duplicate bool
}
