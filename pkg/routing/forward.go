package routing

import (
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/topic"
)

// ResolvedDestination is a Destination with the matched suffix already
// appended to its topic. It is ready to publish as-is.
type ResolvedDestination struct {
	Conn  broker.ConnID
	Topic topic.Topic
	QoS   broker.QoS
}

// Forward is one inbound message resolved against the routing table:
// the original message plus every delivery it produced. A single
// Forward travels from a listener to the emitter as one unit, so the
// deliveries of one message are never interleaved with another's.
//
// Forwards are always published fresh, never retained, regardless of
// the inbound message's retained flag.
//
// Payload aliases the inbound message's payload. Every destination
// shares it; consumers must treat it as read-only.
type Forward struct {
	Source       broker.ConnID
	SourceTopic  topic.Topic
	Payload      []byte
	Destinations []ResolvedDestination
}
