package bridge

import (
	"context"

	"github.com/rmacdonaldsmith/mqttbridge-go/internal/tap"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/routing"
)

// runEmitter is the single consumer of the forward queue. It exits only
// when the queue is closed and fully drained, so every forward accepted
// before shutdown is still delivered.
func (b *Bridge) runEmitter(queue <-chan *routing.Forward, done chan<- struct{}) {
	defer close(done)

	for fwd := range queue {
		b.metrics.SetQueueDepth(len(queue))
		b.emit(fwd)
	}
	b.log.Debug("emitter drained")
}

// emit publishes every destination of a forward, in order. A failed
// publish is logged and counted but never stops the remaining
// deliveries; dropping one destination's message is better than
// stalling the whole pipeline.
func (b *Bridge) emit(fwd *routing.Forward) {
	for _, dest := range fwd.Destinations {
		conn, ok := b.conns[dest.Conn]
		if !ok {
			// Cannot happen for tables validated in New; guards
			// against a router handing us foreign destinations.
			b.log.Error("forward to unknown connection dropped",
				"connection", dest.Conn.String(), "topic", dest.Topic.String())
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), b.config.PublishTimeout)
		err := conn.Publish(ctx, broker.Message{
			Topic:   dest.Topic,
			Payload: fwd.Payload,
			QoS:     dest.QoS,
		})
		cancel()

		if err != nil {
			b.metrics.PublishFailed(conn.Name())
			b.log.Error("publish failed",
				"connection", conn.Name(),
				"topic", dest.Topic.String(),
				"qos", dest.QoS.String(),
				"error", err)
			continue
		}
		b.metrics.MessagePublished(conn.Name())
	}

	b.observe(fwd)
}

// observe records the forward in the activity tap.
func (b *Bridge) observe(fwd *routing.Forward) {
	destinations := make([]tap.Destination, 0, len(fwd.Destinations))
	for _, dest := range fwd.Destinations {
		destinations = append(destinations, tap.Destination{
			Connection: b.nameOf(dest.Conn),
			Topic:      dest.Topic.String(),
			QoS:        dest.QoS,
		})
	}
	b.tap.Append(tap.Record{
		SourceConn:   b.nameOf(fwd.Source),
		SourceTopic:  fwd.SourceTopic.String(),
		Destinations: destinations,
		Bytes:        len(fwd.Payload),
	})
}
