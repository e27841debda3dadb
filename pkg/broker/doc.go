// Package broker defines the types and interfaces for talking to message
// brokers.
//
// The package provides:
//   - Connection: the behavior the bridge needs from a broker connection
//   - Message: an inbound or outbound publish
//   - Notification: connection lifecycle and message events
//   - QoS: delivery guarantee levels
//   - ConnID: compact connection identifier used by the routing layer
//
// The interfaces use Go idioms:
//   - context.Context for cancellation on blocking operations
//   - Explicit error returns instead of exceptions
//   - Channels for streaming notifications
//   - io.Closer for resource cleanup
//
// Example usage:
//
//	conn, err := mqttconn.Dial(ctx, 0, cfg, logger)
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	if err := conn.Subscribe(ctx, topic.Parse("sensors/#"), broker.AtLeastOnce); err != nil {
//		return err
//	}
//
//	for n := range conn.Notifications() {
//		switch n := n.(type) {
//		case broker.MessageReceived:
//			handle(n.Message)
//		case broker.ConnectionLost:
//			log.Warn("connection lost", "error", n.Err)
//		}
//	}
//
// Implementations live under internal/; this package holds only the
// contract shared by the bridge, the router and the connection adapters.
package broker
