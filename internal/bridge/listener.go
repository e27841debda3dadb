package bridge

import (
	"context"

	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/routing"
)

// runListener consumes notifications from one connection until ctx is
// canceled or the connection's notification channel closes. Each
// listener owns its connection's inbound side completely; routing is
// done here, on the listener goroutine, because the router is pure and
// lock-free.
func (b *Bridge) runListener(ctx context.Context, conn broker.Connection, queue chan<- *routing.Forward) {
	defer b.listeners.Done()

	log := b.log.With("connection", conn.Name())
	log.Debug("listener started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("listener stopped")
			return
		case notification, ok := <-conn.Notifications():
			if !ok {
				log.Warn("notification channel closed; listener exiting")
				return
			}
			switch n := notification.(type) {
			case broker.MessageReceived:
				b.handleInbound(ctx, conn, n.Message, queue)
			case broker.Connected:
				log.Info("connection established", "resumed", n.Resumed)
			case broker.ConnectionLost:
				// Non-fatal: the adapter reconnects on its own and
				// re-registers subscriptions when the session is back.
				log.Warn("connection lost", "error", n.Err)
			}
		}
	}
}

// handleInbound routes one message and enqueues the forward. An
// unmatched message is dropped here; that is the normal case for
// topics nobody routes, not an error.
func (b *Bridge) handleInbound(ctx context.Context, conn broker.Connection, msg broker.Message, queue chan<- *routing.Forward) {
	name := conn.Name()
	b.metrics.MessageInbound(name)

	fwd, ok := b.router.Route(conn.ID(), msg)
	if !ok {
		b.metrics.MessageUnrouted(name)
		return
	}

	select {
	case queue <- fwd:
		b.metrics.MessageRouted(name)
		b.metrics.SetQueueDepth(len(queue))
	case <-ctx.Done():
		// Shutting down; the forward is dropped with the rest of the
		// in-flight work.
	}
}
