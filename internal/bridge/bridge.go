// Package bridge wires connections, router and queue into the running
// message pipeline: one listener goroutine per connection feeds a
// single emitter through a buffered channel.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fogfish/opts"

	"github.com/rmacdonaldsmith/mqttbridge-go/internal/metrics"
	"github.com/rmacdonaldsmith/mqttbridge-go/internal/tap"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/routing"
)

var (
	// ErrNoConnections is returned when the bridge is created without connections
	ErrNoConnections = errors.New("bridge needs at least one connection")
	// ErrDuplicateConn is returned when two connections share an ID
	ErrDuplicateConn = errors.New("duplicate connection id")
	// ErrUnknownConn is returned when the routing table refers to a connection the bridge does not have
	ErrUnknownConn = errors.New("routing table refers to unknown connection")
	// ErrNilRouter is returned when no router is provided
	ErrNilRouter = errors.New("router cannot be nil")
)

// ConnectionStatus describes one connection for the admin API.
type ConnectionStatus struct {
	ID        broker.ConnID `json:"id"`
	Name      string        `json:"name"`
	Connected bool          `json:"connected"`
}

// Bridge orchestrates the pipeline. Listeners receive notifications
// from their connection, route messages and enqueue the forwards; the
// emitter dequeues forwards and publishes every destination in order.
//
// The bridge does not own its connections: the caller that dialed them
// closes them, after stopping the bridge.
type Bridge struct {
	mu     sync.RWMutex
	config Config
	router routing.Router

	conns map[broker.ConnID]broker.Connection
	order []broker.ConnID

	queue       chan *routing.Forward
	cancel      context.CancelFunc
	listeners   sync.WaitGroup
	emitterDone chan struct{}

	log     *slog.Logger
	metrics *metrics.Metrics
	tap     *tap.Tap

	started bool
	closed  bool
}

var (
	// WithLogger sets the logger; slog.Default is used otherwise.
	WithLogger = opts.ForName[Bridge, *slog.Logger]("log")

	// WithMetrics sets the metrics collector shared with the admin API.
	WithMetrics = opts.ForName[Bridge, *metrics.Metrics]("metrics")

	// WithTap sets the activity tap shared with the admin API.
	WithTap = opts.ForName[Bridge, *tap.Tap]("tap")
)

// New creates a bridge over the given connections and router. It
// validates the configuration and checks that every connection the
// routing table mentions is actually present. Call Start to begin
// bridging.
func New(config Config, router routing.Router, conns []broker.Connection, options ...opts.Option[Bridge]) (*Bridge, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bridge config: %w", err)
	}
	if router == nil {
		return nil, ErrNilRouter
	}
	if len(conns) == 0 {
		return nil, ErrNoConnections
	}

	b := &Bridge{
		config: config,
		router: router,
		conns:  make(map[broker.ConnID]broker.Connection, len(conns)),
	}
	for _, conn := range conns {
		if _, exists := b.conns[conn.ID()]; exists {
			return nil, fmt.Errorf("%w: %d (%s)", ErrDuplicateConn, conn.ID(), conn.Name())
		}
		b.conns[conn.ID()] = conn
		b.order = append(b.order, conn.ID())
	}
	for _, id := range router.Table().Conns() {
		if _, exists := b.conns[id]; !exists {
			return nil, fmt.Errorf("%w: %d", ErrUnknownConn, id)
		}
	}

	if err := opts.Apply(b, options); err != nil {
		return nil, fmt.Errorf("apply bridge options: %w", err)
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	if b.metrics == nil {
		b.metrics = metrics.New()
	}
	if b.tap == nil {
		b.tap = tap.New(0)
	}

	return b, nil
}

// Start subscribes every connection to its source patterns, then
// launches the listener goroutines and the emitter. A subscription
// failure is fatal: the bridge cannot honor its routes without it, so
// nothing is started and the error is returned.
//
// The listeners run until Stop is called or ctx is canceled.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("cannot start closed bridge")
	}
	if b.started {
		return nil // Already started, idempotent
	}

	if err := b.subscribeAll(ctx); err != nil {
		return err
	}

	queue := make(chan *routing.Forward, b.config.QueueSize)
	b.queue = queue
	b.emitterDone = make(chan struct{})
	b.metrics.SetQueueCapacity(b.config.QueueSize)

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	for _, id := range b.order {
		conn := b.conns[id]
		b.listeners.Add(1)
		go b.runListener(runCtx, conn, queue)
	}
	go b.runEmitter(queue, b.emitterDone)

	b.started = true
	b.log.Info("bridge started",
		"connections", len(b.conns),
		"routes", b.router.Table().Len(),
		"queue_size", b.config.QueueSize)
	return nil
}

// subscribeAll registers every source pattern on its connection.
func (b *Bridge) subscribeAll(ctx context.Context) error {
	table := b.router.Table()
	for _, id := range b.order {
		conn := b.conns[id]
		for _, pattern := range table.SubscriptionsFor(id) {
			subCtx, cancel := context.WithTimeout(ctx, b.config.SubscribeTimeout)
			err := conn.Subscribe(subCtx, pattern, b.config.SubscribeQoS)
			cancel()
			if err != nil {
				return fmt.Errorf("subscribe %q on %s: %w", pattern.String(), conn.Name(), err)
			}
			b.log.Debug("subscribed", "connection", conn.Name(), "pattern", pattern.String())
		}
	}
	return nil
}

// Stop shuts the pipeline down in order: listeners first, then the
// queue, then the emitter once it has drained every queued forward.
// ctx bounds how long Stop waits for the drain.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil // Not started, idempotent
	}
	b.started = false
	cancel := b.cancel
	queue := b.queue
	emitterDone := b.emitterDone
	b.mu.Unlock()

	cancel()

	listenersDone := make(chan struct{})
	go func() {
		b.listeners.Wait()
		close(listenersDone)
	}()
	select {
	case <-listenersDone:
	case <-ctx.Done():
		return fmt.Errorf("waiting for listeners: %w", ctx.Err())
	}

	// No listener can enqueue anymore; closing the queue lets the
	// emitter drain and exit.
	close(queue)
	select {
	case <-emitterDone:
	case <-ctx.Done():
		return fmt.Errorf("waiting for emitter drain: %w", ctx.Err())
	}

	b.log.Info("bridge stopped")
	return nil
}

// Run starts the bridge and blocks until ctx is canceled, then performs
// an orderly stop. Every forward accepted before the cancellation is
// still published; the drain itself is bounded by the publish timeout
// per destination, not by ctx. Returns nil on a clean shutdown.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return b.Stop(context.Background())
}

// Close stops the bridge and marks it permanently closed.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil // Already closed, idempotent
	}
	b.closed = true
	b.mu.Unlock()

	return b.Stop(context.Background())
}

// Started reports whether the pipeline is currently running.
func (b *Bridge) Started() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.started
}

// Connections returns the status of every connection in registration
// order.
func (b *Bridge) Connections() []ConnectionStatus {
	statuses := make([]ConnectionStatus, 0, len(b.order))
	for _, id := range b.order {
		conn := b.conns[id]
		statuses = append(statuses, ConnectionStatus{
			ID:        id,
			Name:      conn.Name(),
			Connected: conn.IsConnected(),
		})
	}
	return statuses
}

// Table returns the routing table the bridge resolves against.
func (b *Bridge) Table() *routing.Table {
	return b.router.Table()
}

// QueueDepth returns the number of forwards currently queued.
func (b *Bridge) QueueDepth() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.queue == nil {
		return 0
	}
	return len(b.queue)
}

// QueueCapacity returns the forward queue's capacity.
func (b *Bridge) QueueCapacity() int {
	return b.config.QueueSize
}

// nameOf resolves a connection ID to its configured name. The conns map
// is immutable after New, so no lock is needed.
func (b *Bridge) nameOf(id broker.ConnID) string {
	if conn, ok := b.conns[id]; ok {
		return conn.Name()
	}
	return id.String()
}
