package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rmacdonaldsmith/mqttbridge-go/internal/metrics"
	tablerouter "github.com/rmacdonaldsmith/mqttbridge-go/internal/routing"
	"github.com/rmacdonaldsmith/mqttbridge-go/internal/tap"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/routing"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/topic"
)

// fakeConn is an in-memory broker.Connection for pipeline tests.
type fakeConn struct {
	id   broker.ConnID
	name string

	mu            sync.Mutex
	notifications chan broker.Notification
	subscriptions []string
	subscribeQoS  []broker.QoS
	published     []broker.Message
	publishErr    error
	subscribeErr  error
	connected     bool
	closed        bool
}

func newFakeConn(id broker.ConnID, name string) *fakeConn {
	return &fakeConn{
		id:            id,
		name:          name,
		notifications: make(chan broker.Notification, 64),
		connected:     true,
	}
}

func (c *fakeConn) ID() broker.ConnID { return c.id }
func (c *fakeConn) Name() string      { return c.name }

func (c *fakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) Subscribe(ctx context.Context, pattern topic.Topic, qos broker.QoS) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.subscriptions = append(c.subscriptions, pattern.String())
	c.subscribeQoS = append(c.subscribeQoS, qos)
	return nil
}

func (c *fakeConn) Publish(ctx context.Context, msg broker.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeConn) Notifications() <-chan broker.Notification {
	return c.notifications
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.connected = false
	close(c.notifications)
	return nil
}

// deliver simulates an inbound publish arriving from the broker.
func (c *fakeConn) deliver(topicStr, payload string) {
	c.notifications <- broker.MessageReceived{Message: broker.Message{
		Topic:   topic.Parse(topicStr),
		Payload: []byte(payload),
		QoS:     broker.AtLeastOnce,
	}}
}

func (c *fakeConn) publishedMessages() []broker.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]broker.Message, len(c.published))
	copy(out, c.published)
	return out
}

func (c *fakeConn) subscribedPatterns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.subscriptions))
	copy(out, c.subscriptions)
	return out
}

func (c *fakeConn) subscribedQoS() []broker.QoS {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]broker.QoS, len(c.subscribeQoS))
	copy(out, c.subscribeQoS)
	return out
}

func newRouter(t *testing.T, routes ...routing.Route) *tablerouter.TableRouter {
	t.Helper()
	table, err := routing.NewTable(routes...)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	router, err := tablerouter.New(table)
	if err != nil {
		t.Fatalf("router New failed: %v", err)
	}
	return router
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// TestBridge_EndToEnd runs the full pipeline across three connections:
// messages arriving on the first are fanned out to the other two with
// the wildcard suffix appended.
func TestBridge_EndToEnd(t *testing.T) {
	conn1 := newFakeConn(0, "test1")
	conn2 := newFakeConn(1, "test2")
	conn3 := newFakeConn(2, "test3")

	router := newRouter(t,
		routing.Route{
			Source:  0,
			Pattern: topic.Parse("/test1/input/#"),
			Destinations: []routing.Destination{
				{Conn: 1, Topic: topic.Parse("/test2/output/test1"), QoS: broker.AtLeastOnce},
			},
		},
		routing.Route{
			Source:  0,
			Pattern: topic.Parse("/test1/input/#"),
			Destinations: []routing.Destination{
				{Conn: 2, Topic: topic.Parse("/test3/output/test1"), QoS: broker.AtLeastOnce},
			},
		},
	)

	b, err := New(Config{}, router, []broker.Connection{conn1, conn2, conn3})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer b.Close()

	// The source connection subscribed to its pattern exactly once.
	subs := conn1.subscribedPatterns()
	if len(subs) != 1 || subs[0] != "/test1/input/#" {
		t.Fatalf("Expected one subscription to /test1/input/#, got %v", subs)
	}

	conn1.deliver("/test1/input/test", "hello")

	waitFor(t, 2*time.Second, func() bool {
		return len(conn2.publishedMessages()) == 1 && len(conn3.publishedMessages()) == 1
	}, "Expected one publish on each destination connection")

	got2 := conn2.publishedMessages()[0]
	if got2.Topic.String() != "/test2/output/test1/test" {
		t.Errorf("conn2 topic = %q, want %q", got2.Topic.String(), "/test2/output/test1/test")
	}
	if string(got2.Payload) != "hello" {
		t.Errorf("conn2 payload = %q, want %q", got2.Payload, "hello")
	}
	if got2.QoS != broker.AtLeastOnce {
		t.Errorf("conn2 qos = %v, want AtLeastOnce", got2.QoS)
	}

	got3 := conn3.publishedMessages()[0]
	if got3.Topic.String() != "/test3/output/test1/test" {
		t.Errorf("conn3 topic = %q, want %q", got3.Topic.String(), "/test3/output/test1/test")
	}

	// The source connection itself publishes nothing.
	if len(conn1.publishedMessages()) != 0 {
		t.Errorf("Source connection should not receive publishes, got %d", len(conn1.publishedMessages()))
	}
}

// TestBridge_SubscribeFailureIsFatal verifies Start refuses to run when
// any subscription cannot be established.
func TestBridge_SubscribeFailureIsFatal(t *testing.T) {
	conn1 := newFakeConn(0, "east")
	conn2 := newFakeConn(1, "west")
	conn1.subscribeErr = errors.New("broker refused subscription")

	router := newRouter(t, routing.Route{
		Source:  0,
		Pattern: topic.Parse("input/#"),
		Destinations: []routing.Destination{
			{Conn: 1, Topic: topic.Parse("output"), QoS: broker.AtMostOnce},
		},
	})

	b, err := New(Config{}, router, []broker.Connection{conn1, conn2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := b.Start(context.Background()); err == nil {
		t.Fatal("Expected Start to fail on subscription error")
	}
	if b.Started() {
		t.Error("Bridge should not be started after failed Start")
	}
}

// TestBridge_SubscribeQoS verifies the configured subscription QoS is
// used, with AtLeastOnce as the default.
func TestBridge_SubscribeQoS(t *testing.T) {
	route := routing.Route{
		Source:  0,
		Pattern: topic.Parse("input/#"),
		Destinations: []routing.Destination{
			{Conn: 0, Topic: topic.Parse("output"), QoS: broker.AtMostOnce},
		},
	}

	t.Run("defaults_to_at_least_once", func(t *testing.T) {
		conn := newFakeConn(0, "east")
		b, err := New(Config{}, newRouter(t, route), []broker.Connection{conn})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if err := b.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer b.Close()

		qos := conn.subscribedQoS()
		if len(qos) != 1 || qos[0] != broker.AtLeastOnce {
			t.Errorf("Expected one AtLeastOnce subscription, got %v", qos)
		}
	})

	t.Run("configured_level_is_used", func(t *testing.T) {
		conn := newFakeConn(0, "east")
		b, err := New(Config{SubscribeQoS: broker.ExactlyOnce}, newRouter(t, route), []broker.Connection{conn})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if err := b.Start(context.Background()); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		defer b.Close()

		qos := conn.subscribedQoS()
		if len(qos) != 1 || qos[0] != broker.ExactlyOnce {
			t.Errorf("Expected one ExactlyOnce subscription, got %v", qos)
		}
	})

	t.Run("rejects_invalid_level", func(t *testing.T) {
		_, err := New(Config{SubscribeQoS: 7}, newRouter(t, route), []broker.Connection{newFakeConn(0, "east")})
		if err == nil {
			t.Error("Expected invalid subscribe QoS to be rejected")
		}
	})
}

// TestBridge_PublishFailureIsNotFatal verifies one failing destination
// does not stop delivery to the others or kill the pipeline.
func TestBridge_PublishFailureIsNotFatal(t *testing.T) {
	source := newFakeConn(0, "source")
	broken := newFakeConn(1, "broken")
	healthy := newFakeConn(2, "healthy")
	broken.publishErr = errors.New("connection reset")

	router := newRouter(t, routing.Route{
		Source:  0,
		Pattern: topic.Parse("input/#"),
		Destinations: []routing.Destination{
			{Conn: 1, Topic: topic.Parse("out/broken"), QoS: broker.AtLeastOnce},
			{Conn: 2, Topic: topic.Parse("out/healthy"), QoS: broker.AtLeastOnce},
		},
	})

	m := metrics.New()
	b, err := New(Config{}, router, []broker.Connection{source, broken, healthy}, WithMetrics(m))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer b.Close()

	source.deliver("input/a", "1")
	source.deliver("input/b", "2")

	waitFor(t, 2*time.Second, func() bool {
		return len(healthy.publishedMessages()) == 2
	}, "Expected both messages on the healthy destination")

	totals := m.Totals()
	if totals.PublishFailures != 2 {
		t.Errorf("PublishFailures = %d, want 2", totals.PublishFailures)
	}
	if totals.MessagesPublished != 2 {
		t.Errorf("MessagesPublished = %d, want 2", totals.MessagesPublished)
	}
	if !b.Started() {
		t.Error("Bridge should still be running after publish failures")
	}
}

// TestBridge_UnmatchedMessagesDropped verifies messages with no route
// produce no publishes and are counted as unrouted.
func TestBridge_UnmatchedMessagesDropped(t *testing.T) {
	source := newFakeConn(0, "source")
	sink := newFakeConn(1, "sink")

	router := newRouter(t, routing.Route{
		Source:  0,
		Pattern: topic.Parse("input/#"),
		Destinations: []routing.Destination{
			{Conn: 1, Topic: topic.Parse("out"), QoS: broker.AtMostOnce},
		},
	})

	m := metrics.New()
	b, err := New(Config{}, router, []broker.Connection{source, sink}, WithMetrics(m))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer b.Close()

	source.deliver("elsewhere/topic", "ignored")
	source.deliver("input/kept", "forwarded")

	waitFor(t, 2*time.Second, func() bool {
		return len(sink.publishedMessages()) == 1
	}, "Expected exactly one forwarded message")

	totals := m.Totals()
	if totals.MessagesInbound != 2 {
		t.Errorf("MessagesInbound = %d, want 2", totals.MessagesInbound)
	}
	if totals.MessagesUnrouted != 1 {
		t.Errorf("MessagesUnrouted = %d, want 1", totals.MessagesUnrouted)
	}
}

// TestBridge_StopDrainsQueue verifies forwards accepted before Stop are
// still delivered.
func TestBridge_StopDrainsQueue(t *testing.T) {
	source := newFakeConn(0, "source")
	sink := newFakeConn(1, "sink")

	router := newRouter(t, routing.Route{
		Source:  0,
		Pattern: topic.Parse("input/#"),
		Destinations: []routing.Destination{
			{Conn: 1, Topic: topic.Parse("out"), QoS: broker.AtLeastOnce},
		},
	})

	m := metrics.New()
	b, err := New(Config{QueueSize: 128}, router, []broker.Connection{source, sink}, WithMetrics(m))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	const numMessages = 20
	for i := 0; i < numMessages; i++ {
		source.deliver(fmt.Sprintf("input/%d", i), "x")
	}

	// Wait until every message has been routed onto the queue, then
	// stop; the emitter must drain all of them.
	waitFor(t, 2*time.Second, func() bool {
		return m.Totals().MessagesRouted == numMessages
	}, "Expected all messages routed before stopping")

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := len(sink.publishedMessages()); got != numMessages {
		t.Errorf("Delivered %d messages, want %d", got, numMessages)
	}
	if b.Started() {
		t.Error("Bridge should report stopped")
	}
}

// TestBridge_OrderPreserved verifies messages from one connection are
// published in arrival order: the listener, the queue and the emitter
// are all strictly sequential for a single source.
func TestBridge_OrderPreserved(t *testing.T) {
	source := newFakeConn(0, "source")
	sink := newFakeConn(1, "sink")

	router := newRouter(t, routing.Route{
		Source:  0,
		Pattern: topic.Parse("input/#"),
		Destinations: []routing.Destination{
			{Conn: 1, Topic: topic.Parse("out"), QoS: broker.AtLeastOnce},
		},
	})

	b, err := New(Config{}, router, []broker.Connection{source, sink})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer b.Close()

	const numMessages = 50
	for i := 0; i < numMessages; i++ {
		source.deliver(fmt.Sprintf("input/%d", i), fmt.Sprintf("payload-%d", i))
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(sink.publishedMessages()) == numMessages
	}, "Expected all messages delivered")

	for i, msg := range sink.publishedMessages() {
		want := fmt.Sprintf("out/%d", i)
		if msg.Topic.String() != want {
			t.Fatalf("Message %d arrived out of order: topic %q, want %q", i, msg.Topic.String(), want)
		}
	}
}

// TestBridge_RunUntilCanceled verifies Run blocks on the context and
// shuts the pipeline down cleanly when it is canceled.
func TestBridge_RunUntilCanceled(t *testing.T) {
	source := newFakeConn(0, "source")
	sink := newFakeConn(1, "sink")

	router := newRouter(t, routing.Route{
		Source:  0,
		Pattern: topic.Parse("input/#"),
		Destinations: []routing.Destination{
			{Conn: 1, Topic: topic.Parse("out"), QoS: broker.AtLeastOnce},
		},
	})

	b, err := New(Config{}, router, []broker.Connection{source, sink})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() {
		runDone <- b.Run(ctx)
	}()

	waitFor(t, 2*time.Second, b.Started, "Expected Run to start the bridge")

	source.deliver("input/one", "hi")
	waitFor(t, 2*time.Second, func() bool {
		return len(sink.publishedMessages()) == 1
	}, "Expected the forward to be delivered while running")

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if b.Started() {
		t.Error("Bridge should report stopped after Run returns")
	}
}

// TestBridge_TapRecordsForwards verifies the activity tap sees each
// forward with its resolved destinations.
func TestBridge_TapRecordsForwards(t *testing.T) {
	source := newFakeConn(0, "source")
	sink := newFakeConn(1, "sink")

	router := newRouter(t, routing.Route{
		Source:  0,
		Pattern: topic.Parse("input/#"),
		Destinations: []routing.Destination{
			{Conn: 1, Topic: topic.Parse("out"), QoS: broker.ExactlyOnce},
		},
	})

	activity := tap.New(16)
	b, err := New(Config{}, router, []broker.Connection{source, sink}, WithTap(activity))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer b.Close()

	source.deliver("input/x", "payload")

	waitFor(t, 2*time.Second, func() bool {
		return activity.Total() == 1
	}, "Expected one tap record")

	records, err := activity.Recent(1)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	record := records[0]
	if record.SourceConn != "source" || record.SourceTopic != "input/x" {
		t.Errorf("Record source wrong: %+v", record)
	}
	if record.Bytes != len("payload") {
		t.Errorf("Record bytes = %d, want %d", record.Bytes, len("payload"))
	}
	if len(record.Destinations) != 1 || record.Destinations[0].Topic != "out/x" {
		t.Errorf("Record destinations wrong: %+v", record.Destinations)
	}
	if record.Destinations[0].QoS != broker.ExactlyOnce {
		t.Errorf("Record qos = %v, want ExactlyOnce", record.Destinations[0].QoS)
	}
}

// TestBridge_NewValidation exercises constructor error cases.
func TestBridge_NewValidation(t *testing.T) {
	router := newRouter(t, routing.Route{
		Source:  0,
		Pattern: topic.Parse("a/#"),
		Destinations: []routing.Destination{
			{Conn: 1, Topic: topic.Parse("b"), QoS: broker.AtMostOnce},
		},
	})

	t.Run("rejects_nil_router", func(t *testing.T) {
		_, err := New(Config{}, nil, []broker.Connection{newFakeConn(0, "a")})
		if !errors.Is(err, ErrNilRouter) {
			t.Errorf("Expected ErrNilRouter, got %v", err)
		}
	})

	t.Run("rejects_no_connections", func(t *testing.T) {
		_, err := New(Config{}, router, nil)
		if !errors.Is(err, ErrNoConnections) {
			t.Errorf("Expected ErrNoConnections, got %v", err)
		}
	})

	t.Run("rejects_duplicate_ids", func(t *testing.T) {
		_, err := New(Config{}, router, []broker.Connection{
			newFakeConn(0, "a"), newFakeConn(0, "b"), newFakeConn(1, "c"),
		})
		if !errors.Is(err, ErrDuplicateConn) {
			t.Errorf("Expected ErrDuplicateConn, got %v", err)
		}
	})

	t.Run("rejects_table_with_unknown_connection", func(t *testing.T) {
		_, err := New(Config{}, router, []broker.Connection{newFakeConn(0, "a")})
		if !errors.Is(err, ErrUnknownConn) {
			t.Errorf("Expected ErrUnknownConn, got %v", err)
		}
	})

	t.Run("rejects_negative_queue_size", func(t *testing.T) {
		_, err := New(Config{QueueSize: -1}, router, []broker.Connection{
			newFakeConn(0, "a"), newFakeConn(1, "b"),
		})
		if !errors.Is(err, ErrInvalidQueueSize) {
			t.Errorf("Expected ErrInvalidQueueSize, got %v", err)
		}
	})
}

// TestBridge_Accessors covers the status surface the admin API uses.
func TestBridge_Accessors(t *testing.T) {
	conn1 := newFakeConn(0, "east")
	conn2 := newFakeConn(1, "west")
	conn2.connected = false

	router := newRouter(t, routing.Route{
		Source:  0,
		Pattern: topic.Parse("a/#"),
		Destinations: []routing.Destination{
			{Conn: 1, Topic: topic.Parse("b"), QoS: broker.AtMostOnce},
		},
	})

	b, err := New(Config{QueueSize: 64}, router, []broker.Connection{conn1, conn2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	statuses := b.Connections()
	if len(statuses) != 2 {
		t.Fatalf("Expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Name != "east" || !statuses[0].Connected {
		t.Errorf("First status wrong: %+v", statuses[0])
	}
	if statuses[1].Name != "west" || statuses[1].Connected {
		t.Errorf("Second status wrong: %+v", statuses[1])
	}

	if b.QueueCapacity() != 64 {
		t.Errorf("QueueCapacity = %d, want 64", b.QueueCapacity())
	}
	if b.QueueDepth() != 0 {
		t.Errorf("QueueDepth = %d, want 0 before start", b.QueueDepth())
	}
	if b.Table().Len() != 1 {
		t.Errorf("Table length = %d, want 1", b.Table().Len())
	}
}

// TestBridge_StopIdempotent verifies Stop and Close tolerate repeats.
func TestBridge_StopIdempotent(t *testing.T) {
	source := newFakeConn(0, "source")
	sink := newFakeConn(1, "sink")
	router := newRouter(t, routing.Route{
		Source:  0,
		Pattern: topic.Parse("a/#"),
		Destinations: []routing.Destination{
			{Conn: 1, Topic: topic.Parse("b"), QoS: broker.AtMostOnce},
		},
	})

	b, err := New(Config{}, router, []broker.Connection{source, sink})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := b.Stop(context.Background()); err != nil {
		t.Fatalf("First Stop failed: %v", err)
	}
	if err := b.Stop(context.Background()); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}

	if err := b.Start(context.Background()); err == nil {
		t.Error("Expected Start after Close to fail")
	}
}
