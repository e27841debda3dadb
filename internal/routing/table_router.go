// Package routing implements the routing.Router contract against an
// immutable table, with an optional LRU cache over resolved topics.
package routing

import (
	"fmt"
	"strconv"

	"github.com/fogfish/opts"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rmacdonaldsmith/mqttbridge-go/internal/metrics"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/routing"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/topic"
)

// DefaultCacheSize is the number of resolved topics kept when no
// WithCacheSize option is given.
const DefaultCacheSize = 1024

// TableRouter resolves messages against a fixed routing table.
//
// Resolution is deterministic for a given (source, topic) pair because
// the table never changes, which is what makes the result cacheable.
// The cache is keyed by source connection and topic; the cached value
// is the fully resolved destination list, shared by every forward for
// that topic, so callers must treat Forward.Destinations as read-only.
//
// It is safe for concurrent use.
type TableRouter struct {
	table  *routing.Table
	routes []routing.Route

	cacheSize int
	cache     *lru.Cache[string, []routing.ResolvedDestination]
	metrics   *metrics.Metrics
}

var (
	// WithCacheSize sets the number of resolved topics to cache.
	// Zero disables the cache entirely.
	WithCacheSize = opts.ForName[TableRouter, int]("cacheSize")

	// WithMetrics wires cache hit and miss counters.
	WithMetrics = opts.ForName[TableRouter, *metrics.Metrics]("metrics")
)

// New creates a TableRouter over the given table.
func New(table *routing.Table, options ...opts.Option[TableRouter]) (*TableRouter, error) {
	r := &TableRouter{
		table:     table,
		routes:    table.Routes(),
		cacheSize: DefaultCacheSize,
	}
	if err := opts.Apply(r, options); err != nil {
		return nil, fmt.Errorf("apply router options: %w", err)
	}

	if r.cacheSize > 0 {
		cache, err := lru.New[string, []routing.ResolvedDestination](r.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create route cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Route implements routing.Router.
func (r *TableRouter) Route(source broker.ConnID, msg broker.Message) (*routing.Forward, bool) {
	destinations := r.destinationsFor(source, msg.Topic)
	if len(destinations) == 0 {
		return nil, false
	}
	return &routing.Forward{
		Source:       source,
		SourceTopic:  msg.Topic,
		Payload:      msg.Payload,
		Destinations: destinations,
	}, true
}

// Table implements routing.Router.
func (r *TableRouter) Table() *routing.Table {
	return r.table
}

func (r *TableRouter) destinationsFor(source broker.ConnID, t topic.Topic) []routing.ResolvedDestination {
	if r.cache == nil {
		return r.resolve(source, t)
	}

	key := cacheKey(source, t)
	if cached, ok := r.cache.Get(key); ok {
		if r.metrics != nil {
			r.metrics.RouteCacheHit()
		}
		return cached
	}

	destinations := r.resolve(source, t)
	r.cache.Add(key, destinations)
	if r.metrics != nil {
		r.metrics.RouteCacheMiss()
	}
	return destinations
}

// resolve walks every route in table order and collects destinations
// from all that match. Later routes never shadow earlier ones.
func (r *TableRouter) resolve(source broker.ConnID, t topic.Topic) []routing.ResolvedDestination {
	var destinations []routing.ResolvedDestination
	for _, route := range r.routes {
		if route.Source != source {
			continue
		}
		suffix, ok := route.Pattern.Accepts(t)
		if !ok {
			continue
		}
		for _, dest := range route.Destinations {
			destinations = append(destinations, routing.ResolvedDestination{
				Conn:  dest.Conn,
				Topic: dest.Topic.Join(suffix...),
				QoS:   dest.QoS,
			})
		}
	}
	return destinations
}

func cacheKey(source broker.ConnID, t topic.Topic) string {
	return strconv.Itoa(int(source)) + "|" + t.String()
}

// Verify that TableRouter implements the Router interface at compile time
var _ routing.Router = (*TableRouter)(nil)
