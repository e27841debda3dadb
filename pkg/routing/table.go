package routing

import (
	"errors"
	"fmt"

	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/topic"
)

var (
	// ErrNoDestinations is returned when a route lists no delivery
	// targets.
	ErrNoDestinations = errors.New("route has no destinations")

	// ErrWildcardDestination is returned when a destination topic
	// contains a wildcard segment.
	ErrWildcardDestination = errors.New("destination topic may not contain wildcards")
)

// Destination is a single delivery target: publish on Conn under Topic
// at QoS. When the route's pattern ends in a multi-level wildcard, the
// matched suffix is appended to Topic at resolution time.
type Destination struct {
	Conn  broker.ConnID
	Topic topic.Topic
	QoS   broker.QoS
}

// Route forwards messages arriving on the Source connection whose topic
// matches Pattern to every entry in Destinations.
type Route struct {
	Source       broker.ConnID
	Pattern      topic.Topic
	Destinations []Destination
}

// Table is an immutable, ordered collection of routes. All validation
// happens in NewTable; a Table that exists is a Table that is valid.
//
// It is safe for concurrent use.
type Table struct {
	routes []Route
}

// NewTable validates the given routes and builds a table from them.
// Route order is preserved; resolution visits routes in this order.
//
// Validation rejects:
//   - malformed source patterns ("#" before the final segment, or
//     wildcard characters embedded in a literal segment)
//   - routes without destinations
//   - destination topics containing wildcards
func NewTable(routes ...Route) (*Table, error) {
	for i, route := range routes {
		if err := route.Pattern.ValidatePattern(); err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		if len(route.Destinations) == 0 {
			return nil, fmt.Errorf("route %d (%s): %w", i, route.Pattern.String(), ErrNoDestinations)
		}
		for _, dest := range route.Destinations {
			if dest.Topic.HasWildcard() {
				return nil, fmt.Errorf("route %d (%s): destination %q: %w",
					i, route.Pattern.String(), dest.Topic.String(), ErrWildcardDestination)
			}
		}
	}

	copied := make([]Route, len(routes))
	copy(copied, routes)
	return &Table{routes: copied}, nil
}

// Routes returns a copy of the table's routes in resolution order.
func (t *Table) Routes() []Route {
	copied := make([]Route, len(t.routes))
	copy(copied, t.routes)
	return copied
}

// Len returns the number of routes in the table.
func (t *Table) Len() int {
	return len(t.routes)
}

// SubscriptionsFor returns the source patterns the given connection must
// subscribe to, in route order with exact duplicates removed.
func (t *Table) SubscriptionsFor(conn broker.ConnID) []topic.Topic {
	seen := make(map[string]bool)
	var patterns []topic.Topic
	for _, route := range t.routes {
		if route.Source != conn {
			continue
		}
		key := route.Pattern.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		patterns = append(patterns, route.Pattern)
	}
	return patterns
}

// Conns returns the identifiers of every connection the table refers to,
// as sources or destinations, in first-appearance order.
func (t *Table) Conns() []broker.ConnID {
	seen := make(map[broker.ConnID]bool)
	var ids []broker.ConnID
	add := func(id broker.ConnID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, route := range t.routes {
		add(route.Source)
		for _, dest := range route.Destinations {
			add(dest.Conn)
		}
	}
	return ids
}
