// Package routing defines the routing table and the router contract.
//
// This package provides:
//   - Destination: a (connection, topic, QoS) delivery target
//   - Route: a source pattern fanned out to one or more destinations
//   - Table: an immutable, validated, ordered collection of routes
//   - Forward: one inbound message resolved into concrete deliveries
//   - Router: the resolution contract implemented under internal/
//
// A Table is built once at startup and never mutated, which is what
// makes routing safe to run concurrently from every listener goroutine
// without locks. Routing itself is total: resolving a message can say
// "no destinations" but it can never fail.
//
// The interfaces use Go idioms:
//   - Comma-ok returns for lookups that may find nothing
//   - Value types with unexported fields for immutability
//   - Explicit error returns at construction time, where all
//     validation happens
package routing
