// Package topic provides the topic path value type and wildcard matching.
//
// This package defines the lowest-level abstractions of the bridge:
//   - Topic: an immutable, ordered sequence of path segments
//   - Accepts: hierarchical pattern matching with MQTT wildcard semantics
//
// A topic's textual form joins its segments with "/". Matching is
// segment-by-segment, never separator-aware, so leading, trailing and
// doubled separators produce empty segments that participate in matching
// like any other segment.
//
// Wildcards follow MQTT filter rules:
//   - "+" matches exactly one segment at its position
//   - "#" matches all remaining segments (zero or more) and is only valid
//     as the final segment of a pattern
//
// Example usage:
//
//	pattern := topic.Parse("sensors/+/temperature/#")
//	inbound := topic.Parse("sensors/kitchen/temperature/celsius")
//
//	if suffix, ok := pattern.Accepts(inbound); ok {
//		// suffix == []string{"celsius"}
//		out := topic.Parse("mirror/temperature").Join(suffix...)
//		// out.String() == "mirror/temperature/celsius"
//	}
//
// All functions in this package are pure; Topic values are safe to share
// across goroutines without synchronization.
package topic
