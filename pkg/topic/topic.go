package topic

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// Separator joins segments in the textual form of a topic.
	Separator = "/"

	// SingleLevelWildcard matches exactly one segment at its position.
	SingleLevelWildcard = "+"

	// MultiLevelWildcard matches all remaining segments and must be the
	// final segment of a pattern.
	MultiLevelWildcard = "#"
)

// wildcardChars are the characters that may not appear inside a literal
// pattern segment.
const wildcardChars = MultiLevelWildcard + SingleLevelWildcard

// Common pattern validation errors.
var (
	// ErrMultiLevelNotLast indicates a "#" wildcard somewhere other than
	// the final segment of a pattern.
	ErrMultiLevelNotLast = errors.New("multi-level wildcard must be the final segment")

	// ErrEmbeddedWildcard indicates a wildcard character inside a literal
	// segment, such as "foo+bar".
	ErrEmbeddedWildcard = errors.New("wildcard must occupy an entire segment")
)

// Topic is an immutable, ordered sequence of path segments.
//
// The zero value is the empty topic with no segments. Topics are plain
// values; copying one is cheap and the underlying segments are never
// mutated after construction.
type Topic struct {
	segments []string
}

// Parse splits s on the separator and returns the resulting topic.
//
// Empty segments are preserved: Parse("/a") has segments ["", "a"] and
// Parse("") has the single empty segment [""].
func Parse(s string) Topic {
	return Topic{segments: strings.Split(s, Separator)}
}

// FromSegments builds a topic from the given segments. The slice is
// copied, so the caller may reuse it.
func FromSegments(segments ...string) Topic {
	if len(segments) == 0 {
		return Topic{}
	}
	copied := make([]string, len(segments))
	copy(copied, segments)
	return Topic{segments: copied}
}

// String returns the textual form of the topic, joining segments with
// the separator.
func (t Topic) String() string {
	return strings.Join(t.segments, Separator)
}

// Segments returns a copy of the topic's segments.
func (t Topic) Segments() []string {
	copied := make([]string, len(t.segments))
	copy(copied, t.segments)
	return copied
}

// Len returns the number of segments.
func (t Topic) Len() int {
	return len(t.segments)
}

// Equal reports whether both topics have identical segment sequences.
func (t Topic) Equal(other Topic) bool {
	if len(t.segments) != len(other.segments) {
		return false
	}
	for i, segment := range t.segments {
		if segment != other.segments[i] {
			return false
		}
	}
	return true
}

// Join returns a new topic with the given segments appended. The
// receiver is unchanged.
func (t Topic) Join(suffix ...string) Topic {
	if len(suffix) == 0 {
		return t
	}
	segments := make([]string, 0, len(t.segments)+len(suffix))
	segments = append(segments, t.segments...)
	segments = append(segments, suffix...)
	return Topic{segments: segments}
}

// HasWildcard reports whether any segment is a wildcard.
func (t Topic) HasWildcard() bool {
	for _, segment := range t.segments {
		if segment == SingleLevelWildcard || segment == MultiLevelWildcard {
			return true
		}
	}
	return false
}

// Accepts matches the candidate topic against the receiver, treating the
// receiver as a pattern.
//
// On a match it returns ok == true and the suffix: the candidate
// segments absorbed by a trailing "#", nil when the pattern ends with a
// literal or "+". On a mismatch it returns (nil, false).
//
// Matching walks the pattern left to right:
//   - "#" matches all remaining candidate segments, including none
//   - "+" matches exactly one segment, which must exist
//   - any other segment must equal the candidate segment at the same
//     position
//
// A pattern without "#" only matches candidates of exactly its length.
func (t Topic) Accepts(candidate Topic) (suffix []string, ok bool) {
	for i, segment := range t.segments {
		switch {
		case segment == MultiLevelWildcard:
			if i >= len(candidate.segments) {
				return nil, true
			}
			suffix = make([]string, len(candidate.segments)-i)
			copy(suffix, candidate.segments[i:])
			return suffix, true
		case i >= len(candidate.segments):
			return nil, false
		case segment == SingleLevelWildcard:
			// matches whatever the candidate holds here
		case segment != candidate.segments[i]:
			return nil, false
		}
	}
	if len(t.segments) != len(candidate.segments) {
		return nil, false
	}
	return nil, true
}

// ValidatePattern checks that the topic is a well-formed pattern: "#"
// only as the final segment, and no wildcard characters embedded inside
// literal segments. Topics without wildcards are always valid patterns.
func (t Topic) ValidatePattern() error {
	for i, segment := range t.segments {
		switch {
		case segment == MultiLevelWildcard:
			if i != len(t.segments)-1 {
				return fmt.Errorf("pattern %q: %w", t.String(), ErrMultiLevelNotLast)
			}
		case segment == SingleLevelWildcard:
			// valid at any position
		case strings.ContainsAny(segment, wildcardChars):
			return fmt.Errorf("pattern %q: segment %q: %w", t.String(), segment, ErrEmbeddedWildcard)
		}
	}
	return nil
}
