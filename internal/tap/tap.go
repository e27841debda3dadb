// Package tap keeps a bounded in-memory record of recent forwards so
// the admin API can show what the bridge has been doing without any
// external storage.
package tap

import (
	"errors"
	"sync"
	"time"

	"github.com/rmacdonaldsmith/mqttbridge-go/pkg/broker"
)

// DefaultCapacity is the ring size used when the configured capacity is
// zero or negative.
const DefaultCapacity = 512

// ErrNegativeLimit is returned when a negative limit is provided
var ErrNegativeLimit = errors.New("limit cannot be negative")

// Destination is one delivery of a recorded forward.
type Destination struct {
	Connection string     `json:"connection"`
	Topic      string     `json:"topic"`
	QoS        broker.QoS `json:"qos"`
}

// Record is one forward as seen by the tap.
type Record struct {
	Seq          int64         `json:"seq"`
	Time         time.Time     `json:"time"`
	SourceConn   string        `json:"source_connection"`
	SourceTopic  string        `json:"source_topic"`
	Destinations []Destination `json:"destinations"`
	Bytes        int           `json:"bytes"`
}

// Tap is a fixed-capacity ring of recent Records. Once full, each new
// record overwrites the oldest one. It is safe for concurrent use.
type Tap struct {
	mu       sync.RWMutex
	capacity int
	records  []Record
	next     int
	total    int64
}

// New creates a tap holding up to capacity records. Non-positive
// capacities fall back to DefaultCapacity.
func New(capacity int) *Tap {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tap{
		capacity: capacity,
		records:  make([]Record, 0, capacity),
	}
}

// Append stores a record, assigning its sequence number and, when
// unset, its timestamp. The stored record is returned.
func (t *Tap) Append(record Record) Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	record.Seq = t.total
	if record.Time.IsZero() {
		record.Time = time.Now().UTC()
	}

	if len(t.records) < t.capacity {
		t.records = append(t.records, record)
	} else {
		t.records[t.next] = record
	}
	t.next = (t.next + 1) % t.capacity

	return record
}

// Recent returns up to limit records, newest first. A zero limit
// returns an empty slice.
func (t *Tap) Recent(limit int) ([]Record, error) {
	if limit < 0 {
		return nil, ErrNegativeLimit
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit == 0 || len(t.records) == 0 {
		return make([]Record, 0), nil
	}
	if limit > len(t.records) {
		limit = len(t.records)
	}

	results := make([]Record, 0, limit)
	// Walk backwards from the most recent write position.
	idx := t.next - 1
	for i := 0; i < limit; i++ {
		if idx < 0 {
			idx = len(t.records) - 1
		}
		results = append(results, t.records[idx])
		idx--
	}
	return results, nil
}

// Len returns the number of records currently held.
func (t *Tap) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Total returns how many records have ever been appended, including
// ones the ring has already overwritten.
func (t *Tap) Total() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}
