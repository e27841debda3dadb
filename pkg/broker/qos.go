package broker

import (
	"errors"
	"fmt"
)

// QoS is a delivery guarantee level. The numeric values follow the MQTT
// wire encoding.
type QoS byte

const (
	// AtMostOnce delivers with no acknowledgement; messages may be lost.
	AtMostOnce QoS = 0

	// AtLeastOnce delivers with acknowledgement; messages may be
	// duplicated.
	AtLeastOnce QoS = 1

	// ExactlyOnce delivers through the four-way handshake; messages
	// arrive exactly once.
	ExactlyOnce QoS = 2
)

// ErrInvalidQoS indicates a quality-of-service value outside 0..2.
var ErrInvalidQoS = errors.New("qos must be 0, 1, or 2")

// QoSFromInt converts a plain integer, such as one read from
// configuration, into a QoS level. Values outside 0..2 return
// ErrInvalidQoS.
func QoSFromInt(v int) (QoS, error) {
	if v < 0 || v > 2 {
		return 0, fmt.Errorf("qos %d: %w", v, ErrInvalidQoS)
	}
	return QoS(v), nil
}

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "AtMostOnce"
	case AtLeastOnce:
		return "AtLeastOnce"
	case ExactlyOnce:
		return "ExactlyOnce"
	default:
		return fmt.Sprintf("QoS(%d)", byte(q))
	}
}
