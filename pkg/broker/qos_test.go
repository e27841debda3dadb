package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQoSFromInt(t *testing.T) {
	t.Run("accepts_valid_levels", func(t *testing.T) {
		for v, want := range map[int]QoS{0: AtMostOnce, 1: AtLeastOnce, 2: ExactlyOnce} {
			got, err := QoSFromInt(v)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("rejects_out_of_range", func(t *testing.T) {
		for _, v := range []int{-1, 3, 255, 1000} {
			_, err := QoSFromInt(v)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidQoS)
		}
	})
}

func TestQoSString(t *testing.T) {
	assert.Equal(t, "AtMostOnce", AtMostOnce.String())
	assert.Equal(t, "AtLeastOnce", AtLeastOnce.String())
	assert.Equal(t, "ExactlyOnce", ExactlyOnce.String())
	assert.Equal(t, "QoS(7)", QoS(7).String())
}

func TestNotificationVariants(t *testing.T) {
	notifications := []Notification{
		MessageReceived{},
		Connected{Resumed: true},
		ConnectionLost{Err: assert.AnError},
	}

	for _, n := range notifications {
		switch n := n.(type) {
		case MessageReceived, Connected:
			// carries no error
		case ConnectionLost:
			assert.Error(t, n.Err)
		default:
			t.Fatalf("unexpected notification type %T", n)
		}
	}
}
