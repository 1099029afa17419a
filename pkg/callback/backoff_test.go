package callback_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slipverify/notifier/pkg/callback"
)

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	b := callback.ExponentialBackoff{InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2}
	assert.Equal(t, time.Duration(0), b.NextInterval(0))
	assert.Equal(t, 100*time.Millisecond, b.NextInterval(1))
	assert.Equal(t, 200*time.Millisecond, b.NextInterval(2))
	assert.Equal(t, 800*time.Millisecond, b.NextInterval(4))
	assert.Equal(t, time.Second, b.NextInterval(10))
}

func TestExponentialBackoff_Jitter(t *testing.T) {
	t.Parallel()

	b := callback.ExponentialBackoff{InitialInterval: time.Second, MaxInterval: time.Minute, JitterFactor: 0.1}
	for range 100 {
		d := b.NextInterval(2)
		assert.GreaterOrEqual(t, d, 1800*time.Millisecond)
		assert.LessOrEqual(t, d, 2200*time.Millisecond)
	}
}

func TestFixedBackoff(t *testing.T) {
	t.Parallel()

	b := callback.FixedBackoff(time.Second)
	assert.Equal(t, time.Duration(0), b.NextInterval(0))
	assert.Equal(t, time.Second, b.NextInterval(1))
	assert.Equal(t, time.Second, b.NextInterval(7))
}
