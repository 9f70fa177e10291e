package escalation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_DelayNoJitter_DoublesPerAttempt(t *testing.T) {
	t.Parallel()
	b := Backoff{Base: 100 * time.Millisecond, MaxDelay: 30 * time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, b.DelayNoJitter(c.attempt))
	}
}

func TestBackoff_DelayNoJitter_CapsAtMaxDelay(t *testing.T) {
	t.Parallel()
	b := Backoff{Base: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}
	assert.Equal(t, 500*time.Millisecond, b.DelayNoJitter(10))
}

func TestBackoff_Delay_StaysWithinJitterBand(t *testing.T) {
	t.Parallel()
	b := Backoff{Base: 1 * time.Second, MaxDelay: 30 * time.Second, JitterFactor: 0.2}
	base := float64(b.DelayNoJitter(2))

	for i := 0; i < 200; i++ {
		d := float64(b.Delay(2))
		assert.GreaterOrEqual(t, d, base*0.8)
		assert.LessOrEqual(t, d, base*1.2)
	}
}

func TestDefaultBackoff_MatchesSpecConstants(t *testing.T) {
	t.Parallel()
	b := DefaultBackoff()
	assert.Equal(t, 100*time.Millisecond, b.Base)
	assert.Equal(t, 0.2, b.JitterFactor)
}
