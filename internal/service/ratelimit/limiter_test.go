package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowIsPerKey(t *testing.T) {
	l := New(0.001, 2)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	assert.True(t, l.Allow("b"))
	assert.Equal(t, 2, l.Len())
}

func TestZeroRateDisablesLimiting(t *testing.T) {
	l := New(0, 1)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("x"))
	}
}

func TestPerMinuteBurstEqualsBudget(t *testing.T) {
	l := PerMinute(3)
	for i := 0; i < 3; i++ {
		require.True(t, l.Allow("10.0.0.1"))
	}
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(0.001, 1)
	require.True(t, l.Allow("k"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "k"))
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestIdleKeysAreEvicted(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 13, 15, 0, 0, 0, time.UTC)}
	l := New(1, 2, WithIdleTTL(time.Minute), WithClock(clk.Now))

	for i := 0; i < 50; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i))
	}
	require.Equal(t, 50, l.Len())

	clk.Advance(30 * time.Second)
	l.Allow("10.0.0.7")
	clk.Advance(45 * time.Second)

	// a new key triggers the sweep; the one touched 45s ago survives
	assert.True(t, l.Allow("10.0.1.1"))
	assert.Equal(t, 2, l.Len())
}

func TestSweepKeepsDrainedBuckets(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 13, 15, 0, 0, 0, time.UTC)}
	l := New(0.001, 1, WithIdleTTL(time.Minute), WithClock(clk.Now))

	require.True(t, l.Allow("a"))
	require.True(t, l.Allow("b"))
	clk.Advance(2 * time.Minute)

	assert.Zero(t, l.Sweep())
	assert.Equal(t, 2, l.Len())
	assert.False(t, l.Allow("a"))
}

func TestZeroIdleTTLKeepsKeys(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	l := New(10, 1, WithIdleTTL(0), WithClock(clk.Now))
	l.Allow("a")
	clk.Advance(24 * time.Hour)
	l.Allow("b")

	assert.Zero(t, l.Sweep())
	assert.Equal(t, 2, l.Len())
}
