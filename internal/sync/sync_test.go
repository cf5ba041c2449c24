package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClockEstablishesBaselineOnFirstObservation(t *testing.T) {
	c := NewClock()
	require.True(t, c.WallTime(1000).IsZero())

	start := time.Now()
	c.Observe(0, start)
	require.Equal(t, start, c.WallTime(0))
	require.Equal(t, start.Add(16*time.Millisecond), c.WallTime(16_000))
}

func TestClockSlewsTowardDriftRatherThanStepping(t *testing.T) {
	c := NewClock()
	start := time.Now()
	c.Observe(0, start)

	// A reference sample arriving 50ms later than the baseline predicts
	// (a full 50ms step) should only be partially corrected on first slew.
	later := start.Add(1 * time.Second)
	c.Observe(1_000_000, later.Add(50*time.Millisecond))

	predicted := c.WallTime(1_000_000)
	drift := predicted.Sub(later)
	require.Greater(t, drift, time.Duration(0))
	require.Less(t, drift, 50*time.Millisecond)
}

func TestDecideDropsStaleFrame(t *testing.T) {
	now := time.Now()
	due := now.Add(-200 * time.Millisecond)
	d, _ := Decide(now, due, DefaultThresholds)
	require.Equal(t, Drop, d)
}

func TestDecidePresentsDueOrSalvageablyLateFrame(t *testing.T) {
	now := time.Now()
	due := now.Add(-5 * time.Millisecond)
	d, _ := Decide(now, due, DefaultThresholds)
	require.Equal(t, Present, d)
}

func TestDecideSleepsForNearFutureFrame(t *testing.T) {
	now := time.Now()
	due := now.Add(20 * time.Millisecond)
	d, sleep := Decide(now, due, DefaultThresholds)
	require.Equal(t, SleepThenPresent, d)
	require.Equal(t, 20*time.Millisecond, sleep)
}

func TestDecideHoldsFarFutureFrame(t *testing.T) {
	now := time.Now()
	due := now.Add(time.Second)
	d, _ := Decide(now, due, DefaultThresholds)
	require.Equal(t, Hold, d)
}
