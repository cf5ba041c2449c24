package bitrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zsiec/mirror-receiver/internal/transport"
)

func TestControllerDecreasesOnHighLoss(t *testing.T) {
	c := NewController(Config{MinKbps: 500, MaxKbps: 20_000, InitialKbps: 10_000})

	kbps, changed := c.Tick(transport.Stats{PacketsReceived: 90, PacketsLost: 10})
	require.True(t, changed)
	require.Less(t, kbps, uint32(10_000))
	require.InDelta(t, float64(10_000)*decreaseFactor, float64(kbps), 1)
}

func TestControllerIncreasesOnCleanLink(t *testing.T) {
	c := NewController(Config{MinKbps: 500, MaxKbps: 20_000, InitialKbps: 5_000})

	kbps, changed := c.Tick(transport.Stats{PacketsReceived: 1000, PacketsLost: 0})
	require.True(t, changed)
	require.Equal(t, uint32(5_000+increaseStepKbps), kbps)
}

func TestControllerHoldsSteadyInDeadZone(t *testing.T) {
	c := NewController(Config{MinKbps: 500, MaxKbps: 20_000, InitialKbps: 5_000})

	// 1% loss: between the 0.5% increase threshold and the 2% decrease
	// threshold, so the controller neither backs off nor steps up.
	kbps, changed := c.Tick(transport.Stats{PacketsReceived: 990, PacketsLost: 10})
	require.False(t, changed)
	require.Equal(t, uint32(5_000), kbps)
}

func TestControllerClampsToMax(t *testing.T) {
	c := NewController(Config{MinKbps: 500, MaxKbps: 5_200, InitialKbps: 5_000})
	kbps, _ := c.Tick(transport.Stats{PacketsReceived: 1000})
	require.Equal(t, uint32(5_200), kbps)
}

func TestControllerDecreasesOnJitterSpikeOverBaseline(t *testing.T) {
	c := NewController(Config{MinKbps: 500, MaxKbps: 20_000, InitialKbps: 10_000})

	// Establish a low-jitter baseline first.
	baseline, _ := c.Tick(transport.Stats{PacketsReceived: 1000, Jitter: 2 * time.Millisecond})

	// A spike well above the smoothed baseline (delta > 20ms) triggers a
	// decrease, even though loss is zero.
	kbps, changed := c.Tick(transport.Stats{PacketsReceived: 2000, Jitter: 30 * time.Millisecond})
	require.True(t, changed)
	require.Less(t, kbps, baseline)
}

func TestControllerDoesNotDecreaseForeverUnderSustainedJitter(t *testing.T) {
	c := NewController(Config{MinKbps: 500, MaxKbps: 20_000, InitialKbps: 10_000})
	stats := transport.Stats{PacketsReceived: 1000, Jitter: 25 * time.Millisecond}

	var last uint32
	decreasedAfterFirstTick := false
	for i := 0; i < 20; i++ {
		stats.PacketsReceived += 1000
		kbps, _ := c.Tick(stats)
		if i > 0 && kbps < last {
			decreasedAfterFirstTick = true
		}
		last = kbps
	}

	require.False(t, decreasedAfterFirstTick, "jitter_delta should settle once the EWMA baseline catches up to a constant jitter, even though the absolute jitter stays above jitterDecreaseDeltaThreshold")
}

func TestControllerLossRatioExcludesRecoveredPackets(t *testing.T) {
	c := NewController(Config{MinKbps: 500, MaxKbps: 20_000, InitialKbps: 10_000})

	// 1 unrecovered loss against only 4 received packets is a 20% loss
	// ratio; a denominator that folded in the 95 FEC-recovered packets
	// would dilute that below the decrease threshold.
	kbps, changed := c.Tick(transport.Stats{PacketsReceived: 4, PacketsRecovered: 95, PacketsLost: 1})
	require.True(t, changed)
	require.Less(t, kbps, uint32(10_000))
}
