// Package bitrate implements an AIMD controller that watches transport loss
// and jitter, and tells the capture agent to back off or step up via a
// control-plane SetBitrate message. Controller.Tick never sends anything;
// it returns the new target and the caller decides whether and how to
// deliver it. Controller.RequestKeyframe is the one method that writes to
// the transport itself.
package bitrate

import (
	"sync/atomic"
	"time"

	"github.com/zsiec/mirror-receiver/internal/transport"
)

// Tunables match the controller's AIMD policy: decrease multiplicatively
// when loss or jitter-delta exceeds its decrease threshold, increase
// additively by a fixed step when both are below their increase thresholds,
// and hold steady in between, once per tick.
const (
	lossDecreaseThreshold        = 0.02 // 2% packet loss over the stats window
	jitterDecreaseDeltaThreshold = 20 * time.Millisecond
	decreaseFactor               = 0.85

	lossIncreaseThreshold        = 0.005 // 0.5%
	jitterIncreaseDeltaThreshold = 5 * time.Millisecond
	increaseStepKbps             = 500

	// TickInterval is how often Controller.Tick should be called.
	TickInterval = time.Second
	// StatsWindow is the nominal loss-evaluation window. Tick does not
	// aggregate over it: Tick takes transport.Tracker's cumulative counters
	// and evaluates the deltas since its previous call, i.e. one
	// TickInterval when driven on TickInterval. No 4s rolling history is
	// kept.
	StatsWindow = 4 * time.Second
)

// Config bounds the controller's output.
type Config struct {
	MinKbps     uint32
	MaxKbps     uint32
	InitialKbps uint32
}

// Controller runs the AIMD loop. Tick is not safe for concurrent use;
// callers drive it from a single goroutine on a 1s ticker. RequestKeyframe
// may be called from any goroutine.
type Controller struct {
	cfg     Config
	current float64

	smoothedJitter *ewma

	prevReceived uint64
	prevLost     uint64

	lastKeyframeRequest atomic.Int64 // UnixNano of the last request sent
}

func NewController(cfg Config) *Controller {
	if cfg.InitialKbps == 0 {
		cfg.InitialKbps = cfg.MinKbps
	}
	return &Controller{
		cfg:            cfg,
		current:        float64(cfg.InitialKbps),
		smoothedJitter: newEWMA(0.2),
	}
}

// Tick evaluates one window of transport.Stats and returns the new target
// bitrate in kbps, along with whether it changed from the previous tick.
// The AIMD gate runs on jitter_delta (the current sample minus the EWMA
// baseline), not the smoothed jitter itself: a link with sustained jitter
// above the absolute threshold would otherwise decrease forever, while a
// real spike over a quiet baseline might not cross an absolute threshold at
// all. loss_ratio excludes FEC-recovered packets from its denominator,
// since those never cost the presentation pipeline a frame.
func (c *Controller) Tick(stats transport.Stats) (kbps uint32, changed bool) {
	windowReceived := stats.PacketsReceived - c.prevReceived
	windowLost := stats.PacketsLost - c.prevLost

	var lossRatio float64
	if total := windowReceived + windowLost; total > 0 {
		lossRatio = float64(windowLost) / float64(total)
	}

	currentJitter := float64(stats.Jitter)
	jitterDelta := time.Duration(currentJitter - c.smoothedJitter.avg())
	c.smoothedJitter.update(currentJitter)

	before := c.current
	switch {
	case lossRatio > lossDecreaseThreshold || jitterDelta > jitterDecreaseDeltaThreshold:
		c.current *= decreaseFactor
	case lossRatio < lossIncreaseThreshold && jitterDelta < jitterIncreaseDeltaThreshold:
		c.current += increaseStepKbps
	}

	if c.current < float64(c.cfg.MinKbps) {
		c.current = float64(c.cfg.MinKbps)
	}
	if c.current > float64(c.cfg.MaxKbps) {
		c.current = float64(c.cfg.MaxKbps)
	}

	c.prevReceived = stats.PacketsReceived
	c.prevLost = stats.PacketsLost

	return uint32(c.current), c.current != before
}
