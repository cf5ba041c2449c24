// Package sync maps presentation timestamps from the wire onto wall-clock
// time, using the audio stream as the reference clock when present (since
// audio underrun is far more perceptible than video jitter) and the local
// monotonic clock otherwise, and decides when each video frame should be
// dropped, presented immediately, or held for later presentation.
package sync

import (
	"sync"
	"time"
)

// maxSlewRate bounds how fast Clock corrects its offset estimate, in
// seconds of correction per second of wall-clock time. Correcting in one
// step would make the presentation clock jump, visible as a stutter;
// slewing it in keeps frame-to-frame timing smooth while still tracking
// drift between the capture agent's clock and the local one.
const maxSlewRate = 0.05

// Clock maps a stream's PTS (microseconds, zero-based at stream start) onto
// local wall-clock time. The first PTS observed establishes the baseline;
// subsequent observations slew the offset toward agreement with the
// reference rather than stepping it.
type Clock struct {
	mu sync.Mutex

	haveBaseline bool
	baselinePTS  int64
	baselineWall time.Time
	lastObserved time.Time
	offset       time.Duration
}

// NewClock returns a Clock with no baseline; the first call to Observe
// establishes it.
func NewClock() *Clock {
	return &Clock{}
}

// Observe feeds one reference-stream sample (typically an audio frame's
// PTS, arriving at wall-clock time `at`) into the clock, slewing the
// internal offset toward the sample's implied offset.
func (c *Clock) Observe(ptsMicros int64, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.haveBaseline {
		c.baselinePTS = ptsMicros
		c.baselineWall = at
		c.haveBaseline = true
		c.lastObserved = at
		return
	}

	expected := c.baselineWall.Add(time.Duration(ptsMicros-c.baselinePTS) * time.Microsecond)
	delta := at.Sub(expected) - c.offset

	elapsed := at.Sub(c.lastObserved).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	c.lastObserved = at
	maxCorrection := time.Duration(maxSlewRate*elapsed*float64(time.Second)) + time.Millisecond
	if delta > maxCorrection {
		delta = maxCorrection
	} else if delta < -maxCorrection {
		delta = -maxCorrection
	}
	c.offset += delta
}

// WallTime returns the local wall-clock instant at which ptsMicros should
// be presented, given the current baseline and offset. Returns the zero
// time if no baseline has been established yet.
func (c *Clock) WallTime(ptsMicros int64) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.haveBaseline {
		return time.Time{}
	}
	return c.baselineWall.Add(time.Duration(ptsMicros-c.baselinePTS)*time.Microsecond + c.offset)
}
