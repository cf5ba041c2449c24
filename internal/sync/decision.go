package sync

import "time"

// Decision is the outcome of comparing a video frame's scheduled
// presentation time against the current wall clock.
type Decision int

const (
	// Drop: the frame's presentation time has already passed by more than
	// DropThreshold; presenting it now would show a stale frame, so skip
	// straight to whatever frame comes next.
	Drop Decision = iota
	// Present: the frame is due now, or late but within DropThreshold; show
	// it immediately.
	Present
	// SleepThenPresent: the frame is early, but within MaxSleep; sleep the
	// difference and present on schedule.
	SleepThenPresent
	// Hold: the frame is more than MaxSleep early; return it to the caller
	// to re-evaluate later rather than blocking the present loop for that
	// long.
	Hold
)

// Thresholds bound the four-way decision below, named after the
// synchronizer's threshold_drop and threshold_wait settings.
type Thresholds struct {
	// DropThreshold is the (negative) skew past which a late frame is
	// dropped rather than shown.
	DropThreshold time.Duration
	// MaxSleep is threshold_wait: the most a frame may be early before it's
	// held instead of slept on.
	MaxSleep time.Duration
}

// DefaultThresholds holds threshold_drop and threshold_wait at their wire
// protocol defaults.
var DefaultThresholds = Thresholds{
	DropThreshold: -50 * time.Millisecond,
	MaxSleep:      40 * time.Millisecond,
}

// Decide compares due (the frame's scheduled wall-clock presentation time)
// against now and returns the action to take, along with how long to sleep
// for SleepThenPresent.
func Decide(now, due time.Time, th Thresholds) (Decision, time.Duration) {
	skew := due.Sub(now)

	switch {
	case skew < th.DropThreshold:
		return Drop, 0
	case skew <= 0:
		return Present, 0
	case skew <= th.MaxSleep:
		return SleepThenPresent, skew
	default:
		return Hold, 0
	}
}
