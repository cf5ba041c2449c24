package bitrate

// ewma is an exponentially weighted moving average, grounded on the same
// smoothing shape the transport layer uses for jitter: an uninitialized
// average snaps to the first sample, every subsequent sample nudges it by
// alpha times the delta.
type ewma struct {
	initialized bool
	alpha       float64
	average     float64
}

func newEWMA(alpha float64) *ewma {
	return &ewma{alpha: alpha}
}

func (e *ewma) update(sample float64) {
	if !e.initialized {
		e.initialized = true
		e.average = sample
		return
	}
	e.average += e.alpha * (sample - e.average)
}

func (e *ewma) avg() float64 { return e.average }
