// Package transport defines the Transport interface both the reliable
// (TCP) and datagram (QUIC) implementations satisfy, plus the rolling
// statistics the bitrate controller reads.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/zsiec/mirror-receiver/internal/wire"
)

// Transport delivers framed Packets from the capture agent and accepts
// outgoing control packets. Implementations publish video and audio
// packets on separate channels; both channels close when the connection
// terminates, with no further sends afterward.
type Transport interface {
	// Video returns the channel video-kind packets are published on.
	Video() <-chan wire.Packet
	// Audio returns the channel audio-kind packets are published on.
	Audio() <-chan wire.Packet
	// SendControl writes a control packet back to the capture agent.
	SendControl(ctx context.Context, payload []byte) error
	// Stats returns a point-in-time snapshot of rolling transport counters.
	Stats() Stats
	// Close terminates the connection and closes the Video/Audio channels.
	Close() error
}

// Stats is a rolling snapshot of transport-level counters, updated by the
// transport's read goroutine and read by the bitrate controller under
// Tracker's lock. All reads are snapshots; no caller holds a long-lived
// reference into live counters.
type Stats struct {
	PacketsReceived  uint64
	BytesReceived    uint64
	PacketsRecovered uint64
	PacketsLost      uint64
	RTT              time.Duration // zero if unavailable
	Jitter           time.Duration // EWMA of one-way jitter
}

// Tracker accumulates Stats under a lightweight lock, shared between a
// transport's read goroutine (writer) and the bitrate controller (reader).
type Tracker struct {
	mu    sync.RWMutex
	stats Stats

	jitterInit bool
	lastArrive time.Time
	lastPTS    time.Duration
}

// AddReceived records one received packet of n bytes.
func (t *Tracker) AddReceived(n int) {
	t.mu.Lock()
	t.stats.PacketsReceived++
	t.stats.BytesReceived += uint64(n)
	t.mu.Unlock()
}

// AddRecovered records a packet reconstructed by FEC.
func (t *Tracker) AddRecovered(n int) {
	t.mu.Lock()
	t.stats.PacketsRecovered += uint64(n)
	t.mu.Unlock()
}

// AddLost records packets declared unrecoverably lost.
func (t *Tracker) AddLost(n int) {
	t.mu.Lock()
	t.stats.PacketsLost += uint64(n)
	t.mu.Unlock()
}

// SetRTT updates the round-trip estimate, when the underlying transport
// exposes one (QUIC does; a plain TCP stream does not).
func (t *Tracker) SetRTT(d time.Duration) {
	t.mu.Lock()
	t.stats.RTT = d
	t.mu.Unlock()
}

// jitterAlpha is the EWMA smoothing factor for one-way jitter. (The bitrate
// controller smooths its jitter baseline separately, with alpha 0.2.)
const jitterAlpha = 0.1

// Observe feeds one packet's arrival into the jitter EWMA, following RFC
// 3550's interarrival jitter estimator: the jitter is the smoothed mean
// deviation of the difference between consecutive packets' arrival-time and
// send-time deltas.
func (t *Tracker) Observe(arrivedAt time.Time, sendPTS time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.jitterInit {
		t.jitterInit = true
		t.lastArrive = arrivedAt
		t.lastPTS = sendPTS
		return
	}

	arriveDelta := arrivedAt.Sub(t.lastArrive)
	ptsDelta := sendPTS - t.lastPTS
	d := arriveDelta - ptsDelta
	if d < 0 {
		d = -d
	}

	t.stats.Jitter += time.Duration(jitterAlpha * float64(d-t.stats.Jitter))
	t.lastArrive = arrivedAt
	t.lastPTS = sendPTS
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}
