package bitrate

import (
	"context"
	"log/slog"
	"time"

	"github.com/zsiec/mirror-receiver/internal/control"
	"github.com/zsiec/mirror-receiver/internal/transport"
)

// keyframeRequestInterval rate-limits RequestKeyframe to at most once per
// second, per the control-plane contract.
const keyframeRequestInterval = time.Second

// RequestKeyframe asks the capture agent for a new keyframe over tr,
// dropping the request if one was already sent within the last second.
// Safe to call from any goroutine, concurrently with Tick.
func (c *Controller) RequestKeyframe(ctx context.Context, tr transport.Transport, log *slog.Logger) {
	now := time.Now().UnixNano()
	last := c.lastKeyframeRequest.Load()
	if now-last < int64(keyframeRequestInterval) {
		return
	}
	if !c.lastKeyframeRequest.CompareAndSwap(last, now) {
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := tr.SendControl(reqCtx, control.Encode(control.RequestKeyframe())); err != nil {
		log.Warn("failed to request keyframe", "error", err)
	}
}
