// Package render defines the presentation contract between the decode/sync
// pipeline and whatever draws frames to screen, plus a CPU-upload reference
// implementation for platforms without a zero-copy GPU surface path.
package render

import (
	"sync/atomic"

	"github.com/zsiec/mirror-receiver/internal/errs"
	"github.com/zsiec/mirror-receiver/internal/media"
)

// Sink receives decoded frames for presentation. Present must return
// errs.ErrRendererBusy rather than block if a previous frame is still
// in-flight on the same swapchain image; the caller (the sync loop) decides
// whether to drop the new frame or hold it for the next attempt.
type Sink interface {
	Present(frame *media.VideoFrame) error
}

// CPUUploadSink is a reference Sink that copies each frame's planes into a
// caller-supplied upload callback, serialized so only one frame is ever
// in-flight. Real platform backends (Metal/D3D11/Vulkan zero-copy paths)
// implement Sink directly against their own swapchain instead.
type CPUUploadSink struct {
	busy   atomic.Bool
	upload func(frame *media.VideoFrame) error
}

// NewCPUUploadSink wraps upload, the platform-specific call that copies
// frame planes into a texture and presents it.
func NewCPUUploadSink(upload func(frame *media.VideoFrame) error) *CPUUploadSink {
	return &CPUUploadSink{upload: upload}
}

// Present implements Sink. It enforces the single-in-flight-frame
// invariant with a compare-and-swap rather than a mutex, since a busy
// caller should get ErrRendererBusy immediately rather than queue.
func (s *CPUUploadSink) Present(frame *media.VideoFrame) error {
	if !s.busy.CompareAndSwap(false, true) {
		return errs.ErrRendererBusy
	}
	defer s.busy.Store(false)

	return s.upload(frame)
}
