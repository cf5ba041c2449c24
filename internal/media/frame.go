// Package media defines the frame types that flow from the decoders through
// the synchronizer to the renderer and audio sink.
package media

// Channel buffer sizes for the transports' per-kind packet channels
// (transport producer, decode pipeline consumer), sized to absorb jitter
// without unbounded memory growth: ~1s of
// 60fps video, ~2s of 50fps-equivalent audio frames.
const (
	VideoChannelDepth = 60
	AudioChannelDepth = 100
)

// PixelFormat enumerates the pixel layouts the renderer accepts.
type PixelFormat int

const (
	// PixelFormatGPUPlanarYUV is a GPU-native planar YUV surface handle; no
	// CPU pixels are materialized.
	PixelFormatGPUPlanarYUV PixelFormat = iota
	// PixelFormatRGBA is host-visible interleaved RGBA8.
	PixelFormatRGBA
)

// GPUSurface is an opaque handle to a decoder-owned GPU surface, passed to
// the renderer without a round-trip through host memory.
type GPUSurface struct {
	Handle uintptr
}

// Plane is one CPU-visible pixel plane (e.g. Y, U, or V).
type Plane struct {
	Data   []byte
	Stride int
}

// VideoFrame is produced by the video decoder, owned by the synchronizer
// while queued, and destroyed by the renderer after present. It is never
// shared across components concurrently.
type VideoFrame struct {
	PTSMicros int64
	Width     int
	Height    int
	Format    PixelFormat
	Keyframe  bool

	// Exactly one of Surface or Planes is populated, selected by Format:
	// PixelFormatGPUPlanarYUV carries Surface, PixelFormatRGBA carries Planes.
	Surface *GPUSurface
	Planes  []Plane
}

// AudioFrame is produced by the audio decoder and consumed by the player's
// jitter buffer.
type AudioFrame struct {
	PTSMicros    int64
	SampleRate   int
	ChannelCount int

	// Exactly one of PCM16 or PCMFloat32 is populated; the player converts
	// as needed.
	PCM16      []int16
	PCMFloat32 []float32
}

// SampleCount returns the number of per-channel samples in the frame.
func (f AudioFrame) SampleCount() int {
	if f.ChannelCount == 0 {
		return 0
	}
	if f.PCM16 != nil {
		return len(f.PCM16) / f.ChannelCount
	}
	return len(f.PCMFloat32) / f.ChannelCount
}
