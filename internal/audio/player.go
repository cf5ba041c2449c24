package audio

import (
	"context"
	"log/slog"
	"time"

	"github.com/zsiec/mirror-receiver/internal/media"
)

// Default output format used to size the underrun silence frame. A real
// Sink would negotiate its own format; absent that negotiation this is the
// capture agent's nominal output format.
const (
	DefaultSampleRate    = 48_000
	DefaultChannels      = 2
	DefaultFrameDuration = 20 * time.Millisecond
)

// Sink is the platform audio output device. A real implementation wraps the
// system's audio API (WASAPI, CoreAudio, ALSA); Player drives it off the
// jitter buffer on its own timer rather than blocking the decode path.
type Sink interface {
	Write(pcm []float32, sampleRate, channels int) error
	Close() error
}

// LogSink is a reference Sink that logs instead of driving a real output
// device, the audio-side counterpart to render.CPUUploadSink.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log.With("component", "audio-sink")}
}

func (s *LogSink) Write(pcm []float32, sampleRate, channels int) error {
	s.log.Debug("audio frame", "samples", len(pcm), "sample_rate", sampleRate, "channels", channels)
	return nil
}

func (s *LogSink) Close() error { return nil }

// Player pulls frames from a JitterBuffer on a fixed tick and writes them to
// a Sink, playing silence on underrun per the jitter buffer's policy.
type Player struct {
	log    *slog.Logger
	buffer *JitterBuffer
	sink   Sink

	frameDuration time.Duration
	silenceFrame  []float32
}

func NewPlayer(buffer *JitterBuffer, sink Sink, frameDuration time.Duration, log *slog.Logger) *Player {
	if log == nil {
		log = slog.Default()
	}
	samples := DefaultChannels * int(float64(DefaultSampleRate)*frameDuration.Seconds())
	return &Player{
		log:           log.With("component", "audio-player"),
		buffer:        buffer,
		sink:          sink,
		frameDuration: frameDuration,
		silenceFrame:  make([]float32, samples),
	}
}

// Run blocks until ctx is canceled, pulling one frame per tick and writing
// it (or silence, on underrun) to the sink.
func (p *Player) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.frameDuration)
	defer ticker.Stop()

	started := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Wait for the buffer to reach its target occupancy once; after
			// that every tick pulls, so a drained buffer plays silence.
			if !started {
				if !p.buffer.Ready() {
					continue
				}
				started = true
			}
			f := p.buffer.Pull()
			if f == nil {
				p.log.Debug("jitter buffer underrun, playing silence")
				if err := p.sink.Write(p.silenceFrame, DefaultSampleRate, DefaultChannels); err != nil {
					return err
				}
				continue
			}
			if err := p.writeFrame(f); err != nil {
				return err
			}
		}
	}
}

func (p *Player) writeFrame(f *media.AudioFrame) error {
	return p.sink.Write(f.PCMFloat32, f.SampleRate, f.ChannelCount)
}
