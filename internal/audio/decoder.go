// Package audio decodes the audio elementary stream and plays it back
// through a jitter buffer that absorbs network timing variance before
// samples reach the output device.
package audio

import (
	"fmt"

	"github.com/zsiec/mirror-receiver/internal/errs"
	"github.com/zsiec/mirror-receiver/internal/media"
)

// Codec identifies the audio elementary stream's compression format.
type Codec string

const (
	CodecAAC  Codec = "aac"
	CodecOpus Codec = "opus"
)

// EncodedPacket is one PTS-stamped compressed audio packet.
type EncodedPacket struct {
	PTSMicros int64
	Data      []byte
}

// session is the decode library boundary, analogous to video's
// softwareSession: the actual AAC/Opus bitstream decode is a platform or
// cgo-bound codec, not a pure Go library, so this package owns buffering,
// PTS bookkeeping, and error classification around it.
type session interface {
	decode(pkt EncodedPacket) (pcm []float32, sampleRate, channels int, produced bool, err error)
	close() error
}

// Decoder wraps a session and reports decode errors through the same
// recoverable/fatal taxonomy as video.Manager.
type Decoder struct {
	codec   Codec
	session session
}

func NewDecoder(codec Codec) (*Decoder, error) {
	if codec != CodecAAC && codec != CodecOpus {
		return nil, fmt.Errorf("audio: unsupported codec %q", codec)
	}
	return &Decoder{codec: codec, session: newStubSession()}, nil
}

func (d *Decoder) Decode(pkt EncodedPacket) (*media.AudioFrame, error) {
	pcm, sampleRate, channels, produced, err := d.session.decode(pkt)
	if err != nil {
		return nil, errs.DecoderRecoverable(err)
	}
	if !produced {
		return nil, nil
	}
	return &media.AudioFrame{
		PTSMicros:    pkt.PTSMicros,
		SampleRate:   sampleRate,
		ChannelCount: channels,
		PCMFloat32:   pcm,
	}, nil
}

func (d *Decoder) Close() error { return d.session.close() }

type stubSession struct{}

func newStubSession() session { return stubSession{} }

func (stubSession) decode(EncodedPacket) ([]float32, int, int, bool, error) {
	return nil, 0, 0, false, nil
}
func (stubSession) close() error { return nil }
