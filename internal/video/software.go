package video

import (
	"fmt"

	"github.com/zsiec/mirror-receiver/internal/errs"
	"github.com/zsiec/mirror-receiver/internal/media"
)

func init() {
	register(BackendSoftware, newSoftwareBackend)
}

// softwareBackend decodes via the platform's software codec library. The
// actual bitstream decode is a cgo boundary (libavcodec or an equivalent
// platform decode session) outside this package's scope; softwareSession
// is where that binding would be wired in.
type softwareBackend struct {
	codec   Codec
	session softwareSession
	width   int
	height  int
}

// softwareSession is the minimal surface this package needs from whatever
// decode library backs it.
type softwareSession interface {
	decode(au AccessUnit) (pixelData []byte, width, height int, produced bool, err error)
	reset() error
	close() error
}

func newSoftwareBackend(codec Codec) (Backend, error) {
	if codec != CodecH264 && codec != CodecH265 {
		return nil, fmt.Errorf("video: unsupported codec %q", codec)
	}
	return &softwareBackend{codec: codec, session: newStubSession()}, nil
}

func (b *softwareBackend) Name() BackendName { return BackendSoftware }

func (b *softwareBackend) Decode(au AccessUnit) (*media.VideoFrame, error) {
	data, width, height, produced, err := b.session.decode(au)
	if err != nil {
		return nil, errs.DecoderRecoverable(err)
	}
	if !produced {
		return nil, nil
	}
	b.width, b.height = width, height

	ySize := width * height
	return &media.VideoFrame{
		PTSMicros: au.PTSMicros,
		Width:     width,
		Height:    height,
		Format:    media.PixelFormatGPUPlanarYUV,
		Keyframe:  au.Keyframe,
		Planes: []media.Plane{
			{Data: data[:ySize], Stride: width},
			{Data: data[ySize : ySize+ySize/4], Stride: width / 2},
			{Data: data[ySize+ySize/4:], Stride: width / 2},
		},
	}, nil
}

func (b *softwareBackend) Reset() error { return b.session.reset() }
func (b *softwareBackend) Close() error { return b.session.close() }

// stubSession is a placeholder softwareSession used until a real codec
// library is wired in; it never produces frames on its own and exists so
// Manager's control flow (reset/keyframe-gate) can be exercised end to end.
type stubSession struct{}

func newStubSession() softwareSession { return stubSession{} }

func (stubSession) decode(au AccessUnit) ([]byte, int, int, bool, error) {
	return nil, 0, 0, false, nil
}
func (stubSession) reset() error { return nil }
func (stubSession) close() error { return nil }
