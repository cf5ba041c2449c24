// Package video turns incoming encoded access units into decoded frames.
// It owns backend selection (hardware first, software fallback), recovers
// from non-fatal decoder errors by resetting and requesting a new keyframe,
// and hands the transport layer's Annex-B bitstream to whichever backend is
// active.
package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zsiec/mirror-receiver/internal/errs"
	"github.com/zsiec/mirror-receiver/internal/media"
)

// Codec identifies the elementary stream's compression format.
type Codec string

const (
	CodecH264 Codec = "h264"
	CodecH265 Codec = "h265"
)

// BackendName identifies one decode backend, matching the --hw-decoder flag
// values and the probe order below.
type BackendName string

const (
	BackendAuto            BackendName = "auto"
	BackendCUVID           BackendName = "cuvid"
	BackendQSV             BackendName = "qsv"
	BackendVAAPI           BackendName = "vaapi"
	BackendMediaFoundation BackendName = "mediafoundation"
	BackendSoftware        BackendName = "software"
)

// Backend decodes one elementary stream. Implementations are not expected to
// be safe for concurrent use; the manager serializes all calls.
type Backend interface {
	// Name identifies the backend for logging and stats.
	Name() BackendName
	// Decode submits one access unit (a PTS-ordered, fully reassembled
	// Annex-B unit) and returns the frame it produced, if any. A nil frame
	// with a nil error means the backend needs more input before it can
	// produce a frame (e.g. it is still waiting past a B-frame reorder
	// delay).
	Decode(au AccessUnit) (*media.VideoFrame, error)
	// Reset discards any buffered decoder state. Called after a recoverable
	// decode error and before the next keyframe is submitted.
	Reset() error
	// Close releases backend resources.
	Close() error
}

// AccessUnit is one PTS-stamped, fully reassembled coded picture: a NAL unit
// for H.264/H.265, already stripped of transport framing.
type AccessUnit struct {
	PTSMicros int64
	Codec     Codec
	Keyframe  bool
	Data      []byte
}

// probeOrder is the hardware backend preference order for BackendAuto,
// matching the capture agent's own decoder factory: NVDEC, then Quick Sync,
// then VAAPI, then the platform media framework, before falling back to
// software.
var probeOrder = []BackendName{BackendCUVID, BackendQSV, BackendVAAPI, BackendMediaFoundation}

// factories is populated by each backend's build-tag-gated file via
// register. Backends unavailable on the current platform/build simply never
// call register, so Manager's probe naturally skips them.
var factories = map[BackendName]func(Codec) (Backend, error){}

func register(name BackendName, factory func(Codec) (Backend, error)) {
	factories[name] = factory
}

// Manager owns the active Backend, probes for it on construction (a reset
// reuses the same backend), and implements the decoder-error recovery
// policy: a recoverable
// error resets the backend and discards frames until the next keyframe; a
// fatal error propagates to the caller, who is expected to tear the pipeline
// down.
type Manager struct {
	log       *slog.Logger
	codec     Codec
	preferred BackendName

	backend       Backend
	awaitKeyframe bool
	keyframeReq   func()
}

// NewManager probes for a backend per pref (BackendAuto tries hardware
// backends in order, anything else is requested directly with software as
// the implicit fallback) and returns a ready-to-use Manager.
func NewManager(codec Codec, pref BackendName, keyframeReq func(), log *slog.Logger) (*Manager, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "video")

	m := &Manager{log: log, codec: codec, preferred: pref, keyframeReq: keyframeReq}
	backend, err := m.probe(pref)
	if err != nil {
		return nil, err
	}
	m.backend = backend
	log.Info("video backend selected", "backend", backend.Name())
	return m, nil
}

func (m *Manager) probe(pref BackendName) (Backend, error) {
	if pref != "" && pref != BackendAuto {
		if factory, ok := factories[pref]; ok {
			if b, err := factory(m.codec); err == nil {
				return b, nil
			}
			m.log.Warn("requested backend unavailable, falling back to software", "backend", pref)
		}
		return m.software()
	}

	for _, name := range probeOrder {
		factory, ok := factories[name]
		if !ok {
			continue
		}
		b, err := factory(m.codec)
		if err != nil {
			m.log.Debug("hardware backend probe failed", "backend", name, "error", err)
			continue
		}
		return b, nil
	}
	return m.software()
}

func (m *Manager) software() (Backend, error) {
	factory, ok := factories[BackendSoftware]
	if !ok {
		return nil, fmt.Errorf("video: no software backend registered")
	}
	return factory(m.codec)
}

// Decode submits one access unit and returns the resulting frame, applying
// the keyframe-gate after a reset: frames are discarded until a keyframe
// arrives, and a keyframe request is issued through keyframeReq.
func (m *Manager) Decode(ctx context.Context, au AccessUnit) (*media.VideoFrame, error) {
	if m.awaitKeyframe {
		if !au.Keyframe {
			return nil, nil
		}
		m.awaitKeyframe = false
	}

	frame, err := m.backend.Decode(au)
	if err == nil {
		return frame, nil
	}

	if errors.Is(err, errs.ErrDecoderFatal) {
		return nil, err
	}

	if errors.Is(err, errs.ErrDecoderRecoverable) {
		m.log.Warn("recoverable decode error, resetting backend", "backend", m.backend.Name(), "error", err)
		if rerr := m.backend.Reset(); rerr != nil {
			return nil, errs.DecoderFatal(rerr)
		}
		m.awaitKeyframe = true
		if m.keyframeReq != nil {
			m.keyframeReq()
		}
		return nil, nil
	}

	return nil, err
}

// Close releases the active backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}
