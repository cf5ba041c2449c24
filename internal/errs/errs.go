// Package errs defines the receiver's error taxonomy: wrapped stdlib errors
// identifying the failing component and error kind, classified by whether a
// caller should treat them as fatal (shut down the session) or recoverable
// (consumed at the layer that recognizes them).
package errs

import (
	"errors"
	"fmt"
)

// Transport errors.
var (
	ErrConnectFailed     = errors.New("transport: connect failed")
	ErrDisconnected      = errors.New("transport: disconnected")
	ErrTimeout           = errors.New("transport: timeout")
	ErrUnknownKind       = errors.New("protocol: unknown packet kind")
	ErrOversizeFrame     = errors.New("protocol: oversize frame")
	ErrHandshakeMismatch = errors.New("protocol: handshake mismatch")
)

// Decode errors.
var (
	ErrDecoderFatal       = errors.New("decoder: fatal")
	ErrDecoderRecoverable = errors.New("decoder: recoverable")
)

// Resource errors.
var (
	ErrRendererBusy    = errors.New("renderer: busy")
	ErrAudioDeviceLost = errors.New("audio: device lost")
)

// ConnectFailed wraps ErrConnectFailed with the dial reason.
func ConnectFailed(reason error) error {
	return fmt.Errorf("%w: %w", ErrConnectFailed, reason)
}

// Disconnected wraps ErrDisconnected with context about which read/write failed.
func Disconnected(reason error) error {
	return fmt.Errorf("%w: %w", ErrDisconnected, reason)
}

// Timeout wraps ErrTimeout with context.
func Timeout(reason error) error {
	return fmt.Errorf("%w: %w", ErrTimeout, reason)
}

// UnknownKind reports an unrecognized packet kind byte.
func UnknownKind(kind byte) error {
	return fmt.Errorf("%w: 0x%02x", ErrUnknownKind, kind)
}

// OversizeFrame reports a payload length exceeding the configured cap.
func OversizeFrame(length, max uint32) error {
	return fmt.Errorf("%w: length %d exceeds max %d", ErrOversizeFrame, length, max)
}

// HandshakeMismatch reports an unexpected handshake magic value.
func HandshakeMismatch(got []byte) error {
	return fmt.Errorf("%w: got %q", ErrHandshakeMismatch, got)
}

// DecoderFatal wraps ErrDecoderFatal, raised when every backend fails to init.
func DecoderFatal(reason error) error {
	return fmt.Errorf("%w: %w", ErrDecoderFatal, reason)
}

// DecoderRecoverable wraps ErrDecoderRecoverable, consumed internally by the
// video decoder to trigger a reset and keyframe request.
func DecoderRecoverable(reason error) error {
	return fmt.Errorf("%w: %w", ErrDecoderRecoverable, reason)
}
