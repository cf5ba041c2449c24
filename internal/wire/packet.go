// Package wire implements the 17-byte packet header used by every receiver
// transport: kind(1) + pts(8, signed LE) + sequence(4, LE) + length(4, LE),
// followed by length bytes of payload. It is the exact byte layout both
// transports frame their streams with, independent of whether the bytes
// arrive over a TCP stream or a QUIC datagram.
package wire

import (
	"encoding/binary"

	"github.com/zsiec/mirror-receiver/internal/errs"
)

// Kind identifies the payload a Packet carries.
type Kind byte

// Recognized packet kinds. Any other byte on the wire is ProtocolError:UnknownKind.
const (
	KindVideo   Kind = 0x01
	KindAudio   Kind = 0x02
	KindControl Kind = 0x03
)

// HeaderSize is the fixed header length in bytes: kind + pts + sequence + length.
const HeaderSize = 1 + 8 + 4 + 4

// MaxPayload is the largest payload length accepted on the wire (16 MiB).
// Packets whose length field exceeds this are rejected as OversizeFrame.
const MaxPayload = 16 * 1024 * 1024

// Packet is the atomic unit on the wire.
type Packet struct {
	Kind     Kind
	PTS      int64  // microseconds, sender clock
	Sequence uint32 // monotonically increasing per kind per connection, wraps at 2^32
	Payload  []byte
}

func validKind(k byte) bool {
	switch Kind(k) {
	case KindVideo, KindAudio, KindControl:
		return true
	default:
		return false
	}
}

// Emit appends the wire encoding of p to dst and returns the result. It is
// the exact inverse of Parse: Parse(Emit(p, nil)) reproduces every field of
// p bit-exactly.
func Emit(p Packet, dst []byte) []byte {
	dst = append(dst, byte(p.Kind))
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(p.PTS))
	dst = append(dst, buf[:]...)
	var seq [4]byte
	binary.LittleEndian.PutUint32(seq[:], p.Sequence)
	dst = append(dst, seq[:]...)
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(p.Payload)))
	dst = append(dst, length[:]...)
	dst = append(dst, p.Payload...)
	return dst
}

// Size returns the total wire size (header + payload) of p.
func Size(p Packet) int {
	return HeaderSize + len(p.Payload)
}

// ParseHeader decodes the fixed header from buf, which must be at least
// HeaderSize bytes. It returns the kind, pts, sequence, and declared payload
// length, or an error if the kind byte is unrecognized or the length exceeds
// MaxPayload.
func ParseHeader(buf []byte) (kind Kind, pts int64, sequence uint32, length uint32, err error) {
	k := buf[0]
	if !validKind(k) {
		return 0, 0, 0, 0, errs.UnknownKind(k)
	}
	pts = int64(binary.LittleEndian.Uint64(buf[1:9]))
	sequence = binary.LittleEndian.Uint32(buf[9:13])
	length = binary.LittleEndian.Uint32(buf[13:17])
	if length > MaxPayload {
		return 0, 0, 0, 0, errs.OversizeFrame(length, MaxPayload)
	}
	return Kind(k), pts, sequence, length, nil
}
