// Package control encodes and decodes the control-packet payload carried
// inside Packet{Kind: wire.KindControl}: a 1-byte op followed by a 4-byte
// little-endian value, per the wire format in the receiver's external
// interface contract.
package control

import "encoding/binary"

// Op identifies a control operation.
type Op byte

// Recognized control ops. Unrecognized ops are decoded into a Message
// carrying the raw op byte (Known reports false), tolerating a capture agent
// that emits capability/ack messages the receiver does not act on.
const (
	OpSetBitrate     Op = 0x01
	OpRequestKeyframe Op = 0x02
)

// Message is a decoded control-packet payload.
type Message struct {
	Op    Op
	Value uint32
}

// SetBitrate builds a set_bitrate control message carrying kbps.
func SetBitrate(kbps uint32) Message {
	return Message{Op: OpSetBitrate, Value: kbps}
}

// RequestKeyframe builds a request_keyframe control message. Value MUST be
// zero for forward compatibility.
func RequestKeyframe() Message {
	return Message{Op: OpRequestKeyframe, Value: 0}
}

// Encode serializes m to its 5-byte wire payload.
func Encode(m Message) []byte {
	buf := make([]byte, 5)
	buf[0] = byte(m.Op)
	binary.LittleEndian.PutUint32(buf[1:], m.Value)
	return buf
}

// Decode parses a control-packet payload. Payloads shorter than 5 bytes are
// rejected; payloads with an op outside the recognized set are returned with
// Op set to the raw byte so callers can log-and-ignore rather than error.
func Decode(payload []byte) (Message, error) {
	if len(payload) < 5 {
		return Message{}, errShortPayload
	}
	return Message{
		Op:    Op(payload[0]),
		Value: binary.LittleEndian.Uint32(payload[1:5]),
	}, nil
}

// Known reports whether op is one this receiver acts on.
func (m Message) Known() bool {
	return m.Op == OpSetBitrate || m.Op == OpRequestKeyframe
}

var errShortPayload = shortPayloadError{}

type shortPayloadError struct{}

func (shortPayloadError) Error() string { return "control: payload shorter than 5 bytes" }
