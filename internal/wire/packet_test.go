package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zsiec/mirror-receiver/internal/errs"
)

func TestEmitParseRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []Packet{
		{Kind: KindVideo, PTS: 16_666, Sequence: 1, Payload: []byte("hello")},
		{Kind: KindAudio, PTS: -1, Sequence: 0, Payload: nil},
		{Kind: KindControl, PTS: 0, Sequence: 4294967295, Payload: []byte{1, 2, 3, 4, 5}},
	}

	for _, want := range cases {
		buf := Emit(want, nil)
		require.Len(t, buf, Size(want))

		p := NewParser(0)
		p.Feed(buf)
		got, err := p.Next()
		require.NoError(t, err)
		require.Equal(t, want.Kind, got.Kind)
		require.Equal(t, want.PTS, got.PTS)
		require.Equal(t, want.Sequence, got.Sequence)
		require.Equal(t, want.Payload, got.Payload)
	}
}

func TestParserNeedsMoreBytes(t *testing.T) {
	t.Parallel()

	want := Packet{Kind: KindVideo, PTS: 1, Sequence: 1, Payload: []byte("a full frame")}
	buf := Emit(want, nil)

	p := NewParser(0)
	for i := 0; i < len(buf)-1; i++ {
		p.Feed(buf[i : i+1])
		_, err := p.Next()
		require.ErrorIs(t, err, ErrNeedMore)
	}
	p.Feed(buf[len(buf)-1:])
	got, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, want.Payload, got.Payload)
}

func TestParserRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	buf := Emit(Packet{Kind: KindVideo, Payload: []byte("x")}, nil)
	buf[0] = 0x7f // not a recognized kind

	p := NewParser(0)
	p.Feed(buf)
	_, err := p.Next()
	require.ErrorIs(t, err, errs.ErrUnknownKind)
}

func TestParserRejectsOversizeFrame(t *testing.T) {
	t.Parallel()

	hdr := Emit(Packet{Kind: KindVideo}, nil)
	// Overwrite the length field (bytes 13:17) past MaxPayload.
	hdr[13], hdr[14], hdr[15], hdr[16] = 0x01, 0x00, 0x00, 0x01 // ~16MiB + 1

	p := NewParser(0)
	p.Feed(hdr)
	_, err := p.Next()
	require.ErrorIs(t, err, errs.ErrOversizeFrame)
}

func TestParserHandlesMultiplePacketsInOneFeed(t *testing.T) {
	t.Parallel()

	a := Emit(Packet{Kind: KindVideo, Sequence: 1, Payload: []byte("a")}, nil)
	b := Emit(Packet{Kind: KindVideo, Sequence: 2, Payload: []byte("bb")}, nil)

	p := NewParser(0)
	p.Feed(a)
	p.Feed(b)

	got1, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, uint32(1), got1.Sequence)

	got2, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, uint32(2), got2.Sequence)

	_, err = p.Next()
	require.ErrorIs(t, err, ErrNeedMore)
}
