package datagram

import (
	"context"
	"testing"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/mirror-receiver/internal/fec"
	"github.com/zsiec/mirror-receiver/internal/wire"
)

// startTestServer runs a minimal capture-agent stand-in: accept one QUIC
// connection, perform the handshake on the first stream, then run serve
// against it. It exists only to exercise Transport.Dial end to end using
// the same self-signed certificate machinery a real capture agent would
// provision independently.
func startTestServer(t *testing.T, serve func(conn quic.Connection, stream quic.Stream)) string {
	t.Helper()

	cert, err := selfSignedServerCert(time.Hour)
	require.NoError(t, err)

	ln, err := quic.ListenAddr("127.0.0.1:0", serverTLSConfig(cert), &quic.Config{EnableDatagrams: true})
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept(context.Background())
		if err != nil {
			return
		}
		stream, err := conn.AcceptStream(context.Background())
		if err != nil {
			return
		}
		serve(conn, stream)
	}()

	return ln.Addr().String()
}

func TestDialHandshakeAndReceiveVideoPacket(t *testing.T) {
	t.Parallel()

	addr := startTestServer(t, func(conn quic.Connection, stream quic.Stream) {
		pkt := wire.Packet{Kind: wire.KindControl, Payload: []byte("SMIR")}
		stream.Write(wire.Emit(pkt, nil))

		datagrams := buildVideoDatagrams(t, []byte("frame-payload"))
		for _, d := range datagrams {
			conn.SendDatagram(d)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	tr, err := Dial(ctx, addr, nil)
	require.NoError(t, err)
	defer tr.Close()

	select {
	case pkt := <-tr.Video():
		require.Equal(t, wire.KindVideo, pkt.Kind)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reassembled video packet")
	}
}

// buildVideoDatagrams wraps a framed video wire.Packet in a single FEC
// block of fec.MinDataShards data shards and one parity shard so the test
// exercises reassembly without needing to synthesize a whole GOP.
func buildVideoDatagrams(t *testing.T, payload []byte) [][]byte {
	t.Helper()
	pkt := wire.Packet{Kind: wire.KindVideo, PTS: 16_666, Sequence: 1, Payload: payload}
	framed := wire.Emit(pkt, nil)
	return buildDatagrams(t, 0, fec.MinDataShards, 1, framed)
}
