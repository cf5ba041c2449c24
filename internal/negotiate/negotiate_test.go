package negotiate

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zsiec/mirror-receiver/internal/wire"
)

func TestAttemptOrderPrefersConfiguredMode(t *testing.T) {
	n := &Negotiator{ReliableAddr: "127.0.0.1:1", DatagramAddr: "127.0.0.1:2", Prefer: ModeDatagram}
	require.Equal(t, []Mode{ModeDatagram, ModeReliable}, n.attemptOrder())

	n.Prefer = ModeReliable
	require.Equal(t, []Mode{ModeReliable, ModeDatagram}, n.attemptOrder())
}

func TestAttemptOrderSkipsUnconfiguredMode(t *testing.T) {
	n := &Negotiator{ReliableAddr: "127.0.0.1:1", Prefer: ModeDatagram}
	require.Equal(t, []Mode{ModeReliable}, n.attemptOrder())
}

func TestConnectFallsBackWhenPreferredModeUnconfigured(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		pkt := wire.Packet{Kind: wire.KindControl, Payload: []byte("SMIR")}
		conn.Write(wire.Emit(pkt, nil))
	}()

	n := &Negotiator{
		ReliableAddr: ln.Addr().String(),
		Prefer:       ModeDatagram,
		Timeout:      2 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	tr, mode, err := n.Connect(ctx)
	require.NoError(t, err)
	require.Equal(t, ModeReliable, mode)
	defer tr.Close()
}

func TestConnectFailsWhenNoTransportsConfigured(t *testing.T) {
	n := &Negotiator{Timeout: time.Second}
	_, _, err := n.Connect(context.Background())
	require.Error(t, err)
}
