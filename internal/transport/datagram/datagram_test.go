package datagram

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zsiec/mirror-receiver/internal/fec"
	"github.com/zsiec/mirror-receiver/internal/transport"
)

// buildDatagrams splits payload into k source shards (fragment), pads each
// to a common length, runs them through FEC encoding to get r parity
// shards, and returns the full set of k+r wire-ready datagrams.
func buildDatagrams(t *testing.T, blockID uint32, k, r int, payload []byte) [][]byte {
	t.Helper()

	sources, err := fragment(blockID, k, r, DefaultMTU, payload)
	require.NoError(t, err)

	maxLen := 0
	for _, s := range sources {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}

	prefixed := make([][]byte, k)
	for i, s := range sources {
		buf := make([]byte, shardLengthPrefix+maxLen)
		binary.LittleEndian.PutUint16(buf[:shardLengthPrefix], uint16(len(s)))
		copy(buf[shardLengthPrefix:], s)
		prefixed[i] = buf
	}

	parity, err := fec.Encode(prefixed, r)
	require.NoError(t, err)
	require.Len(t, parity, r)

	shards := append(append([][]byte{}, prefixed...), parity...)

	out := make([][]byte, k+r)
	for i, s := range shards {
		hdr := encodeHeader(datagramHeader{blockID: blockID, index: i, k: k, r: r})
		out[i] = append(hdr, s...)
	}
	return out
}

func TestReorderWindowReassemblesInOrderBlocks(t *testing.T) {
	var tracker transport.Tracker
	var got [][]byte
	w := newReorderWindow(defaultWindow, &tracker, func(b []byte) {
		got = append(got, append([]byte{}, b...))
	})

	d0 := buildDatagrams(t, 0, 4, 1, []byte("hello"))
	d1 := buildDatagrams(t, 1, 4, 1, []byte("world"))

	for _, d := range d0 {
		w.Add(d)
	}
	for _, d := range d1 {
		w.Add(d)
	}

	require.Len(t, got, 8)
	require.Equal(t, []byte("hello"), got[0])
	require.Equal(t, []byte("world"), got[4])
}

func TestReorderWindowRecoversFromLostShard(t *testing.T) {
	var tracker transport.Tracker
	var got [][]byte
	w := newReorderWindow(defaultWindow, &tracker, func(b []byte) {
		got = append(got, append([]byte{}, b...))
	})

	datagrams := buildDatagrams(t, 5, 4, 2, []byte("recoverable"))

	// Drop one data shard; two parity shards are enough to reconstruct it.
	for i, d := range datagrams {
		if i == 1 {
			continue
		}
		w.Add(d)
	}

	require.Len(t, got, 4)
	require.Equal(t, []byte("recoverable"), got[0])
	require.Equal(t, uint64(1), tracker.Snapshot().PacketsRecovered)
}

func TestReorderWindowDropsBlockBelowFECThreshold(t *testing.T) {
	var tracker transport.Tracker
	var got [][]byte
	w := newReorderWindow(defaultWindow, &tracker, func(b []byte) {
		got = append(got, b)
	})

	datagrams := buildDatagrams(t, 0, 4, 1, []byte("x"))

	// Only 2 of 5 shards arrive: below k, unrecoverable even with parity.
	w.Add(datagrams[0])
	w.Add(datagrams[4])
	w.Tick()

	require.Empty(t, got)
}
