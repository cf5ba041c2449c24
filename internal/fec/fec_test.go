package fec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRecoversMissingShards(t *testing.T) {
	t.Parallel()

	k, r := 10, 2
	sources := make([][]byte, k)
	for i := range sources {
		sources[i] = bytes.Repeat([]byte{byte(i)}, 100)
	}

	parity, err := Encode(sources, r)
	require.NoError(t, err)
	require.Len(t, parity, r)

	received := map[int][]byte{}
	for i, s := range sources {
		received[i] = s
	}
	for i, p := range parity {
		received[k+i] = p
	}

	// Lose indices 3 and 7 (within the r=2 recovery budget).
	delete(received, 3)
	delete(received, 7)

	recovered, err := Decode(received, k, r)
	require.NoError(t, err)
	require.Len(t, recovered, k)
	for i, s := range sources {
		require.True(t, bytes.Equal(recovered[i], s), "shard %d mismatch", i)
	}
}

func TestDecodeFailsWhenTooFewShards(t *testing.T) {
	t.Parallel()

	k, r := 8, 2
	sources := make([][]byte, k)
	for i := range sources {
		sources[i] = []byte{byte(i)}
	}
	parity, err := Encode(sources, r)
	require.NoError(t, err)

	received := map[int][]byte{0: sources[0], 1: sources[1], k: parity[0]}
	_, err = Decode(received, k, r)
	require.Error(t, err)
}

func TestParityShardsDefaultRule(t *testing.T) {
	t.Parallel()

	require.Equal(t, 1, ParityShards(4))
	require.Equal(t, 2, ParityShards(16))
	require.Equal(t, 7, ParityShards(64))
}
