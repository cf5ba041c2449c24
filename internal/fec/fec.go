// Package fec implements systematic Reed-Solomon erasure coding over
// GF(2^8) as a stateless library: Encode takes an ordered sequence of source
// shards and returns the parity shards to send alongside them; Decode takes
// whatever shards actually arrived (keyed by index, so gaps are implicit)
// and reconstructs the full ordered sequence. Neither function retains
// state between calls — all per-block bookkeeping (timeouts, arrival
// counts, the reorder window) lives in the datagram transport, which is the
// only caller.
package fec

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// MinDataShards and MaxDataShards bound k, the number of source datagrams
// per FEC block, per the data model's block sizing rule.
const (
	MinDataShards = 4
	MaxDataShards = 64
)

// ParityShards returns the default redundancy r = ceil(0.1*k) for a block of
// k data shards.
func ParityShards(k int) int {
	r := (k + 9) / 10
	if r < 1 {
		r = 1
	}
	return r
}

// Encode pads sources to a common length and returns r parity shards. The
// caller sends each source shard on the wire unchanged (systematic coding)
// plus the returned parity shards.
func Encode(sources [][]byte, parityShards int) ([][]byte, error) {
	k := len(sources)
	if k < 1 || parityShards < 1 {
		return nil, fmt.Errorf("fec: need >=1 data and >=1 parity shard, got k=%d r=%d", k, parityShards)
	}

	enc, err := reedsolomon.New(k, parityShards)
	if err != nil {
		return nil, fmt.Errorf("fec: new encoder: %w", err)
	}

	maxLen := 0
	for _, s := range sources {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}

	shards := make([][]byte, k+parityShards)
	for i, s := range sources {
		padded := make([]byte, maxLen)
		copy(padded, s)
		shards[i] = padded
	}
	for i := k; i < k+parityShards; i++ {
		shards[i] = make([]byte, maxLen)
	}

	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("fec: encode: %w", err)
	}

	return shards[k:], nil
}

// Decode reconstructs the k source shards of a block given whatever shards
// actually arrived, keyed by their index in [0, k+r). It returns an error if
// fewer than k total shards are present (recovery is impossible); the
// caller (the datagram transport) is responsible for counting that as a
// lost block rather than retrying.
func Decode(received map[int][]byte, dataShards, parityShards int) ([][]byte, error) {
	if len(received) < dataShards {
		return nil, fmt.Errorf("fec: only %d of %d required shards present", len(received), dataShards)
	}

	dec, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, fmt.Errorf("fec: new decoder: %w", err)
	}

	shardLen := 0
	for _, s := range received {
		if len(s) > shardLen {
			shardLen = len(s)
		}
	}

	total := dataShards + parityShards
	shards := make([][]byte, total)
	for i := 0; i < total; i++ {
		if s, ok := received[i]; ok {
			padded := make([]byte, shardLen)
			copy(padded, s)
			shards[i] = padded
		}
	}

	if err := dec.Reconstruct(shards); err != nil {
		return nil, fmt.Errorf("fec: reconstruct: %w", err)
	}

	return shards[:dataShards], nil
}
