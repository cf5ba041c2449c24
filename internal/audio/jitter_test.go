package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zsiec/mirror-receiver/internal/media"
)

func TestJitterBufferOrdersFramesByPTS(t *testing.T) {
	j := NewJitterBuffer(10 * time.Millisecond)
	j.Push(&media.AudioFrame{PTSMicros: 3000})
	j.Push(&media.AudioFrame{PTSMicros: 1000})
	j.Push(&media.AudioFrame{PTSMicros: 2000})

	require.Equal(t, int64(1000), j.Pull().PTSMicros)
	require.Equal(t, int64(2000), j.Pull().PTSMicros)
	require.Equal(t, int64(3000), j.Pull().PTSMicros)
}

func TestJitterBufferReportsUnderrunOnEmptyPull(t *testing.T) {
	j := NewJitterBuffer(10 * time.Millisecond)
	require.Nil(t, j.Pull())
	require.Equal(t, 1, j.Stats().Underruns)
}

func TestJitterBufferDropsOldestOnOverflow(t *testing.T) {
	target := 20 * time.Millisecond
	j := NewJitterBuffer(target)

	for i := int64(0); i < 10; i++ {
		j.Push(&media.AudioFrame{PTSMicros: i * 10_000}) // 10ms apart, span grows past 2x target
	}

	stats := j.Stats()
	require.Greater(t, stats.Dropped, 0)
	require.Equal(t, stats.Overflows, stats.Dropped)
}

func TestJitterBufferReadyOnlyAtTargetOccupancy(t *testing.T) {
	j := NewJitterBuffer(30 * time.Millisecond)
	require.False(t, j.Ready())

	j.Push(&media.AudioFrame{PTSMicros: 0})
	require.False(t, j.Ready())

	j.Push(&media.AudioFrame{PTSMicros: 40_000})
	require.True(t, j.Ready())
}
