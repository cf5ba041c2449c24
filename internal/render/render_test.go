package render

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zsiec/mirror-receiver/internal/errs"
	"github.com/zsiec/mirror-receiver/internal/media"
)

func TestCPUUploadSinkRejectsConcurrentPresent(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	sink := NewCPUUploadSink(func(frame *media.VideoFrame) error {
		close(entered)
		<-release
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, sink.Present(&media.VideoFrame{}))
	}()

	<-entered
	err := sink.Present(&media.VideoFrame{})
	require.ErrorIs(t, err, errs.ErrRendererBusy)

	close(release)
	wg.Wait()
}

func TestCPUUploadSinkPropagatesUploadError(t *testing.T) {
	boom := errors.New("upload failed")
	sink := NewCPUUploadSink(func(frame *media.VideoFrame) error { return boom })
	require.ErrorIs(t, sink.Present(&media.VideoFrame{}), boom)
}

func TestCPUUploadSinkAllowsSequentialPresent(t *testing.T) {
	sink := NewCPUUploadSink(func(frame *media.VideoFrame) error { return nil })
	require.NoError(t, sink.Present(&media.VideoFrame{}))
	require.NoError(t, sink.Present(&media.VideoFrame{}))
}
