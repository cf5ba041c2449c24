//go:build cgo && (linux || windows)

package video

import "fmt"

func init() {
	register(BackendCUVID, newCUVIDBackend)
}

// newCUVIDBackend would bind to NVIDIA's NVDEC/cuvid decode session. No
// cgo binding is wired into this build; the probe always fails so Manager
// falls through to the next backend in probeOrder.
func newCUVIDBackend(codec Codec) (Backend, error) {
	return nil, fmt.Errorf("video: cuvid backend not available in this build")
}
