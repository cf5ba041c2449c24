//go:build cgo && (linux || windows)

package video

import "fmt"

func init() {
	register(BackendQSV, newQSVBackend)
}

// newQSVBackend would bind to Intel Quick Sync Video. No cgo binding is
// wired into this build; the probe always fails so Manager falls through
// to the next backend in probeOrder.
func newQSVBackend(codec Codec) (Backend, error) {
	return nil, fmt.Errorf("video: qsv backend not available in this build")
}
