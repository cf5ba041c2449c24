//go:build cgo && linux

package video

import "fmt"

func init() {
	register(BackendVAAPI, newVAAPIBackend)
}

// newVAAPIBackend would bind to VA-API for Intel/AMD hardware decode on
// Linux. No cgo binding is wired into this build; the probe always fails
// so Manager falls through to the next backend in probeOrder.
func newVAAPIBackend(codec Codec) (Backend, error) {
	return nil, fmt.Errorf("video: vaapi backend not available in this build")
}
