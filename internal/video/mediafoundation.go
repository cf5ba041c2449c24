//go:build cgo && windows

package video

import "fmt"

func init() {
	register(BackendMediaFoundation, newMediaFoundationBackend)
}

// newMediaFoundationBackend would bind to Windows Media Foundation's
// hardware decode transform. No cgo binding is wired into this build; the
// probe always fails so Manager falls through to software.
func newMediaFoundationBackend(codec Codec) (Backend, error) {
	return nil, fmt.Errorf("video: media foundation backend not available in this build")
}
