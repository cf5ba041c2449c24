// Package debugapi exposes an optional, unauthenticated HTTP endpoint for
// local debugging: a single GET /debug/stats route returning the snapshot
// its StatsProvider builds as JSON (in cmd/mirror-receiver: transport
// counters and jitter-buffer stats). It is never enabled unless the
// operator passes --debug-addr.
package debugapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// StatsProvider supplies the snapshot debugapi serves. Callers typically
// close over transport.Tracker.Snapshot, audio.JitterBuffer.Stats, and the
// bitrate controller's last tick.
type StatsProvider func() any

// Server is a thin net/http wrapper; it is started and stopped the same way
// as any other errgroup-supervised component in cmd/mirror-receiver.
type Server struct {
	http *http.Server
}

func New(addr string, stats StatsProvider) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return &Server{http: &http.Server{Addr: addr, Handler: mux}}
}

// Run blocks serving until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
