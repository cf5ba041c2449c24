// Package negotiate selects and establishes a transport connection to the
// capture agent: try the preferred transport once, fall back to the other
// once on failure, and surface whichever error set came back if both fail.
package negotiate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zsiec/mirror-receiver/internal/transport"
	"github.com/zsiec/mirror-receiver/internal/transport/datagram"
	"github.com/zsiec/mirror-receiver/internal/transport/reliable"
)

// Mode names the transport a Negotiator should prefer.
type Mode string

const (
	ModeReliable Mode = "reliable"
	ModeDatagram Mode = "datagram"
)

// DefaultTimeout bounds each individual connection attempt.
const DefaultTimeout = 5 * time.Second

// Negotiator dials the capture agent, trying the preferred transport first
// and falling back to the other exactly once.
type Negotiator struct {
	ReliableAddr string
	DatagramAddr string
	Prefer       Mode
	Timeout      time.Duration
	Log          *slog.Logger
}

// Connect establishes a transport.Transport, preferring n.Prefer and falling
// back to the other mode on failure. A fallback is attempted only when both
// addresses are configured; an empty address for a mode disables it.
func (n *Negotiator) Connect(ctx context.Context) (transport.Transport, Mode, error) {
	log := n.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "negotiate")

	timeout := n.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	order := n.attemptOrder()
	var errs []error
	for _, mode := range order {
		log.Info("attempting connection", "mode", mode)
		t, err := n.tryMode(ctx, mode, timeout)
		if err == nil {
			log.Info("connection established", "mode", mode)
			return t, mode, nil
		}
		log.Warn("connection attempt failed", "mode", mode, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", mode, err))
	}

	return nil, "", fmt.Errorf("negotiate: all transports failed: %w", joinErrors(errs))
}

func (n *Negotiator) attemptOrder() []Mode {
	var order []Mode
	if n.Prefer == ModeDatagram {
		order = append(order, ModeDatagram, ModeReliable)
	} else {
		order = append(order, ModeReliable, ModeDatagram)
	}

	filtered := order[:0]
	for _, m := range order {
		if m == ModeReliable && n.ReliableAddr == "" {
			continue
		}
		if m == ModeDatagram && n.DatagramAddr == "" {
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered
}

func (n *Negotiator) tryMode(ctx context.Context, mode Mode, timeout time.Duration) (transport.Transport, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch mode {
	case ModeReliable:
		return reliable.Dial(attemptCtx, n.ReliableAddr, n.Log)
	case ModeDatagram:
		return datagram.Dial(attemptCtx, n.DatagramAddr, n.Log)
	default:
		return nil, fmt.Errorf("negotiate: unknown mode %q", mode)
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return fmt.Errorf("no transports configured")
	}
	msg := errs[0]
	for _, e := range errs[1:] {
		msg = fmt.Errorf("%w; %w", msg, e)
	}
	return msg
}
