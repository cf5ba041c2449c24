// Package reliable implements the connection-oriented, ordered byte-stream
// transport: dial host:port, write nothing, read the handshake, then read
// framed packets and publish them to per-kind channels. There is no
// automatic reconnect at this layer — that decision belongs to the
// negotiation layer above it.
package reliable

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/zsiec/mirror-receiver/internal/errs"
	"github.com/zsiec/mirror-receiver/internal/media"
	"github.com/zsiec/mirror-receiver/internal/transport"
	"github.com/zsiec/mirror-receiver/internal/wire"
)

// HandshakeMagic is the 4-byte ASCII value the first control packet's
// payload must carry for the connection to be accepted.
var HandshakeMagic = [4]byte{'S', 'M', 'I', 'R'}

// DefaultReadTimeout is the read deadline applied to every socket read after
// the handshake; a read that exceeds it surfaces as errs.ErrTimeout.
const DefaultReadTimeout = 5 * time.Second

// Transport is a TCP-backed reliable Transport.
type Transport struct {
	log  *slog.Logger
	conn net.Conn

	readTimeout time.Duration

	videoCh chan wire.Packet
	audioCh chan wire.Packet

	tracker transport.Tracker

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to addr, performs the handshake, and returns a ready-to-use
// Transport. The read goroutine is started before Dial returns.
func Dial(ctx context.Context, addr string, log *slog.Logger) (*Transport, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "transport-reliable")

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errs.ConnectFailed(err)
	}

	t := &Transport{
		log:         log,
		conn:        conn,
		readTimeout: DefaultReadTimeout,
		videoCh:     make(chan wire.Packet, media.VideoChannelDepth),
		audioCh:     make(chan wire.Packet, media.AudioChannelDepth),
	}

	if err := t.handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	go t.readLoop()
	return t, nil
}

func (t *Transport) handshake() error {
	t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	defer t.conn.SetReadDeadline(time.Time{})

	header := make([]byte, wire.HeaderSize)
	if _, err := readFull(t.conn, header); err != nil {
		return errs.ConnectFailed(err)
	}
	kind, _, _, length, err := wire.ParseHeader(header)
	if err != nil {
		return errs.ConnectFailed(err)
	}
	if kind != wire.KindControl {
		return errs.HandshakeMismatch(header[:1])
	}
	payload := make([]byte, length)
	if _, err := readFull(t.conn, payload); err != nil {
		return errs.ConnectFailed(err)
	}
	if length != 4 || string(payload) != string(HandshakeMagic[:]) {
		return errs.HandshakeMismatch(payload)
	}
	t.log.Info("handshake ok")
	return nil
}

func readFull(r net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (t *Transport) readLoop() {
	defer close(t.videoCh)
	defer close(t.audioCh)

	parser := wire.NewParser(0)
	buf := make([]byte, 64*1024)

	for {
		t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
		n, err := t.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				t.log.Warn("read timeout", "error", err)
				t.setCloseErr(errs.Timeout(err))
			} else {
				t.log.Debug("connection closed", "error", err)
				t.setCloseErr(errs.Disconnected(err))
			}
			return
		}

		parser.Feed(buf[:n])
		t.tracker.AddReceived(n)

		for {
			pkt, err := parser.Next()
			if err == wire.ErrNeedMore {
				break
			}
			if err != nil {
				t.log.Warn("protocol error", "error", err)
				t.setCloseErr(err)
				return
			}
			t.tracker.Observe(time.Now(), time.Duration(pkt.PTS)*time.Microsecond)
			switch pkt.Kind {
			case wire.KindVideo:
				t.videoCh <- pkt
			case wire.KindAudio:
				t.audioCh <- pkt
			case wire.KindControl:
				// The receiver does not expect control traffic inbound beyond
				// the handshake; log and drop.
				t.log.Debug("unexpected inbound control packet")
			}
		}
	}
}

func (t *Transport) setCloseErr(err error) {
	t.closeOnce.Do(func() {
		t.closeErr = err
	})
}

// Video implements transport.Transport.
func (t *Transport) Video() <-chan wire.Packet { return t.videoCh }

// Audio implements transport.Transport.
func (t *Transport) Audio() <-chan wire.Packet { return t.audioCh }

// SendControl implements transport.Transport.
func (t *Transport) SendControl(ctx context.Context, payload []byte) error {
	pkt := wire.Packet{Kind: wire.KindControl, Payload: payload}
	buf := wire.Emit(pkt, nil)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		t.conn.SetWriteDeadline(dl)
		defer t.conn.SetWriteDeadline(time.Time{})
	}
	_, err := t.conn.Write(buf)
	if err != nil {
		return errs.Disconnected(err)
	}
	return nil
}

// Stats implements transport.Transport.
func (t *Transport) Stats() transport.Stats {
	return t.tracker.Snapshot()
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	return t.conn.Close()
}
