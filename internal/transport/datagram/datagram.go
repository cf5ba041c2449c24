// Package datagram implements the message-oriented, unreliable transport:
// a QUIC connection whose unreliable datagram extension carries video/audio
// fragments protected by systematic Reed-Solomon FEC (package
// internal/fec), reassembled through a reorder window (block.go), while a
// QUIC stream carries the handshake and outgoing control packets reliably.
package datagram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/zsiec/mirror-receiver/internal/errs"
	"github.com/zsiec/mirror-receiver/internal/media"
	"github.com/zsiec/mirror-receiver/internal/transport"
	"github.com/zsiec/mirror-receiver/internal/wire"
)

// DefaultMTU is the default datagram payload size, matching the external
// interface contract's default.
const DefaultMTU = 1200

// DefaultWindow is W, the number of FEC blocks the reorder window tracks.
const DefaultWindow = defaultWindow

// tickInterval drives the reorder window's timeout-based advance when no
// new datagrams arrive to trigger it.
const tickInterval = 5 * time.Millisecond

// Transport is a QUIC-backed unreliable Transport with FEC recovery.
type Transport struct {
	log  *slog.Logger
	conn quic.Connection

	controlStream quic.Stream

	videoCh chan wire.Packet
	audioCh chan wire.Packet

	tracker transport.Tracker
	window  *reorderWindow
	parser  *wire.Parser

	writeMu sync.Mutex

	closeOnce sync.Once
	stopTick  chan struct{}
}

// Dial connects to the capture agent's QUIC endpoint at addr, performs the
// handshake over a dedicated stream (the receiver writes the magic control
// packet, then reads and checks the agent's), and returns a ready-to-use
// Transport.
func Dial(ctx context.Context, addr string, log *slog.Logger) (*Transport, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "transport-datagram")

	conn, err := quic.DialAddr(ctx, addr, clientTLSConfig(), &quic.Config{
		EnableDatagrams: true,
		MaxIdleTimeout:  30 * time.Second,
	})
	if err != nil {
		return nil, errs.ConnectFailed(err)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "handshake stream failed")
		return nil, errs.ConnectFailed(err)
	}

	t := &Transport{
		log:           log,
		conn:          conn,
		controlStream: stream,
		videoCh:       make(chan wire.Packet, media.VideoChannelDepth),
		audioCh:       make(chan wire.Packet, media.AudioChannelDepth),
		parser:        wire.NewParser(0),
		stopTick:      make(chan struct{}),
	}
	t.window = newReorderWindow(DefaultWindow, &t.tracker, t.onReassembled)

	if err := t.handshake(ctx); err != nil {
		conn.CloseWithError(0, "handshake failed")
		return nil, err
	}

	go t.readDatagramLoop()
	go t.tickLoop()
	return t, nil
}

func (t *Transport) handshake(ctx context.Context) error {
	if dl, ok := ctx.Deadline(); ok {
		t.controlStream.SetDeadline(dl)
		defer t.controlStream.SetDeadline(time.Time{})
	}

	// A QUIC stream is not visible to the peer until data is sent on it, so
	// announce the stream with the magic control packet before reading the
	// agent's own.
	hello := wire.Emit(wire.Packet{Kind: wire.KindControl, Payload: []byte("SMIR")}, nil)
	if _, err := t.controlStream.Write(hello); err != nil {
		return errs.ConnectFailed(err)
	}

	header := make([]byte, wire.HeaderSize)
	if _, err := readFullStream(t.controlStream, header); err != nil {
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
	if _, err := readFullStream(t.controlStream, payload); err != nil {
		return errs.ConnectFailed(err)
	}
	if length != 4 || string(payload) != "SMIR" {
		return errs.HandshakeMismatch(payload)
	}
	t.log.Info("handshake ok")
	return nil
}

func readFullStream(s quic.Stream, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := s.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (t *Transport) readDatagramLoop() {
	defer close(t.videoCh)
	defer close(t.audioCh)
	defer close(t.stopTick)

	for {
		data, err := t.conn.ReceiveDatagram(context.Background())
		if err != nil {
			t.log.Debug("datagram connection closed", "error", err)
			return
		}
		t.tracker.AddReceived(len(data))
		t.window.Add(data)
	}
}

func (t *Transport) tickLoop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.window.Tick()
		case <-t.stopTick:
			return
		}
	}
}

// onReassembled receives framing-layer bytes reconstructed (in order) from
// one FEC block and feeds them through the shared parser, dispatching
// complete packets to their per-kind channel.
func (t *Transport) onReassembled(payload []byte) {
	t.parser.Feed(payload)
	for {
		pkt, err := t.parser.Next()
		if err == wire.ErrNeedMore {
			return
		}
		if err != nil {
			t.log.Warn("protocol error in reassembled stream", "error", err)
			return
		}
		t.tracker.Observe(time.Now(), time.Duration(pkt.PTS)*time.Microsecond)
		switch pkt.Kind {
		case wire.KindVideo:
			t.videoCh <- pkt
		case wire.KindAudio:
			t.audioCh <- pkt
		case wire.KindControl:
			t.log.Debug("unexpected inbound control packet over datagram transport")
		}
	}
}

// Video implements transport.Transport.
func (t *Transport) Video() <-chan wire.Packet { return t.videoCh }

// Audio implements transport.Transport.
func (t *Transport) Audio() <-chan wire.Packet { return t.audioCh }

// SendControl implements transport.Transport, writing the control packet on
// the reliable handshake stream so it survives datagram loss.
func (t *Transport) SendControl(ctx context.Context, payload []byte) error {
	pkt := wire.Packet{Kind: wire.KindControl, Payload: payload}
	buf := wire.Emit(pkt, nil)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		t.controlStream.SetWriteDeadline(dl)
		defer t.controlStream.SetWriteDeadline(time.Time{})
	}
	if _, err := t.controlStream.Write(buf); err != nil {
		return errs.Disconnected(err)
	}
	return nil
}

// Stats implements transport.Transport. The RTT field is always reported as
// zero; no RTT estimate is read from the QUIC connection.
func (t *Transport) Stats() transport.Stats {
	if t.conn != nil {
		t.tracker.SetRTT(0) // placeholder: quic-go exposes RTT via connection.Stats() on some versions
	}
	return t.tracker.Snapshot()
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.conn.CloseWithError(0, "shutdown")
	})
	return err
}

// fragment splits payload into source-shard payloads of at most mtu minus
// the FEC header and 2-byte length prefix, padded with nil shards up to k;
// it does not add the header or the length prefix itself, which the caller
// (a capture-agent-side sender or a test exercising the reassembly path
// end-to-end) prepends before FEC encoding. It is kept
// alongside the decoder because both sides must agree byte-for-byte on the
// framing; see block.go's datagramHeaderSize/shardLengthPrefix constants.
func fragment(blockID uint32, k, r, mtu int, payload []byte) ([][]byte, error) {
	capacity := mtu - datagramHeaderSize - shardLengthPrefix
	if capacity <= 0 {
		return nil, fmt.Errorf("datagram: mtu %d too small for header", mtu)
	}

	var shards [][]byte
	for len(payload) > 0 {
		n := capacity
		if n > len(payload) {
			n = len(payload)
		}
		shards = append(shards, payload[:n])
		payload = payload[n:]
	}
	if len(shards) > k {
		return nil, fmt.Errorf("datagram: payload needs %d shards, block holds only %d", len(shards), k)
	}
	for len(shards) < k {
		shards = append(shards, nil)
	}
	return shards, nil
}
