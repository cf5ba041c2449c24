package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/mirror-receiver/internal/audio"
	"github.com/zsiec/mirror-receiver/internal/bitrate"
	"github.com/zsiec/mirror-receiver/internal/debugapi"
	"github.com/zsiec/mirror-receiver/internal/media"
	"github.com/zsiec/mirror-receiver/internal/negotiate"
	"github.com/zsiec/mirror-receiver/internal/render"
	"github.com/zsiec/mirror-receiver/internal/sync"
	"github.com/zsiec/mirror-receiver/internal/video"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		mode       = flag.String("mode", envOr("MIRROR_MODE", "auto"), "transport preference: reliable, datagram, or auto")
		host       = flag.String("host", envOr("MIRROR_HOST", "127.0.0.1"), "capture agent host")
		reliablePt = flag.Int("port", envOrInt("MIRROR_PORT", 7777), "reliable transport port")
		datagramPt = flag.Int("datagram-port", envOrInt("MIRROR_DATAGRAM_PORT", 7778), "datagram transport port")
		bitrateKb  = flag.Uint("bitrate", uint(envOrInt("MIRROR_BITRATE_KBPS", 8_000)), "initial bitrate in kbps")
		maxKb      = flag.Uint("max-bitrate", uint(envOrInt("MIRROR_MAX_BITRATE_KBPS", 20_000)), "max bitrate in kbps")
		minKb      = flag.Uint("min-bitrate", uint(envOrInt("MIRROR_MIN_BITRATE_KBPS", 500)), "min bitrate in kbps")
		hwDecoder  = flag.String("hw-decoder", envOr("MIRROR_HW_DECODER", "auto"), "hardware decoder preference: auto, cuvid, qsv, vaapi, mediafoundation, software")
		noAudio    = flag.Bool("no-audio", envOr("MIRROR_NO_AUDIO", "") != "", "disable audio decode and playback")
		maxSize    = flag.Uint("max-size", uint(envOrInt("MIRROR_MAX_FRAME_BYTES", 16<<20)), "maximum frame payload size in bytes (not applied: the wire layer always enforces its fixed 16 MiB cap)")
		debugAddr  = flag.String("debug-addr", envOr("MIRROR_DEBUG_ADDR", ""), "if set, serve GET /debug/stats on this address")
		debug      = flag.Bool("debug", envOr("DEBUG", "") != "", "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	_ = maxSize // not applied; internal/wire always enforces its fixed MaxPayload (16 MiB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	log.Info("mirror-receiver starting", "version", version, "mode", *mode)

	neg := &negotiate.Negotiator{
		ReliableAddr: fmt.Sprintf("%s:%d", *host, *reliablePt),
		DatagramAddr: fmt.Sprintf("%s:%d", *host, *datagramPt),
		Prefer:       preferredMode(*mode),
		Log:          log,
	}

	connectCtx, connectCancel := context.WithTimeout(ctx, negotiate.DefaultTimeout*2)
	tr, connMode, err := neg.Connect(connectCtx)
	connectCancel()
	if err != nil {
		log.Error("failed to connect to capture agent", "error", err)
		return 1
	}
	defer tr.Close()
	log.Info("connected", "transport", connMode)

	controller := bitrate.NewController(bitrate.Config{
		MinKbps:     uint32(*minKb),
		MaxKbps:     uint32(*maxKb),
		InitialKbps: uint32(*bitrateKb),
	})

	videoMgr, err := video.NewManager(video.CodecH264, video.BackendName(*hwDecoder), func() {
		controller.RequestKeyframe(ctx, tr, log)
	}, log)
	if err != nil {
		log.Error("failed to initialize video backend", "error", err)
		return 1
	}
	defer videoMgr.Close()

	clock := sync.NewClock()
	sink := render.NewCPUUploadSink(func(frame *media.VideoFrame) error {
		log.Debug("present frame", "pts", frame.PTSMicros, "width", frame.Width, "height", frame.Height)
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runVideoPipeline(gctx, tr, videoMgr, clock, sink, *noAudio, log)
	})

	var jitterBuf *audio.JitterBuffer
	if !*noAudio {
		dec, err := audio.NewDecoder(audio.CodecOpus)
		if err != nil {
			log.Error("failed to initialize audio decoder", "error", err)
			return 1
		}
		jitterBuf = audio.NewJitterBuffer(audio.DefaultTargetOccupancy)
		g.Go(func() error {
			return runAudioPipeline(gctx, tr, dec, jitterBuf, clock, log)
		})

		player := audio.NewPlayer(jitterBuf, audio.NewLogSink(log), audio.DefaultFrameDuration, log)
		g.Go(func() error {
			return player.Run(gctx)
		})
	}

	g.Go(func() error {
		return runBitrateLoop(gctx, tr, controller, log)
	})

	if *debugAddr != "" {
		srv := debugapi.New(*debugAddr, func() any {
			stats := map[string]any{"transport": tr.Stats()}
			if jitterBuf != nil {
				stats["jitter"] = jitterBuf.Stats()
			}
			return stats
		})
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		log.Error("pipeline error", "error", err)
		return 1
	}
	return 0
}

func preferredMode(mode string) negotiate.Mode {
	switch mode {
	case "reliable", "tcp":
		return negotiate.ModeReliable
	case "datagram", "quic":
		return negotiate.ModeDatagram
	default:
		return negotiate.ModeReliable
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
