package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/zsiec/mirror-receiver/internal/audio"
	"github.com/zsiec/mirror-receiver/internal/bitrate"
	"github.com/zsiec/mirror-receiver/internal/control"
	"github.com/zsiec/mirror-receiver/internal/errs"
	"github.com/zsiec/mirror-receiver/internal/media"
	"github.com/zsiec/mirror-receiver/internal/render"
	msync "github.com/zsiec/mirror-receiver/internal/sync"
	"github.com/zsiec/mirror-receiver/internal/transport"
	"github.com/zsiec/mirror-receiver/internal/video"
)

// runVideoPipeline reads video packets off tr, splits each into NAL access
// units, decodes them, and hands ready frames to sink on the schedule
// clock.Decide prescribes. When noAudio is set, no other goroutine ever
// feeds clock a baseline, so this one seeds it from the first decoded
// frame's PTS: the local monotonic clock offset by that PTS becomes the
// reference, per the no-audio equivalence requirement.
func runVideoPipeline(ctx context.Context, tr transport.Transport, mgr *video.Manager, clock *msync.Clock, sink render.Sink, noAudio bool, log *slog.Logger) error {
	log = log.With("component", "pipeline-video")
	seeded := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-tr.Video():
			if !ok {
				return nil
			}
			for _, nalu := range video.SplitAnnexB(pkt.Payload) {
				au := video.AccessUnit{
					PTSMicros: pkt.PTS,
					Codec:     video.CodecH264,
					Keyframe:  video.IsKeyframeNAL(video.CodecH264, nalu),
					Data:      nalu,
				}
				frame, err := mgr.Decode(ctx, au)
				if err != nil {
					log.Error("fatal decode error", "error", err)
					return err
				}
				if frame == nil {
					continue
				}
				if noAudio && !seeded {
					clock.Observe(frame.PTSMicros, time.Now())
					seeded = true
				}
				if err := presentFrame(ctx, clock, sink, frame, log); err != nil {
					return err
				}
			}
		}
	}
}

// presentFrame applies the PTS-based skew decision to frame: drop it if
// it's arrived too late to matter, present it immediately if it's due,
// sleep until its scheduled time if it's early by a salvageable amount, or,
// if it's too far in the future, re-check every 10ms until one of the other
// cases applies.
func presentFrame(ctx context.Context, clock *msync.Clock, sink render.Sink, frame *media.VideoFrame, log *slog.Logger) error {
	for {
		due := clock.WallTime(frame.PTSMicros)
		decision, sleep := msync.Decide(time.Now(), due, msync.DefaultThresholds)

		switch decision {
		case msync.Drop:
			log.Debug("dropping stale frame", "pts", frame.PTSMicros)
			return nil
		case msync.Hold:
			// Too far in the future to sleep on in one step; wait in 10ms
			// slices so cancellation and clock corrections are seen.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
				continue
			}
		case msync.SleepThenPresent:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
			fallthrough
		case msync.Present:
			if err := sink.Present(frame); err != nil {
				if errors.Is(err, errs.ErrRendererBusy) {
					log.Debug("renderer busy, dropping frame", "pts", frame.PTSMicros)
					return nil
				}
				return err
			}
			return nil
		}
	}
}

// runAudioPipeline reads audio packets, decodes them, feeds the reference
// clock, and pushes frames into the jitter buffer for a Player to drain.
func runAudioPipeline(ctx context.Context, tr transport.Transport, dec *audio.Decoder, buf *audio.JitterBuffer, clock *msync.Clock, log *slog.Logger) error {
	log = log.With("component", "pipeline-audio")
	defer dec.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-tr.Audio():
			if !ok {
				return nil
			}
			frame, err := dec.Decode(audio.EncodedPacket{PTSMicros: pkt.PTS, Data: pkt.Payload})
			if err != nil {
				log.Warn("audio decode error", "error", err)
				continue
			}
			if frame == nil {
				continue
			}
			clock.Observe(frame.PTSMicros, time.Now())
			buf.Push(frame)
		}
	}
}

// runBitrateLoop ticks the AIMD controller once a second and, when the
// target changes, tells the capture agent over the control channel.
func runBitrateLoop(ctx context.Context, tr transport.Transport, ctrl *bitrate.Controller, log *slog.Logger) error {
	log = log.With("component", "pipeline-bitrate")
	ticker := time.NewTicker(bitrate.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			kbps, changed := ctrl.Tick(tr.Stats())
			if !changed {
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := tr.SendControl(sendCtx, control.Encode(control.SetBitrate(kbps)))
			cancel()
			if err != nil {
				log.Warn("failed to send bitrate update", "error", err)
				continue
			}
			log.Info("bitrate adjusted", "kbps", kbps)
		}
	}
}
