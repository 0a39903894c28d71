// Package pipeline is the Pipeline Manager (spec §9 "ownership model"): the
// arena-style owner holding the Output Clock, Lookahead Buffers, Seam
// Preparer, Pad Producer, Fill/Decode, Tick Loop, and Mux/Sink Adapter by
// unique ownership for the lifetime of one channel session. Cancellation
// follows owner destruction: stopping the Pipeline tears down every
// component it owns.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/retrovue/air/internal/clock"
	"github.com/retrovue/air/internal/config"
	"github.com/retrovue/air/internal/control"
	"github.com/retrovue/air/internal/decode"
	"github.com/retrovue/air/internal/encode"
	"github.com/retrovue/air/internal/model"
	"github.com/retrovue/air/internal/mux"
	"github.com/retrovue/air/internal/observability"
	"github.com/retrovue/air/internal/pad"
	"github.com/retrovue/air/internal/seam"
	"github.com/retrovue/air/internal/sink"
	"github.com/retrovue/air/internal/tick"
)

// Pipeline satisfies control.Plane; kept as a compile-time assertion next to
// the type rather than in the control package, which must not import
// pipeline to avoid a cycle.
var _ control.Plane = (*Pipeline)(nil)

// ErrAlreadyActive is returned by StartChannel when a distinct channel is already
// running (spec §6 StartChannel: "rejects a second distinct channel_id
// while active").
var ErrAlreadyActive = errors.New("pipeline: a different channel is already active")

// ErrNotActive is returned by operations that require a running session.
var ErrNotActive = errors.New("pipeline: no active channel")

const padAudioFrameSamples = 1024

// Pipeline owns one channel's playout session: the fill, tick, and prep
// threads (spec §5 "three threads per instance") plus the mux/sink output
// stage and the diagnostics cron job.
type Pipeline struct {
	cfg        config.PipelineConfig
	muxCfg     config.MuxConfig
	ffmpegCfg  config.FFmpegConfig
	ffmpegPath string
	format     model.ProgramFormat
	logger     *slog.Logger
	metrics    *observability.Metrics
	sinkOut    *sink.FanOut

	mu        sync.Mutex
	channelID string
	active    bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	diagCron  *cron.Cron

	queue   *BlockQueue
	padProd *pad.Producer

	// videoDepth/audioDepth back the diagnostics job's
	// DepthSource without requiring it to reach into the active producer
	// under the tick loop's own synchronization.
	depthMu    sync.RWMutex
	videoDepth int
	audioDepth int
}

// New creates a Pipeline for the given configuration and session-immutable
// ProgramFormat. sinkOut is the fan-out the mux writes muxed TS bytes into;
// callers attach/detach individual sinks on it via AttachSink/DetachSink.
func New(cfg *config.Config, format model.ProgramFormat, sinkOut *sink.FanOut, logger *slog.Logger) *Pipeline {
	ffmpegPath := cfg.FFmpeg.BinaryPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Pipeline{
		cfg:        cfg.Pipeline,
		muxCfg:     cfg.Mux,
		ffmpegCfg:  cfg.FFmpeg,
		ffmpegPath: ffmpegPath,
		format:     format,
		logger:     logger,
		metrics:    observability.NewMetrics(),
		sinkOut:    sinkOut,
		queue:      NewBlockQueue(),
		padProd:    pad.New(format, padAudioFrameSamples),
	}
}

// Metrics returns the instance-scoped metrics registry (spec §6 GetMetrics).
func (p *Pipeline) Metrics() *observability.Metrics { return p.metrics }

// GetMetrics implements control.Plane: a point-in-time snapshot of session
// counters, suitable for direct JSON encoding by the admin HTTP surface.
func (p *Pipeline) GetMetrics(ctx context.Context) observability.Snapshot {
	return p.metrics.Snapshot(ctx)
}

// AttachSink implements control.Plane, adding s to the session's output
// fan-out under id. Safe to call whether or not a channel is currently
// active.
func (p *Pipeline) AttachSink(id string, s sink.Sink) error {
	p.sinkOut.Attach(id, s)
	return nil
}

// DetachSink implements control.Plane, removing the sink registered under
// id from the output fan-out.
func (p *Pipeline) DetachSink(id string) error {
	p.sinkOut.Detach(id)
	return nil
}

// VideoDepth, AudioDepth, TargetDepth implement DepthSource for the
// diagnostics job.
func (p *Pipeline) VideoDepth() int {
	p.depthMu.RLock()
	defer p.depthMu.RUnlock()
	return p.videoDepth
}

func (p *Pipeline) AudioDepth() int {
	p.depthMu.RLock()
	defer p.depthMu.RUnlock()
	return p.audioDepth
}

func (p *Pipeline) TargetDepth() int { return p.cfg.BufferDepth }

func (p *Pipeline) setDepths(video, audio int) {
	p.depthMu.Lock()
	defer p.depthMu.Unlock()
	p.videoDepth = video
	p.audioDepth = audio
}

// SubmitBlock appends a block to the session's block queue (spec §6).
func (p *Pipeline) SubmitBlock(b model.Block) error {
	return p.queue.Submit(b)
}

// StartChannel begins a session for channelID, seeding the block queue
// with initialBlocks. It starts the fill/tick/prep threads and the
// diagnostics cron job, returning as soon as the run goroutine that drives
// them has been launched.
func (p *Pipeline) StartChannel(ctx context.Context, channelID string, initialBlocks []model.Block) error {
	p.mu.Lock()
	if p.active && p.channelID != channelID {
		p.mu.Unlock()
		return ErrAlreadyActive
	}
	if p.active {
		p.mu.Unlock()
		return nil // idempotent restart of the same channel
	}

	for _, b := range initialBlocks {
		if err := p.queue.Submit(b); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("pipeline: seeding initial block: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.channelID = channelID
	p.active = true
	p.cancel = cancel
	p.mu.Unlock()

	diagCron, err := startDiagnostics(p.cfg.DiagnosticSchedule, p, p.logger)
	if err != nil {
		p.logger.Warn("diagnostics job not started", "err", err)
	} else {
		p.mu.Lock()
		p.diagCron = diagCron
		p.mu.Unlock()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(runCtx)
	}()

	return nil
}

// StopChannel gracefully stops the session: the tick loop exits after its
// current iteration, the fill thread unblocks, any in-flight prep job is
// discarded, and the mux flushes. Idempotent (spec §6).
func (p *Pipeline) StopChannel() error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return nil
	}
	cancel := p.cancel
	diagCron := p.diagCron
	p.active = false
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if diagCron != nil {
		diagCron.Stop()
	}
	p.wg.Wait()
	return nil
}

// run is the pipeline's top-level loop: it consumes blocks from the queue
// one at a time, running the tick/fill/prep trio for each until the
// block's fence tick, then advances to the next queued block.
func (p *Pipeline) run(ctx context.Context) {
	sessionStart := time.Now()
	clk := clock.New(p.format.Video.FPS, sessionStart)
	breakers := decode.NewBreakerRegistry(decode.CircuitBreakerConfig(p.cfg.DecodeCircuitBreaker))
	decoder := decode.New(p.ffmpegPath, p.format, breakers, decode.FromConfig(p.cfg.DecodeRetry), p.cfg.BufferDepth, p.logger)

	muxer, videoEnc, audioEnc, err := p.startOutputStage(ctx)
	if err != nil {
		p.logger.Error("pipeline: failed to start output stage", "err", err)
		return
	}
	defer func() {
		if videoEnc != nil {
			_ = videoEnc.Close()
		}
		if audioEnc != nil {
			_ = audioEnc.Close()
		}
	}()

	outputGroup, outputCtx := errgroup.WithContext(ctx)
	outputGroup.Go(func() error { return drainVideo(outputCtx, videoEnc, muxer, clk) })
	outputGroup.Go(func() error {
		return drainAudio(outputCtx, audioEnc, muxer, clk, padAudioFrameSamples, p.format.Audio.SampleRate)
	})

	var sessionFrameIndex int64
	for {
		block, ok := p.queue.Next()
		if !ok {
			select {
			case <-ctx.Done():
				_ = outputGroup.Wait()
				return
			case <-time.After(50 * time.Millisecond):
				continue
			}
		}
		if err := p.runBlock(ctx, clk, decoder, videoEnc, audioEnc, block, &sessionFrameIndex); err != nil {
			if ctx.Err() != nil {
				_ = outputGroup.Wait()
				return
			}
			p.logger.Error("pipeline: block run failed", "block_id", block.ID, "err", err)
		}
	}
}

func (p *Pipeline) startOutputStage(ctx context.Context) (*mux.Muxer, *encode.VideoEncoder, *encode.AudioEncoder, error) {
	muxCfg := mux.Config{
		VideoPID:       uint16(p.muxCfg.VideoPID),
		AudioPID:       uint16(p.muxCfg.AudioPID),
		VideoCodec:     p.muxCfg.VideoCodec,
		AudioCodec:     p.muxCfg.AudioCodec,
		PATPMTInterval: 0,
	}
	muxer := mux.New(&sinkWriter{fanOut: p.sinkOut, metrics: p.metrics}, p.format, muxCfg, p.logger)

	videoEnc, err := encode.StartVideo(ctx, p.ffmpegPath, p.format.Video, p.ffmpegCfg, p.logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pipeline: start video encoder: %w", err)
	}
	audioEnc, err := encode.StartAudio(ctx, p.ffmpegPath, p.format.Audio, p.logger)
	if err != nil {
		_ = videoEnc.Close()
		return nil, nil, nil, fmt.Errorf("pipeline: start audio encoder: %w", err)
	}
	return muxer, videoEnc, audioEnc, nil
}

// runBlock drives one block's segments through fill, tick, and prep until
// the block's fence tick is reached.
//
// The fence/commit decision for the transition into segment N is evaluated
// on N's own first tick (f==0), never on segment N-1's last tick: spec
// §4.4's Case B/C swap resolves by handing that tick's frame to the
// incoming producer, so placing the decision one tick early would silently
// donate the outgoing segment's last nominal frame to the incoming one.
func (p *Pipeline) runBlock(
	ctx context.Context,
	clk *clock.OutputClock,
	decoder *decode.Decoder,
	videoEnc *encode.VideoEncoder,
	audioEnc *encode.AudioEncoder,
	block model.Block,
	sessionFrameIndex *int64,
) error {
	if len(block.Segments) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	pp := newPadProducer(-1, p.padProd, p.cfg.PadAudioThreshold)
	prep := seam.New(block.Segments, p.prepareTarget(decoder, g), p.logger)

	segIdx := 0
	activeProd, activeIsContent := p.startSegment(gctx, g, decoder, block.Segments[segIdx])
	var loop *tick.Loop
	if activeIsContent {
		loop = tick.New(clk, activeProd, pp, p.metrics, p.logger)
	} else {
		loop = tick.New(clk, pp, pp, p.metrics, p.logger)
	}

	var blockCTMillis int64
	for segIdx < len(block.Segments) {
		seg := block.Segments[segIdx]

		select {
		case <-ctx.Done():
			_ = g.Wait()
			return ctx.Err()
		default:
		}

		if cp, ok := loop.Active().(*contentProducer); ok {
			p.setDepths(cp.video.Depth(), cp.audio.Depth())
		}

		// Arm the preparer for the next non-pad segment now, giving it this
		// segment's full nominal duration as lead time (spec §4.5 step 1).
		prep.ArmSegmentPrep(gctx, segIdx)

		framesInSegment := p.format.Video.FPS.MillisToFrames(seg.DurationMs)
		for f := int64(0); f < framesInSegment; f++ {
			i := *sessionFrameIndex
			// CTMillis is block-relative (§3): it accumulates across this
			// block's segments rather than resetting at each one.
			ctMillis := blockCTMillis + p.format.Video.FPS.FramesToMillis(f)
			atFenceBoundary := f == 0 && segIdx > 0
			if atFenceBoundary {
				p.resolveFenceArm(loop, prep, block.Segments, segIdx)
			}

			frame, _, err := loop.Tick(gctx, i, ctMillis, atFenceBoundary)
			if err != nil {
				_ = g.Wait()
				return err
			}
			if frame.VideoData != nil {
				_ = videoEnc.WriteFrame(frame.VideoData)
			}
			if frame.AudioData != nil {
				_ = audioEnc.WriteFrame(frame.AudioData)
			}
			*sessionFrameIndex++
			p.metrics.FramesEmittedTotal.Add(1)
		}
		blockCTMillis += p.format.Video.FPS.FramesToMillis(framesInSegment)
		segIdx++
	}

	return g.Wait()
}

// prepareTarget returns the seam.PrepareFunc that opens a decoder for a
// preparer target and blocks (in the preparer's own background goroutine,
// never the tick thread) until its buffers reach the configured target
// depth or the segment depletes first (spec §4.5 step 3: "prime video and
// audio lookahead buffers to target depth, post result to the slot").
func (p *Pipeline) prepareTarget(decoder *decode.Decoder, g *errgroup.Group) seam.PrepareFunc {
	return func(ctx context.Context, seg model.Segment) (*seam.Prepared, error) {
		cp, _ := p.startSegment(ctx, g, decoder, seg)

		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			if cp.Eligible() || cp.IsDepleted() {
				return &seam.Prepared{
					SegmentIndex: seg.Index,
					VideoBuf:     &seam.Buffers{Depth: cp.video.Depth()},
					AudioBuf:     &seam.Buffers{Depth: cp.audio.Depth()},
					Payload:      cp,
				}, nil
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

// resolveFenceArm arms the tick loop's incoming producer for the transition
// into segIdx (spec §4.5). Pad-to-pad/content-to-pad transitions swap in a
// fresh pad producer inline, bypassing the preparer entirely; every other
// transition consumes the preparer's slot for segIdx, leaving incoming
// unarmed — a seam MISS, resolved by the tick loop's own vacuum-exception
// path — if the worker has not finished by this tick.
func (p *Pipeline) resolveFenceArm(loop *tick.Loop, prep *seam.Preparer, segs []model.Segment, segIdx int) {
	if prep.IsPadToPadOrContentToPad(segIdx-1, segIdx) {
		loop.ArmIncoming(newPadProducer(segs[segIdx].Index, p.padProd, p.cfg.PadAudioThreshold))
		return
	}

	prepared, err := prep.TakeIfReady(segIdx)
	if err != nil {
		p.logger.Warn("seam miss", "segment_index", segIdx, "err", err)
		return
	}
	cp, ok := prepared.Payload.(*contentProducer)
	if !ok {
		p.logger.Warn("seam prepared result had unexpected payload", "segment_index", segIdx)
		return
	}
	loop.ArmIncoming(cp)
}

// startSegment launches a fill goroutine decoding seg into a fresh
// contentProducer, registering it with g so a decode fault is absorbed
// locally (spec §7) rather than failing the group. Pad segments return a
// nil producer and false; callers fall back to the session's pad producer.
func (p *Pipeline) startSegment(ctx context.Context, g *errgroup.Group, decoder *decode.Decoder, seg model.Segment) (*contentProducer, bool) {
	if seg.IsPad() {
		return nil, false
	}

	cp := newContentProducer(seg, p.cfg.BufferDepth*2, p.cfg.BufferDepth)
	g.Go(func() error {
		defer cp.markDecodeExited()
		if err := decoder.DecodeSegment(ctx, seg.AssetURI, seg.AssetStartOffsetMs, seg.DurationMs, seg.Index, seg.TransitionIn, seg.TransitionOut, cp.video, cp.audio); err != nil {
			p.metrics.DecodeFaultsTotal.Add(1)
		}
		return nil
	})
	return cp, true
}

// sinkWriter adapts the sink.FanOut into the io.Writer the mux expects,
// tracking bytes written/dropped into the pipeline's metrics.
type sinkWriter struct {
	fanOut  *sink.FanOut
	metrics *observability.Metrics
}

func (w *sinkWriter) Write(p []byte) (int, error) {
	n, err := w.fanOut.TryConsume(p)
	if w.metrics != nil {
		w.metrics.BytesWrittenTotal.Add(uint64(n))
		if n < len(p) {
			w.metrics.BytesDroppedTotal.Add(uint64(len(p) - n))
		}
	}
	return len(p), err // the mux's write contract is never slowed by sink backpressure (§7)
}
