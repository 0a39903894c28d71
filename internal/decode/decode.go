// Package decode implements the Fill/Decode stage (spec §4.5): for each
// content segment it shells out to FFmpeg to demux, decode, scale, and
// resample an asset to the session's ProgramFormat, then pushes the
// resulting frames into the Lookahead Buffer under symmetric backpressure.
// A per-asset circuit breaker absorbs decode faults without taking down
// the rest of the pipeline.
package decode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/retrovue/air/internal/buffer"
	"github.com/retrovue/air/internal/config"
	"github.com/retrovue/air/internal/model"
	"github.com/retrovue/air/internal/transition"
	"golang.org/x/sync/errgroup"
)

// RetryConfig tunes the exponential backoff applied to asset decode
// startup failures, mirroring the pipeline's configured decode retry policy.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	MinRunTime    time.Duration
}

// FromConfig builds a RetryConfig from the loaded pipeline config.
func FromConfig(c config.RetryConfig) RetryConfig {
	return RetryConfig{
		MaxAttempts:   c.MaxAttempts,
		InitialDelay:  c.InitialDelay,
		MaxDelay:      c.MaxDelay,
		BackoffFactor: c.BackoffFactor,
		MinRunTime:    c.MinRunTime,
	}
}

// Decoder runs one asset's decode subprocess pipeline and feeds frames into
// video/audio Lookahead Buffers. One Decoder exists per active segment.
type Decoder struct {
	ffmpegPath string
	format     model.ProgramFormat
	breakers   *BreakerRegistry
	retry      RetryConfig
	maxLead    int
	logger     *slog.Logger
}

// New creates a Decoder targeting format, using ffmpegPath as the FFmpeg
// binary and breakers to track per-asset decode faults. bufferTargetDepth is
// N, the lookahead buffer's target depth (spec §4.2); it doubles as the
// symmetric-backpressure lead limit between the video and audio streams
// (spec §4.3 point 4).
func New(ffmpegPath string, format model.ProgramFormat, breakers *BreakerRegistry, retry RetryConfig, bufferTargetDepth int, logger *slog.Logger) *Decoder {
	return &Decoder{ffmpegPath: ffmpegPath, format: format, breakers: breakers, retry: retry, maxLead: bufferTargetDepth, logger: logger}
}

// DecodeSegment demuxes/decodes/scales/resamples assetURI starting at
// startOffsetMs, pushing frames into videoOut/audioOut under backpressure
// until durationMs of content has been produced or ctx is cancelled.
// originSegment is stamped onto every frame (spec §3's origin invariant).
// transitionIn/transitionOut, if non-nil, are applied per-frame (spec §4.7)
// before a frame ever reaches its buffer.
func (d *Decoder) DecodeSegment(ctx context.Context, assetURI string, startOffsetMs, durationMs int64, originSegment int, transitionIn, transitionOut *model.TransitionSpec, videoOut, audioOut *buffer.LookaheadBuffer) error {
	breaker := d.breakers.For(assetURI)
	if !breaker.Allow() {
		return fmt.Errorf("decode: circuit open for asset %s", assetURI)
	}

	delay := d.retry.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= d.retry.MaxAttempts; attempt++ {
		start := time.Now()
		err := d.decodeOnce(ctx, assetURI, startOffsetMs, durationMs, originSegment, transitionIn, transitionOut, videoOut, audioOut)
		runDuration := time.Since(start)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			breaker.RecordSuccess()
			return nil
		}

		lastErr = err
		breaker.RecordFault()

		if runDuration >= d.retry.MinRunTime {
			return err
		}
		if attempt >= d.retry.MaxAttempts {
			break
		}

		d.logger.Warn("decode attempt failed, retrying",
			"asset_uri", assetURI, "attempt", attempt, "max_attempts", d.retry.MaxAttempts,
			"error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * d.retry.BackoffFactor)
		if delay > d.retry.MaxDelay {
			delay = d.retry.MaxDelay
		}
	}

	return fmt.Errorf("decode: asset %s failed after %d attempts: %w", assetURI, d.retry.MaxAttempts, lastErr)
}

// decodeOnce runs one FFmpeg video-decode pass and one FFmpeg audio-decode
// pass concurrently, each its own subprocess reading the same asset. A
// failure in either pass cancels the other via ctx.
func (d *Decoder) decodeOnce(ctx context.Context, assetURI string, startOffsetMs, durationMs int64, originSegment int, transitionIn, transitionOut *model.TransitionSpec, videoOut, audioOut *buffer.LookaheadBuffer) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.decodeVideo(gctx, assetURI, startOffsetMs, durationMs, originSegment, transitionIn, transitionOut, videoOut, audioOut)
	})
	g.Go(func() error {
		return d.decodeAudio(gctx, assetURI, startOffsetMs, durationMs, originSegment, transitionIn, transitionOut, audioOut, videoOut)
	})
	return g.Wait()
}

const audioFrameSamples = 1024

func (d *Decoder) decodeVideo(ctx context.Context, assetURI string, startOffsetMs, durationMs int64, originSegment int, transitionIn, transitionOut *model.TransitionSpec, videoOut, audioOut *buffer.LookaheadBuffer) error {
	v := d.format.Video

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", msToSeconds(startOffsetMs),
		"-i", assetURI,
		"-t", msToSeconds(durationMs),
		"-map", "0:v:0", "-pix_fmt", "yuv420p", "-vf", fmt.Sprintf("scale=%d:%d", v.Width, v.Height),
		"-f", "rawvideo", "pipe:1",
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("decode: video stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("decode: start video ffmpeg: %w", err)
	}

	frameSize := v.Width*v.Height + 2*((v.Width/2)*(v.Height/2))
	reader := bufio.NewReaderSize(stdout, frameSize*2)

	frameIndex := int64(0)
	ctPerFrame := v.FPS.FramesToMillis(1)
	for {
		buf := make([]byte, frameSize)
		if _, err := io.ReadFull(reader, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			_ = cmd.Wait()
			return fmt.Errorf("decode: read video frame: %w", err)
		}

		elapsed := frameIndex * ctPerFrame
		alpha := transition.Combined(transitionIn, transitionOut, elapsed, durationMs-elapsed)
		transition.ApplyVideo(buf, v.Width, v.Height, alpha)

		f := model.Frame{
			CTMillis:          startOffsetMs + elapsed,
			SessionFrameIndex: -1, // assigned by the tick loop at selection time
			OriginSegment:     originSegment,
			Alpha:             alpha,
			VideoData:         buf,
		}
		if err := buffer.PushPaired(ctx, videoOut, audioOut, d.maxLead, f); err != nil {
			_ = cmd.Process.Kill()
			return err
		}
		frameIndex++
	}

	return cmd.Wait()
}

func (d *Decoder) decodeAudio(ctx context.Context, assetURI string, startOffsetMs, durationMs int64, originSegment int, transitionIn, transitionOut *model.TransitionSpec, audioOut, videoOut *buffer.LookaheadBuffer) error {
	a := d.format.Audio

	sampleFmt := "s16le"
	bytesPerSample := 2
	if a.SampleFormat == model.SampleFormatFltP {
		sampleFmt = "f32le"
		bytesPerSample = 4
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", msToSeconds(startOffsetMs),
		"-i", assetURI,
		"-t", msToSeconds(durationMs),
		"-map", "0:a:0", "-ar", fmt.Sprintf("%d", a.SampleRate), "-ac", fmt.Sprintf("%d", a.Channels),
		"-f", sampleFmt, "pipe:1",
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("decode: audio stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("decode: start audio ffmpeg: %w", err)
	}

	chunkBytes := audioFrameSamples * a.Channels * bytesPerSample
	reader := bufio.NewReaderSize(stdout, chunkBytes*2)

	frameIndex := int64(0)
	ctPerFrame := int64(audioFrameSamples) * 1000 / int64(a.SampleRate)
	for {
		buf := make([]byte, chunkBytes)
		n, err := io.ReadFull(reader, buf)
		if n > 0 {
			sampleData := buf[:n]
			elapsed := frameIndex * ctPerFrame
			alpha := transition.Combined(transitionIn, transitionOut, elapsed, durationMs-elapsed)
			if a.SampleFormat == model.SampleFormatFltP {
				transition.ApplyAudioF32(sampleData, alpha)
			} else {
				transition.ApplyAudioS16(sampleData, alpha)
			}

			f := model.Frame{
				CTMillis:          startOffsetMs + elapsed,
				SessionFrameIndex: -1,
				OriginSegment:     originSegment,
				Alpha:             alpha,
				AudioData:         sampleData,
				AudioSampleCount:  n / (a.Channels * bytesPerSample),
			}
			if perr := buffer.PushPaired(ctx, audioOut, videoOut, d.maxLead, f); perr != nil {
				_ = cmd.Process.Kill()
				return perr
			}
			frameIndex++
		}
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			_ = cmd.Wait()
			return fmt.Errorf("decode: read audio frame: %w", err)
		}
	}

	return cmd.Wait()
}

func msToSeconds(ms int64) string {
	return fmt.Sprintf("%.3f", float64(ms)/1000.0)
}
