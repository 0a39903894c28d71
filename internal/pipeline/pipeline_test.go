package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrovue/air/internal/config"
	"github.com/retrovue/air/internal/model"
	"github.com/retrovue/air/internal/sink"
)

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			BufferDepth:        3,
			SeamLeadSegments:   1,
			PadAudioThreshold:  1,
			DiagnosticSchedule: "@every 1h", // quiet during tests
			DecodeRetry: config.RetryConfig{
				MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond,
				BackoffFactor: 1, MinRunTime: time.Second,
			},
			DecodeCircuitBreaker: config.CircuitBreakerConfig{
				FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Second,
			},
		},
		Mux: config.MuxConfig{VideoPID: 0x100, AudioPID: 0x101, VideoCodec: "h264", AudioCodec: "aac"},
		FFmpeg: config.FFmpegConfig{
			BinaryPath: "/nonexistent/ffmpeg-stub", VideoPreset: "veryfast",
		},
	}
}

func testFormat() model.ProgramFormat {
	return model.ProgramFormat{
		Video: model.VideoFormat{Width: 4, Height: 4, FPS: model.Rational{Num: 30, Den: 1}},
		Audio: model.AudioFormat{SampleRate: 48000, Channels: 2, SampleFormat: model.SampleFormatS16},
	}
}

func TestPipeline_SubmitBlockDelegatesToQueue(t *testing.T) {
	p := New(testConfig(), testFormat(), sink.NewFanOut(), discardLogger())
	err := p.SubmitBlock(model.Block{StartUTCMs: 0, EndUTCMs: 1000, Segments: seg()})
	require.NoError(t, err)
	assert.Equal(t, 1, p.queue.Len())
}

func TestPipeline_StartStopLifecycle(t *testing.T) {
	p := New(testConfig(), testFormat(), sink.NewFanOut(), discardLogger())
	ctx := context.Background()

	err := p.StartChannel(ctx, "chan-1", nil)
	require.NoError(t, err)
	assert.True(t, p.active)

	err = p.StopChannel()
	require.NoError(t, err)
	assert.False(t, p.active)

	// idempotent
	require.NoError(t, p.StopChannel())
}

func TestPipeline_StartChannelRejectsSecondDistinctChannel(t *testing.T) {
	p := New(testConfig(), testFormat(), sink.NewFanOut(), discardLogger())
	ctx := context.Background()

	require.NoError(t, p.StartChannel(ctx, "chan-1", nil))
	defer p.StopChannel()

	err := p.StartChannel(ctx, "chan-2", nil)
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestPipeline_StartChannelIdempotentForSameChannel(t *testing.T) {
	p := New(testConfig(), testFormat(), sink.NewFanOut(), discardLogger())
	ctx := context.Background()

	require.NoError(t, p.StartChannel(ctx, "chan-1", nil))
	defer p.StopChannel()

	err := p.StartChannel(ctx, "chan-1", nil)
	assert.NoError(t, err)
}

func TestPipeline_MetricsIsUsable(t *testing.T) {
	p := New(testConfig(), testFormat(), sink.NewFanOut(), discardLogger())
	m := p.Metrics()
	require.NotNil(t, m)
	m.FramesEmittedTotal.Add(1)
	assert.EqualValues(t, 1, p.Metrics().FramesEmittedTotal.Load())
}
