package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrovue/air/internal/model"
	"github.com/retrovue/air/internal/pad"
)

func testVideoFormat() model.VideoFormat {
	return model.VideoFormat{Width: 4, Height: 4, FPS: model.Rational{Num: 30, Den: 1}}
}

func testAudioFormat() model.AudioFormat {
	return model.AudioFormat{SampleRate: 48000, Channels: 2, SampleFormat: model.SampleFormatS16}
}

// tryPush calls b.TryPush, failing the test on error, and reports whether
// the frame was accepted.
func tryPush(t *testing.T, b interface {
	TryPush(model.Frame) (bool, error)
}, f model.Frame) bool {
	t.Helper()
	ok, err := b.TryPush(f)
	require.NoError(t, err)
	return ok
}

func TestContentProducer_EligibleOnlyAtTargetDepth(t *testing.T) {
	seg := model.Segment{Index: 0}
	p := newContentProducer(seg, 6, 2)
	assert.False(t, p.Eligible())

	require.True(t, tryPush(t, p.video, model.Frame{}))
	require.True(t, tryPush(t, p.video, model.Frame{}))
	require.True(t, tryPush(t, p.audio, model.Frame{}))
	require.True(t, tryPush(t, p.audio, model.Frame{}))
	assert.True(t, p.Eligible())
}

func TestContentProducer_DepletedOnlyAfterDecodeExitsAndDrains(t *testing.T) {
	seg := model.Segment{Index: 0}
	p := newContentProducer(seg, 6, 2)
	require.True(t, tryPush(t, p.video, model.Frame{}))

	assert.False(t, p.IsDepleted())
	p.markDecodeExited()
	assert.False(t, p.IsDepleted(), "still has a buffered frame")

	_, ok := p.NextVideoFrame(0)
	require.True(t, ok)
	assert.True(t, p.IsDepleted())
}

func TestPadProducer_NeverDepletedAlwaysEligible(t *testing.T) {
	prod := pad.New(model.ProgramFormat{Video: testVideoFormat(), Audio: testAudioFormat()}, 1024)
	p := newPadProducer(1, prod, 1)

	assert.False(t, p.IsDepleted())
	assert.True(t, p.Eligible())
	assert.True(t, p.IsPad())

	f, ok := p.NextVideoFrame(5)
	assert.True(t, ok)
	assert.Equal(t, 1, f.OriginSegment)
}
