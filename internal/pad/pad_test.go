package pad

import (
	"testing"

	"github.com/retrovue/air/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFormat() model.ProgramFormat {
	return model.ProgramFormat{
		Video: model.VideoFormat{Width: 4, Height: 4, FPS: model.Rational{Num: 30, Den: 1}},
		Audio: model.AudioFormat{SampleRate: 48000, Channels: 2, SampleFormat: model.SampleFormatS16},
	}
}

func TestNew_BlackFrameIsBroadcastBlack(t *testing.T) {
	p := New(testFormat(), 1600)

	f := p.VideoFrame(0, 0, -1)
	require.Len(t, f.VideoData, 4*4+2*2*2)

	for i := 0; i < 16; i++ {
		assert.Equal(t, byte(16), f.VideoData[i], "luma plane must be broadcast black")
	}
	for i := 16; i < len(f.VideoData); i++ {
		assert.Equal(t, byte(128), f.VideoData[i], "chroma planes must be neutral")
	}
}

func TestNew_SilentAudioIsZeroed(t *testing.T) {
	p := New(testFormat(), 1600)

	f := p.AudioFrame(0, 0, -1)
	require.Len(t, f.AudioData, 1600*2*2)
	for _, b := range f.AudioData {
		assert.Equal(t, byte(0), b)
	}
	assert.Equal(t, 1600, f.AudioSampleCount)
}

func TestVideoFrame_ReusesSameUnderlyingBuffer(t *testing.T) {
	p := New(testFormat(), 1600)

	f1 := p.VideoFrame(0, 0, -1)
	f2 := p.VideoFrame(33, 1, -1)

	assert.Same(t, &f1.VideoData[0], &f2.VideoData[0], "pad frames must not allocate per call")
}
