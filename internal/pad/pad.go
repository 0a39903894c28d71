// Package pad implements the Pad Producer (spec §4.3): a zero-allocation
// source of black video and silent audio frames, used whenever the Tick
// Loop cannot source a content frame in time.
package pad

import (
	"github.com/retrovue/air/internal/model"
)

// Producer synthesizes pad frames at a fixed ProgramFormat. Its video and
// audio payload buffers are allocated once at construction and reused for
// every frame it emits; callers must treat the returned Frame's payload
// slices as read-only and copy them before any caller-side mutation.
type Producer struct {
	format model.ProgramFormat

	blackFrame  []byte
	silentAudio []byte
	audioFrameSamples int
}

// New precomputes the black video frame and silent audio buffer for format.
// audioFrameSamples is the number of samples (per channel) in one audio
// pad frame, matching the cadence the mux expects between video frames.
func New(format model.ProgramFormat, audioFrameSamples int) *Producer {
	p := &Producer{
		format:            format,
		audioFrameSamples: audioFrameSamples,
	}
	p.blackFrame = makeBlackFrame(format.Video)
	p.silentAudio = makeSilentAudio(format.Audio, audioFrameSamples)
	return p
}

// makeBlackFrame allocates a planar YUV420 buffer filled with broadcast
// black: luma 16, chroma 128, matching limited-range convention.
func makeBlackFrame(v model.VideoFormat) []byte {
	ySize := v.Width * v.Height
	cSize := (v.Width / 2) * (v.Height / 2)
	buf := make([]byte, ySize+2*cSize)
	for i := 0; i < ySize; i++ {
		buf[i] = 16
	}
	for i := ySize; i < len(buf); i++ {
		buf[i] = 128
	}
	return buf
}

// makeSilentAudio allocates a zeroed PCM buffer for one pad audio frame.
func makeSilentAudio(a model.AudioFormat, samples int) []byte {
	bytesPerSample := 2 // s16
	if a.SampleFormat == model.SampleFormatFltP {
		bytesPerSample = 4
	}
	return make([]byte, samples*a.Channels*bytesPerSample)
}

// VideoFrame returns a pad video Frame for the given content-time and
// session frame index. The returned slice aliases the Producer's internal
// buffer; it is never mutated by the Producer after construction.
func (p *Producer) VideoFrame(ctMillis, sessionFrameIndex int64, originSegment int) model.Frame {
	return model.Frame{
		CTMillis:          ctMillis,
		SessionFrameIndex: sessionFrameIndex,
		OriginSegment:     originSegment,
		Alpha:             1.0,
		VideoData:         p.blackFrame,
	}
}

// AudioFrame returns a pad audio Frame for the given content-time and
// session frame index.
func (p *Producer) AudioFrame(ctMillis, sessionFrameIndex int64, originSegment int) model.Frame {
	return model.Frame{
		CTMillis:          ctMillis,
		SessionFrameIndex: sessionFrameIndex,
		OriginSegment:     originSegment,
		Alpha:             1.0,
		AudioData:         p.silentAudio,
		AudioSampleCount:  p.audioFrameSamples,
	}
}
