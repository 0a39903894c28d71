package pipeline

import (
	"sync/atomic"

	"github.com/retrovue/air/internal/buffer"
	"github.com/retrovue/air/internal/model"
	"github.com/retrovue/air/internal/pad"
)

// contentProducer adapts a content segment's video/audio Lookahead Buffers
// into the tick.Producer abstraction. One exists per active or prepared
// content segment.
type contentProducer struct {
	segment       model.Segment
	video         *buffer.LookaheadBuffer
	audio         *buffer.LookaheadBuffer
	targetDepth   int
	decodeExited  atomic.Bool
}

func newContentProducer(seg model.Segment, capacity, targetDepth int) *contentProducer {
	return &contentProducer{
		segment:     seg,
		video:       buffer.New(capacity),
		audio:       buffer.New(capacity),
		targetDepth: targetDepth,
	}
}

func (p *contentProducer) NextVideoFrame(_ int64) (model.Frame, bool) {
	return p.video.TryPop()
}

func (p *contentProducer) NextAudioQuantum(_ int64) (model.Frame, bool) {
	return p.audio.TryPop()
}

// IsDepleted reports EOF/decode-fault termination once the fill thread has
// exited AND the video buffer has drained (spec §4.3 "the tick loop treats
// the resulting empty buffer as content-unavailable").
func (p *contentProducer) IsDepleted() bool {
	return p.decodeExited.Load() && p.video.Depth() == 0
}

// Eligible requires both buffers at or above targetDepth (spec §4.4 Case B
// "Normal commit" gating), the ordinary content-to-content/pad-to-content
// swap condition.
func (p *contentProducer) Eligible() bool {
	return p.video.Depth() >= p.targetDepth && p.audio.Depth() >= p.targetDepth
}

func (p *contentProducer) IsPad() bool       { return false }
func (p *contentProducer) SegmentIndex() int { return p.segment.Index }

// markDecodeExited is called by the fill goroutine when DecodeSegment
// returns, regardless of success or failure.
func (p *contentProducer) markDecodeExited() {
	p.decodeExited.Store(true)
}

// padProducer adapts the session-lifetime pad.Producer into tick.Producer.
// It never depletes and is eligible once the configured audio-depth
// threshold is non-zero: pad audio is synthesized on demand with zero
// per-frame allocation, so the threshold is always immediately satisfiable
// (spec §9 open question on exact pad-swap audio-depth semantics — see
// DESIGN.md for the recorded decision).
type padProducer struct {
	segIndex       int
	producer       *pad.Producer
	audioThreshold int
	frameIndex     int64
}

func newPadProducer(segIndex int, producer *pad.Producer, audioThreshold int) *padProducer {
	return &padProducer{segIndex: segIndex, producer: producer, audioThreshold: audioThreshold}
}

func (p *padProducer) NextVideoFrame(i int64) (model.Frame, bool) {
	return p.producer.VideoFrame(0, i, p.segIndex), true
}

func (p *padProducer) NextAudioQuantum(i int64) (model.Frame, bool) {
	return p.producer.AudioFrame(0, i, p.segIndex), true
}

func (p *padProducer) IsDepleted() bool { return false }

func (p *padProducer) Eligible() bool { return p.audioThreshold >= 1 }

func (p *padProducer) IsPad() bool       { return true }
func (p *padProducer) SegmentIndex() int { return p.segIndex }
