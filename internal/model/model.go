// Package model defines the data types shared across the air playout engine:
// rational frame rates, content time, blocks/segments, the session-immutable
// program format, and the frame/sample buffers that flow between components.
package model

import "github.com/google/uuid"

// Rational is an exact frame rate expressed as num/den (e.g. 30000/1001).
// All timing math in the hot path uses integer arithmetic over this type;
// floating point is never used for deadline or PTS computation.
type Rational struct {
	Num int64
	Den int64
}

// FramesToMillis converts a frame count to milliseconds at this rate,
// truncating (floor) division, matching the spec's exact-integer mandate.
func (r Rational) FramesToMillis(frames int64) int64 {
	return frames * 1000 * r.Den / r.Num
}

// MillisToFrames converts a millisecond duration to a frame count at this rate.
func (r Rational) MillisToFrames(millis int64) int64 {
	return millis * r.Num / (1000 * r.Den)
}

// SampleFormat names a raw PCM sample layout.
type SampleFormat string

// Supported sample formats.
const (
	SampleFormatS16  SampleFormat = "s16"
	SampleFormatFltP SampleFormat = "fltp"
)

// VideoFormat is the video half of a session's ProgramFormat.
type VideoFormat struct {
	Width  int
	Height int
	FPS    Rational
}

// AudioFormat is the audio half of a session's ProgramFormat.
type AudioFormat struct {
	SampleRate   int
	Channels     int
	SampleFormat SampleFormat
}

// AspectPolicy selects how a source's aspect ratio maps onto ProgramFormat's raster.
type AspectPolicy string

// Aspect policies (spec §4.8).
const (
	AspectPreserve AspectPolicy = "preserve"
	AspectStretch  AspectPolicy = "stretch"
)

// ProgramFormat is the session-immutable target format every producer and
// sink must conform to. Set once at session start; never changes (§3).
type ProgramFormat struct {
	Video  VideoFormat
	Audio  AudioFormat
	Aspect AspectPolicy
}

// TransitionSpec describes a fade-in and/or fade-out applied during production
// (§4.7). A zero duration on either side means that side is a clean cut.
type TransitionSpec struct {
	FadeInMillis  int64
	FadeOutMillis int64
}

// HasFadeIn reports whether a fade-in is declared.
func (t TransitionSpec) HasFadeIn() bool { return t.FadeInMillis > 0 }

// HasFadeOut reports whether a fade-out is declared.
func (t TransitionSpec) HasFadeOut() bool { return t.FadeOutMillis > 0 }

// SegmentKind distinguishes content from pad segments.
type SegmentKind int

// Segment kinds.
const (
	SegmentContent SegmentKind = iota
	SegmentPad
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentContent:
		return "content"
	case SegmentPad:
		return "pad"
	default:
		return "unknown"
	}
}

// Segment is one ordered element of a Block (§3). A content segment names a
// source asset and seek offset; a pad segment synthesizes black+silence for
// its declared duration.
type Segment struct {
	// Index is the segment's position within its owning block — its
	// origin_segment_index per the lifecycle invariant in §3.
	Index int
	Kind  SegmentKind

	// Content-only fields.
	AssetURI            string
	AssetStartOffsetMs  int64
	TransitionIn         *TransitionSpec
	TransitionOut        *TransitionSpec

	// DurationMs is the declared segment duration for both kinds.
	DurationMs int64

	// GainDB is the precomputed loudness adjustment applied at mux time (§4.8).
	GainDB float64
}

// IsPad reports whether this is a pad segment.
func (s Segment) IsPad() bool { return s.Kind == SegmentPad }

// Block is an ordered, non-empty sequence of Segments (§3).
type Block struct {
	ID          uuid.UUID
	StartUTCMs  int64
	EndUTCMs    int64
	// FenceTick is the session frame index at which this block terminates.
	FenceTick  int64
	Segments   []Segment
}

// Frame carries one decoded video or audio buffer through the pipeline (§3).
// Origin is set at frame selection time and is immutable after encode, with
// the single narrowly-specified exception in §4.4 (the vacuum exception).
type Frame struct {
	CTMillis          int64
	SessionFrameIndex int64
	OriginSegment     int
	Alpha             float64

	// Video payload: raw planar pixels at ProgramFormat.Video. Nil for audio frames.
	VideoData []byte

	// Audio payload: interleaved PCM samples at ProgramFormat.Audio. Nil for video frames.
	AudioData []byte
	// AudioSampleCount is the number of samples (per channel) in AudioData.
	AudioSampleCount int
}

// IsVideo reports whether this frame carries a video payload.
func (f Frame) IsVideo() bool { return f.VideoData != nil }
