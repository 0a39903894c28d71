// Package transition computes the per-frame alpha blend weight used during
// segment fades (spec §4.7). All functions here are pure: no I/O, no
// allocation, safe to call from the hot tick path.
package transition

import (
	"encoding/binary"
	"math"

	"github.com/retrovue/air/internal/model"
)

// AlphaIn returns the fade-in weight at elapsedMillis since the segment
// started, given its declared fade-in spec. A nil or zero-duration fade
// yields full opacity immediately (a clean cut).
func AlphaIn(t *model.TransitionSpec, elapsedMillis int64) float64 {
	if t == nil || !t.HasFadeIn() {
		return 1.0
	}
	if elapsedMillis >= t.FadeInMillis {
		return 1.0
	}
	if elapsedMillis <= 0 {
		return 0.0
	}
	return float64(elapsedMillis) / float64(t.FadeInMillis)
}

// AlphaOut returns the fade-out weight with remainingMillis left until the
// segment ends, given its declared fade-out spec. A nil or zero-duration
// fade yields full opacity until the cut.
func AlphaOut(t *model.TransitionSpec, remainingMillis int64) float64 {
	if t == nil || !t.HasFadeOut() {
		return 1.0
	}
	if remainingMillis >= t.FadeOutMillis {
		return 1.0
	}
	if remainingMillis <= 0 {
		return 0.0
	}
	return float64(remainingMillis) / float64(t.FadeOutMillis)
}

// Combined returns the frame's actual blend weight: the lesser of its
// fade-in and fade-out weights, so overlapping in/out windows on a short
// segment never exceed either individual constraint (spec §4.7).
func Combined(in, out *model.TransitionSpec, elapsedMillis, remainingMillis int64) float64 {
	ai := AlphaIn(in, elapsedMillis)
	ao := AlphaOut(out, remainingMillis)
	if ai < ao {
		return ai
	}
	return ao
}

const neutralChroma = 128

// ApplyVideo blends a YUV420p frame toward black according to alpha: luma
// is scaled by alpha, chroma is blended toward the neutral level 128 by
// (1 - alpha) (spec §4.7). A no-op at alpha == 1 (the pad exemption and the
// common no-fade case both take this path for free).
func ApplyVideo(frameData []byte, width, height int, alpha float64) {
	if alpha >= 1.0 {
		return
	}
	lumaSize := width * height
	chromaSize := (width / 2) * (height / 2)
	chromaEnd := lumaSize + 2*chromaSize
	if chromaEnd > len(frameData) {
		chromaEnd = len(frameData)
	}

	for i := 0; i < lumaSize && i < len(frameData); i++ {
		frameData[i] = byte(float64(frameData[i]) * alpha)
	}
	for i := lumaSize; i < chromaEnd; i++ {
		frameData[i] = byte(neutralChroma + (float64(frameData[i])-neutralChroma)*alpha)
	}
}

// ApplyAudioS16 scales each little-endian signed 16-bit sample by alpha,
// clamping to the int16 range (spec §4.7). A no-op at alpha == 1.
func ApplyAudioS16(sampleData []byte, alpha float64) {
	if alpha >= 1.0 {
		return
	}
	for i := 0; i+1 < len(sampleData); i += 2 {
		s := int16(binary.LittleEndian.Uint16(sampleData[i : i+2]))
		scaled := float64(s) * alpha
		switch {
		case scaled > math.MaxInt16:
			scaled = math.MaxInt16
		case scaled < math.MinInt16:
			scaled = math.MinInt16
		}
		binary.LittleEndian.PutUint16(sampleData[i:i+2], uint16(int16(scaled)))
	}
}

// ApplyAudioF32 scales each little-endian float32 sample by alpha, clamping
// to [-1, 1]. A no-op at alpha == 1.
func ApplyAudioF32(sampleData []byte, alpha float64) {
	if alpha >= 1.0 {
		return
	}
	for i := 0; i+3 < len(sampleData); i += 4 {
		s := math.Float32frombits(binary.LittleEndian.Uint32(sampleData[i : i+4]))
		scaled := float64(s) * alpha
		switch {
		case scaled > 1:
			scaled = 1
		case scaled < -1:
			scaled = -1
		}
		binary.LittleEndian.PutUint32(sampleData[i:i+4], math.Float32bits(float32(scaled)))
	}
}
