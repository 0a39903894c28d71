package transition

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/retrovue/air/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestAlphaIn_NilSpecIsFullyOpaque(t *testing.T) {
	assert.Equal(t, 1.0, AlphaIn(nil, 0))
}

func TestAlphaIn_RampsLinearly(t *testing.T) {
	spec := &model.TransitionSpec{FadeInMillis: 1000}
	assert.Equal(t, 0.0, AlphaIn(spec, 0))
	assert.Equal(t, 0.5, AlphaIn(spec, 500))
	assert.Equal(t, 1.0, AlphaIn(spec, 1000))
	assert.Equal(t, 1.0, AlphaIn(spec, 1500))
}

func TestAlphaOut_RampsLinearly(t *testing.T) {
	spec := &model.TransitionSpec{FadeOutMillis: 1000}
	assert.Equal(t, 1.0, AlphaOut(spec, 1000))
	assert.Equal(t, 0.5, AlphaOut(spec, 500))
	assert.Equal(t, 0.0, AlphaOut(spec, 0))
}

func TestCombined_TakesMinimumOfInAndOut(t *testing.T) {
	in := &model.TransitionSpec{FadeInMillis: 1000}
	out := &model.TransitionSpec{FadeOutMillis: 1000}

	// Short segment: fading in and out overlap. At elapsed=200 (still
	// fading in) and remaining=200 (already fading out), the out weight
	// should dominate.
	alpha := Combined(in, out, 200, 200)
	assert.InDelta(t, 0.2, alpha, 1e-9)
}

func TestCombined_NoTransitionsIsFullyOpaque(t *testing.T) {
	assert.Equal(t, 1.0, Combined(nil, nil, 0, 0))
}

func TestApplyVideo_NoOpAtFullOpacity(t *testing.T) {
	frame := []byte{200, 10, 20, 30, 40}
	ApplyVideo(frame, 1, 1, 1.0)
	assert.Equal(t, []byte{200, 10, 20, 30, 40}, frame)
}

func TestApplyVideo_ZeroAlphaBlacksLumaAndNeutralsChroma(t *testing.T) {
	// 2x2 luma (4 bytes) + 1x1 U/V (1 byte each).
	frame := []byte{200, 200, 200, 200, 64, 220}
	ApplyVideo(frame, 2, 2, 0.0)
	assert.Equal(t, []byte{0, 0, 0, 0}, frame[:4])
	assert.Equal(t, byte(128), frame[4])
	assert.Equal(t, byte(128), frame[5])
}

func TestApplyAudioS16_ScalesSamples(t *testing.T) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(int16(10000)))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(int16(-10000)))

	ApplyAudioS16(buf, 0.5)

	s0 := int16(binary.LittleEndian.Uint16(buf[0:2]))
	s1 := int16(binary.LittleEndian.Uint16(buf[2:4]))
	assert.Equal(t, int16(5000), s0)
	assert.Equal(t, int16(-5000), s1)
}

func TestApplyAudioF32_ScalesSamples(t *testing.T) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(0.8))

	ApplyAudioF32(buf, 0.5)

	got := math.Float32frombits(binary.LittleEndian.Uint32(buf))
	assert.InDelta(t, 0.4, float64(got), 1e-6)
}
