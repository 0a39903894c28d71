package mux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func annexB(nalTypes ...byte) []byte {
	var out []byte
	for _, nt := range nalTypes {
		out = append(out, 0, 0, 0, 1, nt)
	}
	return out
}

func TestSplitAnnexB_SplitsMultipleNALUs(t *testing.T) {
	data := annexB(0x67, 0x68, 0x65) // SPS, PPS, IDR slice
	nalus := splitAnnexB(data)
	assert.Len(t, nalus, 3)
}

func TestParamSetTracker_ObservesAndPrepends(t *testing.T) {
	tracker := newParamSetTracker()

	sps := []byte{0x67, 0xAA}
	pps := []byte{0x68, 0xBB}
	tracker.observe([][]byte{sps, pps})

	idr := []byte{0x65, 0xCC}
	out := tracker.ensureParamsOnKeyframe([][]byte{idr})

	assert.Equal(t, [][]byte{sps, pps, idr}, out)
}

func TestParamSetTracker_SkipsNonKeyframe(t *testing.T) {
	tracker := newParamSetTracker()
	tracker.observe([][]byte{{0x67, 0xAA}, {0x68, 0xBB}})

	nonIDR := []byte{0x41, 0xCC} // non-IDR slice type 1
	out := tracker.ensureParamsOnKeyframe([][]byte{nonIDR})

	assert.Equal(t, [][]byte{nonIDR}, out)
}

func TestParamSetTracker_DoesNotDuplicateExistingParams(t *testing.T) {
	tracker := newParamSetTracker()
	sps := []byte{0x67, 0xAA}
	pps := []byte{0x68, 0xBB}
	tracker.observe([][]byte{sps, pps})

	idr := []byte{0x65, 0xCC}
	out := tracker.ensureParamsOnKeyframe([][]byte{sps, pps, idr})

	assert.Equal(t, [][]byte{sps, pps, idr}, out)
}

func TestIsIDR_DetectsNALType5(t *testing.T) {
	assert.True(t, isIDR([][]byte{{0x65, 0x00}}))
	assert.False(t, isIDR([][]byte{{0x41, 0x00}}))
}
