package mux

import "sync"

// H.264 NAL unit types relevant to parameter-set bookkeeping.
const (
	h264NALTypeIDR = 5 // IDR slice (keyframe)
	h264NALTypeSPS = 7 // Sequence Parameter Set
	h264NALTypePPS = 8 // Picture Parameter Set
)

// paramSetTracker remembers the most recent SPS/PPS seen on an encode's
// output and ensures every keyframe carries them, so a decoder joining
// mid-stream (or a client whose buffer evicted the original parameter
// sets) can always decode the next IDR frame.
type paramSetTracker struct {
	mu  sync.RWMutex
	sps []byte
	pps []byte
}

func newParamSetTracker() *paramSetTracker {
	return &paramSetTracker{}
}

// observe scans nalus for SPS/PPS and records any that changed.
func (t *paramSetTracker) observe(nalus [][]byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, nalu := range nalus {
		if len(nalu) == 0 {
			continue
		}
		switch nalu[0] & 0x1F {
		case h264NALTypeSPS:
			if !bytesEqual(t.sps, nalu) {
				t.sps = append([]byte(nil), nalu...)
			}
		case h264NALTypePPS:
			if !bytesEqual(t.pps, nalu) {
				t.pps = append([]byte(nil), nalu...)
			}
		}
	}
}

func isIDR(nalus [][]byte) bool {
	for _, nalu := range nalus {
		if len(nalu) > 0 && nalu[0]&0x1F == h264NALTypeIDR {
			return true
		}
	}
	return false
}

// ensureParamsOnKeyframe prepends the tracked SPS/PPS ahead of nalus if
// nalus is a keyframe access unit and doesn't already carry its own.
func (t *paramSetTracker) ensureParamsOnKeyframe(nalus [][]byte) [][]byte {
	if !isIDR(nalus) {
		return nalus
	}
	t.mu.RLock()
	sps, pps := t.sps, t.pps
	t.mu.RUnlock()
	if sps == nil || pps == nil {
		return nalus
	}
	for _, nalu := range nalus {
		if len(nalu) > 0 && nalu[0]&0x1F == h264NALTypeSPS {
			return nalus // already present
		}
	}
	return append([][]byte{sps, pps}, nalus...)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// splitAnnexB splits Annex B byte-stream-formatted data into its component
// NAL units, stripping 3- or 4-byte start codes.
func splitAnnexB(data []byte) [][]byte {
	var nalus [][]byte
	i := 0
	start := -1
	for i < len(data)-2 {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			if start >= 0 {
				nalus = append(nalus, trimTrailingZero(data[start:i]))
			}
			i += 3
			start = i
			continue
		}
		i++
	}
	if start >= 0 && start < len(data) {
		nalus = append(nalus, data[start:])
	}
	return nalus
}

// trimTrailingZero drops a trailing zero byte left behind when a NAL unit
// is immediately followed by a 4-byte start code (the extra leading zero
// of the next one is absorbed by the 3-byte scan above).
func trimTrailingZero(nalu []byte) []byte {
	if len(nalu) > 0 && nalu[len(nalu)-1] == 0 {
		return nalu[:len(nalu)-1]
	}
	return nalu
}
