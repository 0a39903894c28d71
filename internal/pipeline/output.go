package pipeline

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/retrovue/air/internal/encode"
	"github.com/retrovue/air/internal/mux"
)

// drainVideo reads the video encoder's continuous Annex-B byte stream,
// carves it into access units on NAL start-code boundaries, and hands each
// one to the muxer with a PTS/DTS derived from a monotonically increasing
// access-unit counter. zerolatency tune with scenecut disabled means
// encode order equals presentation order, so no B-frame reordering offset
// is needed between PTS and DTS.
func drainVideo(ctx context.Context, enc *encode.VideoEncoder, muxer *mux.Muxer, clk pts90kSource) error {
	reader := enc.Output()
	var accumulated []byte
	var auCount int64

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		chunk, err := readChunk(reader)
		if len(chunk) > 0 {
			accumulated = append(accumulated, chunk...)
			accumulated, auCount = flushCompleteAUs(accumulated, auCount, func(au []byte, n int64) {
				pts := clk.PTS90k(n)
				_ = muxer.WriteVideo(pts, pts, au)
			})
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// flushCompleteAUs splits off every Annex-B access unit fully contained in
// buf (i.e. everything before the last start code, which may begin an
// as-yet-incomplete unit), invoking emit for each with its own counter
// value and returning the unconsumed remainder plus the updated counter.
func flushCompleteAUs(buf []byte, auCount int64, emit func([]byte, int64)) ([]byte, int64) {
	starts := findStartCodes(buf)
	if len(starts) < 2 {
		return buf, auCount
	}
	for idx := 0; idx < len(starts)-1; idx++ {
		emit(buf[starts[idx]:starts[idx+1]], auCount)
		auCount++
	}
	return buf[starts[len(starts)-1]:], auCount
}

func findStartCodes(buf []byte) []int {
	var starts []int
	for i := 0; i+2 < len(buf); i++ {
		if buf[i] == 0 && buf[i+1] == 0 && buf[i+2] == 1 {
			starts = append(starts, i)
		}
	}
	return starts
}

// pts90kSource narrows *clock.OutputClock to the one method drainVideo and
// drainAudio need, so tests can substitute a trivial fake.
type pts90kSource interface {
	PTS90k(i int64) int64
}

const adtsHeaderLen = 7

// drainAudio reads the audio encoder's ADTS stream, strips each frame's
// 7-byte ADTS header (mediacommon's WriteMPEG4Audio expects raw AAC access
// units, not ADTS-wrapped ones), and hands the result to the muxer.
func drainAudio(ctx context.Context, enc *encode.AudioEncoder, muxer *mux.Muxer, clk pts90kSource, samplesPerFrame, sampleRate int) error {
	reader := enc.Output()
	var accumulated []byte
	var auCount int64

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		chunk, err := readChunk(reader)
		if len(chunk) > 0 {
			accumulated = append(accumulated, chunk...)
			for {
				frame, rest, ok := nextADTSFrame(accumulated)
				if !ok {
					break
				}
				accumulated = rest
				if len(frame) > adtsHeaderLen {
					pts := auCount * int64(samplesPerFrame) * 90000 / int64(sampleRate)
					_ = muxer.WriteAudio(pts, frame[adtsHeaderLen:])
				}
				auCount++
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// nextADTSFrame extracts one complete ADTS frame from the front of buf, if
// present, using the 13-bit frame-length field in the ADTS header.
func nextADTSFrame(buf []byte) (frame []byte, rest []byte, ok bool) {
	if len(buf) < adtsHeaderLen {
		return nil, buf, false
	}
	if buf[0] != 0xFF || buf[1]&0xF0 != 0xF0 {
		return nil, buf, false
	}
	frameLen := (int(buf[3]&0x03) << 11) | (int(buf[4]) << 3) | (int(buf[5]) >> 5)
	if frameLen <= 0 || frameLen > len(buf) {
		return nil, buf, false
	}
	return buf[:frameLen], buf[frameLen:], true
}

func readChunk(r *bufio.Reader) ([]byte, error) {
	buf := make([]byte, 4096)
	n, err := r.Read(buf)
	return buf[:n], err
}
