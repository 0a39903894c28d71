// Package mux implements the Mux stage (spec §4.6): it packetizes the
// encoder's H.264 elementary stream and AAC access units into MPEG-TS
// using mediacommon, re-emitting PAT/PMT on a cadence independent of the
// video/audio packetization (§4.6's independent-cadence requirement).
package mux

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/retrovue/air/internal/model"
)

// PID and PSI assignments, configurable via Config.
const (
	DefaultVideoPID = 0x0100
	DefaultAudioPID = 0x0101
	patPID          = 0x0000
	pmtPID          = 0x1000
	programNumber   = 1
)

// Config configures the muxer's PIDs and codec selection.
type Config struct {
	VideoPID   uint16
	AudioPID   uint16
	VideoCodec string // "h264"
	AudioCodec string // "aac"

	// PATPMTInterval is how many video frames elapse between re-emitted
	// PAT/PMT tables, independent of the video/audio packetization cadence
	// (spec §4.6's independent-cadence requirement).
	PATPMTInterval int
}

// Muxer packetizes encoded access units into MPEG-TS, writing to an
// underlying io.Writer (the Sink's consume path).
type Muxer struct {
	cfg    Config
	w      io.Writer
	logger *slog.Logger

	mu          sync.Mutex
	writer      *mpegts.Writer
	videoTrack  *mpegts.Track
	audioTrack  *mpegts.Track
	initialized bool

	params *paramSetTracker

	videoFramesSinceTable int
}

// New creates a Muxer writing to w for the session's ProgramFormat.
func New(w io.Writer, format model.ProgramFormat, cfg Config, logger *slog.Logger) *Muxer {
	if cfg.VideoPID == 0 {
		cfg.VideoPID = DefaultVideoPID
	}
	if cfg.AudioPID == 0 {
		cfg.AudioPID = DefaultAudioPID
	}
	if cfg.PATPMTInterval <= 0 {
		cfg.PATPMTInterval = int(format.Video.FPS.Num / format.Video.FPS.Den) // ~once per second
	}
	return &Muxer{cfg: cfg, w: w, logger: logger, params: newParamSetTracker()}
}

func (m *Muxer) initialize() error {
	if m.initialized {
		return nil
	}

	m.videoTrack = &mpegts.Track{PID: m.cfg.VideoPID, Codec: &mpegts.CodecH264{}}
	m.audioTrack = &mpegts.Track{
		PID: m.cfg.AudioPID,
		Codec: &mpegts.CodecMPEG4Audio{Config: mpeg4audio.AudioSpecificConfig{
			Type:         mpeg4audio.ObjectTypeAACLC,
			SampleRate:   48000,
			ChannelCount: 2,
		}},
	}

	m.writer = &mpegts.Writer{W: m.w, Tracks: []*mpegts.Track{m.videoTrack, m.audioTrack}}
	if err := m.writer.Initialize(); err != nil {
		return fmt.Errorf("mux: initialize mpegts writer: %w", err)
	}

	m.initialized = true
	return nil
}

// WriteVideo packetizes one Annex-B-formatted H.264 access unit at the
// given 90kHz PTS/DTS, prepending SPS/PPS to keyframes as needed.
func (m *Muxer) WriteVideo(pts, dts int64, annexB []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.initialize(); err != nil {
		return err
	}

	nalus := splitAnnexB(annexB)
	if len(nalus) == 0 {
		return nil
	}
	m.params.observe(nalus)
	nalus = m.params.ensureParamsOnKeyframe(nalus)

	m.videoFramesSinceTable++
	if m.videoFramesSinceTable >= m.cfg.PATPMTInterval {
		if _, err := m.writer.WriteTables(); err != nil {
			return fmt.Errorf("mux: write PAT/PMT: %w", err)
		}
		m.videoFramesSinceTable = 0
	}

	return m.writer.WriteH264(m.videoTrack, pts, dts, nalus)
}

// WriteAudio packetizes one raw AAC access unit at the given 90kHz PTS.
func (m *Muxer) WriteAudio(pts int64, aacFrame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.initialize(); err != nil {
		return err
	}
	if len(aacFrame) == 0 {
		return nil
	}
	return m.writer.WriteMPEG4Audio(m.audioTrack, pts, [][]byte{aacFrame})
}
