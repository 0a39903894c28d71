// Package encode implements the Encode stage: two long-lived FFmpeg
// subprocesses — one encoding composited raw video frames to an H.264
// Annex B elementary stream, one encoding composited raw audio frames to
// ADTS AAC — feeding the Mux stage's independent video/audio PES cadence.
package encode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/retrovue/air/internal/config"
	"github.com/retrovue/air/internal/model"
)

// stream wraps one persistent FFmpeg encode subprocess.
type stream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	writeMu sync.Mutex
}

func (s *stream) Write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.stdin.Write(data)
	return err
}

func (s *stream) Reader() *bufio.Reader {
	return bufio.NewReaderSize(s.stdout, 64*1024)
}

func (s *stream) Close() error {
	_ = s.stdin.Close()
	return s.cmd.Wait()
}

func startStream(ctx context.Context, ffmpegPath string, args []string) (*stream, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encode: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("encode: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("encode: start ffmpeg: %w", err)
	}
	return &stream{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

// VideoEncoder encodes raw yuv420p frames to an H.264 Annex B elementary stream.
type VideoEncoder struct {
	s      *stream
	logger *slog.Logger
}

// StartVideo launches the video encode subprocess for format at the configured preset.
func StartVideo(ctx context.Context, ffmpegPath string, format model.VideoFormat, cfg config.FFmpegConfig, logger *slog.Logger) (*VideoEncoder, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "yuv420p",
		"-s", fmt.Sprintf("%dx%d", format.Width, format.Height),
		"-r", fmt.Sprintf("%d/%d", format.FPS.Num, format.FPS.Den),
		"-i", "pipe:0",
		"-c:v", "libx264", "-preset", cfg.VideoPreset, "-tune", "zerolatency",
		"-x264-params", "scenecut=0:open_gop=0:min-keyint=infinite",
		"-f", "h264", "pipe:1",
	}
	s, err := startStream(ctx, ffmpegPath, args)
	if err != nil {
		return nil, err
	}
	return &VideoEncoder{s: s, logger: logger}, nil
}

// WriteFrame writes one raw video frame to the encoder.
func (e *VideoEncoder) WriteFrame(data []byte) error { return e.s.Write(data) }

// Output returns a reader over the encoder's Annex B elementary stream.
func (e *VideoEncoder) Output() *bufio.Reader { return e.s.Reader() }

// Close stops the encoder and waits for it to exit.
func (e *VideoEncoder) Close() error { return e.s.Close() }

// AudioEncoder encodes raw PCM frames to ADTS AAC.
type AudioEncoder struct {
	s      *stream
	logger *slog.Logger
}

// StartAudio launches the audio encode subprocess for format.
func StartAudio(ctx context.Context, ffmpegPath string, format model.AudioFormat, logger *slog.Logger) (*AudioEncoder, error) {
	sampleFmt := "s16le"
	if format.SampleFormat == model.SampleFormatFltP {
		sampleFmt = "f32le"
	}
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", sampleFmt, "-ar", fmt.Sprintf("%d", format.SampleRate), "-ac", fmt.Sprintf("%d", format.Channels),
		"-i", "pipe:0",
		"-c:a", "aac", "-f", "adts", "pipe:1",
	}
	s, err := startStream(ctx, ffmpegPath, args)
	if err != nil {
		return nil, err
	}
	return &AudioEncoder{s: s, logger: logger}, nil
}

// WriteFrame writes one raw audio frame to the encoder.
func (e *AudioEncoder) WriteFrame(data []byte) error { return e.s.Write(data) }

// Output returns a reader over the encoder's ADTS AAC stream.
func (e *AudioEncoder) Output() *bufio.Reader { return e.s.Reader() }

// Close stops the encoder and waits for it to exit.
func (e *AudioEncoder) Close() error { return e.s.Close() }
