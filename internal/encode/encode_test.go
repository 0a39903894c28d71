package encode

import (
	"context"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"github.com/retrovue/air/internal/config"
	"github.com/retrovue/air/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartVideo_EncodesBlackFrames(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	format := model.VideoFormat{Width: 16, Height: 16, FPS: model.Rational{Num: 10, Den: 1}}
	enc, err := StartVideo(ctx, "ffmpeg", format, config.FFmpegConfig{VideoPreset: "ultrafast"}, slog.Default())
	require.NoError(t, err)

	var totalRead int
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, 4096)
		out := enc.Output()
		for {
			n, err := out.Read(buf)
			totalRead += n
			if err != nil {
				return
			}
		}
	}()

	frame := make([]byte, 16*16+2*8*8)
	for i := 0; i < 5; i++ {
		require.NoError(t, enc.WriteFrame(frame))
	}
	require.NoError(t, enc.Close())
	<-readDone

	assert.True(t, totalRead > 0)
}
