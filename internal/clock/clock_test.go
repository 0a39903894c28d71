package clock

import (
	"context"
	"testing"
	"time"

	"github.com/retrovue/air/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ntsc() model.Rational { return model.Rational{Num: 30000, Den: 1001} }

func TestDeadline_MonotonicAndExact(t *testing.T) {
	t0 := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	c := New(ntsc(), t0)

	d0 := c.Deadline(0)
	d1 := c.Deadline(1)
	d30000 := c.Deadline(30000)

	assert.Equal(t, t0, d0)
	assert.True(t, d1.After(d0))
	// 30000 frames at 30000/1001 fps = 1001 seconds exactly.
	assert.Equal(t, t0.Add(1001*time.Second), d30000)
}

func TestPTS90k_MatchesFrameRate(t *testing.T) {
	c := New(ntsc(), time.Now())

	// 30000 frames at 30000/1001 fps (~29.97fps) span exactly 1001 seconds,
	// so PTS advances by 1001 seconds of 90kHz clock.
	pts := c.PTS90k(30000)
	assert.Equal(t, int64(90000)*1001, pts)
}

func TestPTS90k_ZeroAtOrigin(t *testing.T) {
	c := New(ntsc(), time.Now())
	assert.Equal(t, int64(0), c.PTS90k(0))
}

func TestWaitForFrame_ReturnsImmediatelyWhenPast(t *testing.T) {
	t0 := time.Now().Add(-time.Hour)
	c := New(ntsc(), t0)

	lateness, err := c.WaitForFrame(context.Background(), 0)
	require.NoError(t, err)
	assert.Greater(t, lateness, time.Duration(0))
}

func TestWaitForFrame_RespectsCancellation(t *testing.T) {
	t0 := time.Now().Add(time.Hour)
	c := New(ntsc(), t0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.WaitForFrame(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
