// Package clock implements the Output Clock (spec §4.1): the single
// authority mapping a session frame index to its wall-clock deadline and
// its 90kHz presentation timestamp, using exact integer arithmetic so the
// pacing loop never drifts from accumulated floating-point error.
package clock

import (
	"context"
	"time"

	"github.com/retrovue/air/internal/model"
)

const pcrClockHz = 90000

// OutputClock paces frame emission to wall-clock time at a fixed rational
// frame rate, anchored at session start. It is the sole source of truth for
// "when is frame i due" and "what PTS does frame i carry" — every other
// component derives timing from it rather than computing its own.
type OutputClock struct {
	fps       model.Rational
	sessionT0 time.Time
}

// New creates an OutputClock anchored at sessionStart for the given frame rate.
func New(fps model.Rational, sessionStart time.Time) *OutputClock {
	return &OutputClock{fps: fps, sessionT0: sessionStart}
}

// Deadline returns the wall-clock instant at which frame index i is due,
// computed as sessionT0 + i*den/num seconds using exact integer nanosecond
// arithmetic (no float conversion anywhere in the formula).
func (c *OutputClock) Deadline(i int64) time.Time {
	// nanos = i * den * 1e9 / num, ordered to avoid intermediate overflow
	// for any realistic frame index and rate.
	nanos := i * c.fps.Den * int64(time.Second) / c.fps.Num
	return c.sessionT0.Add(time.Duration(nanos))
}

// PTS90k returns frame index i's presentation timestamp in 90kHz PCR/PTS
// units, the wire unit MPEG-TS requires.
func (c *OutputClock) PTS90k(i int64) int64 {
	return i * pcrClockHz * c.fps.Den / c.fps.Num
}

// WaitForFrame blocks the caller until frame index i's deadline, or until
// ctx is cancelled. It returns the lateness (positive if the caller was
// already past the deadline when called, i.e. the loop is running behind).
func (c *OutputClock) WaitForFrame(ctx context.Context, i int64) (lateness time.Duration, err error) {
	deadline := c.Deadline(i)
	now := time.Now()
	if now.After(deadline) {
		return now.Sub(deadline), nil
	}

	timer := time.NewTimer(deadline.Sub(now))
	defer timer.Stop()

	select {
	case <-timer.C:
		return 0, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// FPS returns the clock's configured frame rate.
func (c *OutputClock) FPS() model.Rational { return c.fps }

// SessionStart returns the clock's anchor instant.
func (c *OutputClock) SessionStart() time.Time { return c.sessionT0 }
