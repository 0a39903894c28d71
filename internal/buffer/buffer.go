// Package buffer implements the Lookahead Buffer (spec §4.2): a small,
// bounded, single-writer/single-reader FIFO of frames with symmetric
// backpressure between the Fill/Decode producer and the Tick Loop consumer.
package buffer

import (
	"context"
	"errors"
	"sync"

	"github.com/retrovue/air/internal/model"
)

// ErrClosed is returned by Push/Pop once the buffer has been closed.
var ErrClosed = errors.New("lookahead buffer closed")

// LookaheadBuffer is a bounded FIFO of model.Frame sized to 2N, where N is
// the configured lookahead depth (spec §4.2). It signals not-empty/not-full
// the same way the teacher's cyclic buffer signals clients: a
// single-slot, non-blocking "wake" channel rather than condition variables.
type LookaheadBuffer struct {
	mu       sync.Mutex
	frames   []model.Frame
	capacity int
	closed   bool

	notEmpty chan struct{}
	notFull  chan struct{}
}

// New creates a LookaheadBuffer with room for capacity frames.
func New(capacity int) *LookaheadBuffer {
	return &LookaheadBuffer{
		frames:   make([]model.Frame, 0, capacity),
		capacity: capacity,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// TryPush appends a frame without blocking. It reports false if the buffer
// is full (the producer must then apply backpressure) or closed.
func (b *LookaheadBuffer) TryPush(f model.Frame) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, ErrClosed
	}
	if len(b.frames) >= b.capacity {
		return false, nil
	}
	b.frames = append(b.frames, f)
	signal(b.notEmpty)
	return true, nil
}

// PushBlocking appends a frame, blocking until space is available, the
// buffer is closed, or ctx is cancelled.
func (b *LookaheadBuffer) PushBlocking(ctx context.Context, f model.Frame) error {
	for {
		ok, err := b.TryPush(f)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-b.notFull:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// tryPushUnderLead is TryPush with an additional gate: the push is refused,
// without error, if it would put own more than maxLead frames ahead of a
// sibling buffer's current depth.
func (b *LookaheadBuffer) tryPushUnderLead(f model.Frame, otherDepth, maxLead int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, ErrClosed
	}
	if len(b.frames) >= b.capacity {
		return false, nil
	}
	if len(b.frames)-otherDepth >= maxLead {
		return false, nil
	}
	b.frames = append(b.frames, f)
	signal(b.notEmpty)
	return true, nil
}

// PushPaired appends f to own, blocking while own is full AND while own has
// run more than maxLead frames ahead of other's current depth (spec §4.3's
// symmetric backpressure: "whichever buffer is full blocks fill for both
// streams — neither stream runs ahead of the other by more than one
// buffer-target"). other must be the sibling buffer being filled by the
// same decode session (video paired with audio, or vice versa); own and
// other are each read/written by exactly one goroutine, so reading other's
// depth here never races with own's lock.
func PushPaired(ctx context.Context, own, other *LookaheadBuffer, maxLead int, f model.Frame) error {
	for {
		ok, err := own.tryPushUnderLead(f, other.Depth(), maxLead)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-own.notFull:
		case <-other.notEmpty:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TryPop removes and returns the oldest frame without blocking. It reports
// false if the buffer is empty.
func (b *LookaheadBuffer) TryPop() (model.Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) == 0 {
		return model.Frame{}, false
	}
	f := b.frames[0]
	b.frames = b.frames[1:]
	signal(b.notFull)
	return f, true
}

// Depth returns the current number of buffered frames.
func (b *LookaheadBuffer) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Capacity returns the buffer's fixed capacity.
func (b *LookaheadBuffer) Capacity() int { return b.capacity }

// Clear discards all buffered frames and wakes a blocked pusher. No
// pipeline component calls it; the tick loop's vacuum path does not clear
// buffers.
func (b *LookaheadBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = b.frames[:0]
	signal(b.notFull)
}

// Close marks the buffer closed; pending and future pushes return
// ErrClosed, and any blocked PushBlocking wakes. TryPop keeps returning
// frames buffered before Close and reports false once they are drained.
func (b *LookaheadBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	signal(b.notFull)
	signal(b.notEmpty)
}
