package buffer

import (
	"context"
	"testing"
	"time"

	"github.com/retrovue/air/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryPush_RespectsCapacity(t *testing.T) {
	b := New(2)

	ok, err := b.TryPush(model.Frame{SessionFrameIndex: 0})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryPush(model.Frame{SessionFrameIndex: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryPush(model.Frame{SessionFrameIndex: 2})
	require.NoError(t, err)
	assert.False(t, ok, "push beyond capacity must fail, not block")
}

func TestTryPop_FIFOOrder(t *testing.T) {
	b := New(4)
	_, _ = b.TryPush(model.Frame{SessionFrameIndex: 1})
	_, _ = b.TryPush(model.Frame{SessionFrameIndex: 2})

	f, ok := b.TryPop()
	require.True(t, ok)
	assert.Equal(t, int64(1), f.SessionFrameIndex)

	f, ok = b.TryPop()
	require.True(t, ok)
	assert.Equal(t, int64(2), f.SessionFrameIndex)

	_, ok = b.TryPop()
	assert.False(t, ok)
}

func TestPushBlocking_UnblocksOnPop(t *testing.T) {
	b := New(1)
	_, _ = b.TryPush(model.Frame{SessionFrameIndex: 0})

	done := make(chan error, 1)
	go func() {
		done <- b.PushBlocking(context.Background(), model.Frame{SessionFrameIndex: 1})
	}()

	select {
	case <-done:
		t.Fatal("PushBlocking returned before space was freed")
	case <-time.After(20 * time.Millisecond):
	}

	_, _ = b.TryPop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("PushBlocking did not unblock after Pop freed space")
	}
}

func TestPushBlocking_RespectsContextCancellation(t *testing.T) {
	b := New(1)
	_, _ = b.TryPush(model.Frame{SessionFrameIndex: 0})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := b.PushBlocking(ctx, model.Frame{SessionFrameIndex: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClear_EmptiesBufferAndUnblocksProducer(t *testing.T) {
	b := New(1)
	_, _ = b.TryPush(model.Frame{SessionFrameIndex: 0})

	b.Clear()
	assert.Equal(t, 0, b.Depth())

	ok, err := b.TryPush(model.Frame{SessionFrameIndex: 1})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPushPaired_BlocksWhenAheadOfSibling(t *testing.T) {
	video := New(10)
	audio := New(10)

	for i := 0; i < 2; i++ {
		require.NoError(t, PushPaired(context.Background(), video, audio, 2, model.Frame{SessionFrameIndex: int64(i)}))
	}

	done := make(chan error, 1)
	go func() {
		done <- PushPaired(context.Background(), video, audio, 2, model.Frame{SessionFrameIndex: 2})
	}()

	select {
	case <-done:
		t.Fatal("PushPaired should have blocked: video is already 2 frames ahead of empty audio")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, PushPaired(context.Background(), audio, video, 2, model.Frame{SessionFrameIndex: 0}))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("PushPaired did not unblock after the sibling buffer gained a frame")
	}
}

func TestPushPaired_RespectsContextCancellation(t *testing.T) {
	video := New(10)
	audio := New(10)
	require.NoError(t, PushPaired(context.Background(), video, audio, 1, model.Frame{}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := PushPaired(ctx, video, audio, 1, model.Frame{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClose_CausesErrClosed(t *testing.T) {
	b := New(1)
	b.Close()

	_, err := b.TryPush(model.Frame{})
	assert.ErrorIs(t, err, ErrClosed)

	err = b.PushBlocking(context.Background(), model.Frame{})
	assert.ErrorIs(t, err, ErrClosed)
}
