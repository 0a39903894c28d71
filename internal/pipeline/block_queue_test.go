package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrovue/air/internal/model"
)

func seg() []model.Segment {
	return []model.Segment{{Index: 0, Kind: model.SegmentContent, AssetURI: "a.mp4", DurationMs: 1000}}
}

func TestBlockQueue_AcceptsFirstBlockWithGap(t *testing.T) {
	q := NewBlockQueue()
	err := q.Submit(model.Block{StartUTCMs: 5000, EndUTCMs: 6000, Segments: seg()})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())
}

func TestBlockQueue_RejectsNonContiguousSecondBlock(t *testing.T) {
	q := NewBlockQueue()
	require.NoError(t, q.Submit(model.Block{StartUTCMs: 0, EndUTCMs: 1000, Segments: seg()}))

	err := q.Submit(model.Block{StartUTCMs: 2000, EndUTCMs: 3000, Segments: seg()})
	assert.ErrorIs(t, err, ErrBlockNotContiguous)
	assert.Equal(t, 1, q.Len())
}

func TestBlockQueue_AcceptsContiguousSecondBlock(t *testing.T) {
	q := NewBlockQueue()
	require.NoError(t, q.Submit(model.Block{StartUTCMs: 0, EndUTCMs: 1000, Segments: seg()}))
	err := q.Submit(model.Block{StartUTCMs: 1000, EndUTCMs: 2000, Segments: seg()})
	require.NoError(t, err)
	assert.Equal(t, 2, q.Len())
}

func TestBlockQueue_RejectsMalformedBlock(t *testing.T) {
	q := NewBlockQueue()
	err := q.Submit(model.Block{StartUTCMs: 0, EndUTCMs: 1000})
	assert.ErrorIs(t, err, ErrBlockMalformed)
}

func TestBlockQueue_NextDrainsFIFO(t *testing.T) {
	q := NewBlockQueue()
	require.NoError(t, q.Submit(model.Block{StartUTCMs: 0, EndUTCMs: 1000, Segments: seg()}))
	require.NoError(t, q.Submit(model.Block{StartUTCMs: 1000, EndUTCMs: 2000, Segments: seg()}))

	first, ok := q.Next()
	require.True(t, ok)
	assert.EqualValues(t, 0, first.StartUTCMs)

	second, ok := q.Next()
	require.True(t, ok)
	assert.EqualValues(t, 1000, second.StartUTCMs)

	_, ok = q.Next()
	assert.False(t, ok)
}
