package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_SnapshotReflectsCounters(t *testing.T) {
	m := NewMetrics()
	m.FramesEmittedTotal.Add(150)
	m.PadFramesEmittedTotal.Add(30)
	m.SeamNormalCount.Add(1)
	m.VideoBufferDepth.Store(3)

	snap := m.Snapshot(context.Background())

	assert.Equal(t, uint64(150), snap.FramesEmittedTotal)
	assert.Equal(t, uint64(30), snap.PadFramesEmittedTotal)
	assert.Equal(t, uint64(1), snap.SeamNormalCount)
	assert.Equal(t, int64(3), snap.VideoBufferDepth)
	assert.GreaterOrEqual(t, snap.Uptime.Nanoseconds(), int64(0))
}

func TestMetrics_SnapshotIsIndependentOfSource(t *testing.T) {
	m := NewMetrics()
	snap := m.Snapshot(context.Background())
	m.FramesEmittedTotal.Add(1)

	assert.Equal(t, uint64(0), snap.FramesEmittedTotal, "snapshot must not observe later writes")
}
