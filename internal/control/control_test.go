package control

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrovue/air/internal/model"
	"github.com/retrovue/air/internal/observability"
)

// fakePlane is a minimal Plane implementation used only to confirm the
// interface is satisfiable and its methods have the expected shape.
type fakePlane struct {
	started []string
	metrics *observability.Metrics
}

func (f *fakePlane) StartChannel(_ context.Context, channelID string, _ []model.Block) error {
	f.started = append(f.started, channelID)
	return nil
}
func (f *fakePlane) StopChannel() error             { return nil }
func (f *fakePlane) SubmitBlock(model.Block) error  { return nil }
func (f *fakePlane) AttachSink(string, Sink) error  { return nil }
func (f *fakePlane) DetachSink(string) error         { return nil }
func (f *fakePlane) GetMetrics(ctx context.Context) observability.Snapshot {
	return f.metrics.Snapshot(ctx)
}

func TestPlane_FakeImplementationSatisfiesInterface(t *testing.T) {
	var p Plane = &fakePlane{metrics: observability.NewMetrics()}

	require.NoError(t, p.StartChannel(context.Background(), "chan-1", nil))
	assert.NoError(t, p.SubmitBlock(model.Block{}))
	assert.NoError(t, p.AttachSink("client-1", nil))
	assert.NoError(t, p.DetachSink("client-1"))
	snap := p.GetMetrics(context.Background())
	assert.Zero(t, snap.FramesEmittedTotal)
	assert.NoError(t, p.StopChannel())
}
