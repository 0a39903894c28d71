package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrovue/air/internal/control"
	"github.com/retrovue/air/internal/model"
	"github.com/retrovue/air/internal/observability"
)

// fakePlane is a minimal control.Plane used only to drive the HTTP handlers
// under test, independent of a real pipeline.
type fakePlane struct {
	metrics *observability.Metrics
}

func (f *fakePlane) StartChannel(context.Context, string, []model.Block) error { return nil }
func (f *fakePlane) StopChannel() error                                       { return nil }
func (f *fakePlane) SubmitBlock(model.Block) error                            { return nil }
func (f *fakePlane) AttachSink(string, control.Sink) error { return nil }
func (f *fakePlane) DetachSink(string) error               { return nil }
func (f *fakePlane) GetMetrics(ctx context.Context) observability.Snapshot {
	return f.metrics.Snapshot(ctx)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer() *Server {
	plane := &fakePlane{metrics: observability.NewMetrics()}
	return New(Config{Host: "127.0.0.1", Port: 0, ShutdownTimeout: 0}, plane, "test-version", discardLogger())
}

func TestHealth_ReturnsOKWithVersion(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "test-version", body.Version)
}

func TestMetrics_ReturnsSnapshotJSON(t *testing.T) {
	s := testServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "frames_emitted_total")
}
