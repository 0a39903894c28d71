package httpapi

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// healthHandler serves GET /health: a lightweight liveness probe, not a
// deep dependency check (there is no database or upstream to probe here).
type healthHandler struct {
	plane     Plane
	version   string
	startedAt time.Time
}

// HealthInput is the (empty) input for GET /health.
type HealthInput struct{}

// HealthOutput wraps HealthResponse for huma's operation registration.
type HealthOutput struct {
	Body HealthResponse
}

// HealthResponse reports liveness, build version and admin-server uptime.
type HealthResponse struct {
	Status  string        `json:"status" doc:"Always \"ok\" if the process can respond at all"`
	Version string        `json:"version" doc:"Build version"`
	Uptime  time.Duration `json:"uptime" doc:"Time since the admin server started"`
}

func (h *healthHandler) register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Liveness probe for the playout engine's admin surface",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

func (h *healthHandler) GetHealth(_ context.Context, _ *HealthInput) (*HealthOutput, error) {
	return &HealthOutput{Body: HealthResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.startedAt),
	}}, nil
}

// metricsHandler serves GET /metrics: a JSON snapshot of the session
// counters from observability.Metrics (spec §6 GetMetrics), not a
// Prometheus text-format exposition — the teacher's health handler returns
// structured JSON rather than a scrape format, and this surface follows it.
type metricsHandler struct {
	plane Plane
}

// MetricsInput is the (empty) input for GET /metrics.
type MetricsInput struct{}

// MetricsOutput wraps the metrics snapshot for huma's operation registration.
type MetricsOutput struct {
	Body any
}

func (h *metricsHandler) register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getMetrics",
		Method:      "GET",
		Path:        "/metrics",
		Summary:     "Session metrics",
		Description: "Returns a point-in-time snapshot of playout counters and gauges",
		Tags:        []string{"System"},
	}, h.GetMetrics)
}

func (h *metricsHandler) GetMetrics(ctx context.Context, _ *MetricsInput) (*MetricsOutput, error) {
	return &MetricsOutput{Body: h.plane.GetMetrics(ctx)}, nil
}
