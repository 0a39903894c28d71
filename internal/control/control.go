// Package control defines the control-plane surface that external callers
// (the HTTP admin API, a future gRPC surface, tests) use to drive a pipeline
// session, per spec §6 "External Interfaces".
package control

import (
	"context"

	"github.com/retrovue/air/internal/model"
	"github.com/retrovue/air/internal/observability"
	"github.com/retrovue/air/internal/sink"
)

// Plane is the control-plane contract a pipeline implementation satisfies.
// It is deliberately narrow: everything session-shaping (which channel is
// active, what blocks feed it, where its output goes) lives behind these
// six operations, so callers never reach into pipeline internals.
type Plane interface {
	// StartChannel activates channelID as the session's current channel,
	// seeding its block queue with initialBlocks. Returns ErrAlreadyActive
	// if a different channel is already running.
	StartChannel(ctx context.Context, channelID string, initialBlocks []model.Block) error
	// StopChannel deactivates the current channel. Idempotent.
	StopChannel() error
	// SubmitBlock appends a block to the active channel's schedule.
	SubmitBlock(b model.Block) error
	// AttachSink adds a consumer of the muxed MPEG-TS output stream under id,
	// replacing any existing sink registered under the same id.
	AttachSink(id string, s Sink) error
	// DetachSink removes the sink previously registered under id, if any.
	DetachSink(id string) error
	// GetMetrics returns a point-in-time snapshot of session counters.
	GetMetrics(ctx context.Context) observability.Snapshot
}

// Sink is the muxed-output consumer contract sinks attach/detach with.
type Sink = sink.Sink
