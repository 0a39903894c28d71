package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DepthSource reports current buffer depths for the diagnostic audit job.
// Implemented by Pipeline; narrowed to an interface so the audit logic can
// be tested without a full running session.
type DepthSource interface {
	VideoDepth() int
	AudioDepth() int
	TargetDepth() int
}

// diagnosticsJob runs the periodic buffer-equilibrium audit (spec §8
// "Buffer equilibrium" testable property): it checks video and audio
// depths against [1, 2×target] and logs the result. It does not audit
// clock drift and does not touch any metrics counter. Scheduled via
// robfig/cron the same way the teacher schedules its recurring jobs,
// rather than a bare time.Ticker.
type diagnosticsJob struct {
	source DepthSource
	logger *slog.Logger
}

func (j *diagnosticsJob) Run() {
	videoDepth := j.source.VideoDepth()
	audioDepth := j.source.AudioDepth()
	target := j.source.TargetDepth()

	lowerBound := 1
	upperBound := target * 2
	inEquilibrium := videoDepth >= lowerBound && videoDepth <= upperBound &&
		audioDepth >= lowerBound && audioDepth <= upperBound

	if inEquilibrium {
		j.logger.Debug("buffer equilibrium audit",
			"video_depth", videoDepth, "audio_depth", audioDepth, "target_depth", target)
		return
	}

	j.logger.Warn("buffer equilibrium audit: depth out of bounds",
		"video_depth", videoDepth, "audio_depth", audioDepth,
		"target_depth", target, "lower_bound", lowerBound, "upper_bound", upperBound)
}

// startDiagnostics schedules the diagnostics job on schedule (a
// robfig/cron expression, e.g. "@every 30s") and returns the running cron
// instance, which the caller must Stop() at session teardown.
func startDiagnostics(schedule string, source DepthSource, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New()
	job := &diagnosticsJob{source: source, logger: logger}
	if _, err := c.AddJob(schedule, job); err != nil {
		return nil, fmt.Errorf("pipeline: invalid diagnostic schedule %q: %w", schedule, err)
	}
	c.Start()
	return c, nil
}
