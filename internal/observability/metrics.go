package observability

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// Metrics is the instance-scoped counter/gauge registry backing the
// GetMetrics() control-plane operation (spec §6). Every field is an atomic
// so the tick, fill, and prep goroutines can update it without taking a lock.
type Metrics struct {
	FramesEmittedTotal     atomic.Uint64
	PadFramesEmittedTotal  atomic.Uint64
	VacuumExceptionsTotal  atomic.Uint64
	DecodeFaultsTotal      atomic.Uint64

	VideoBufferDepth atomic.Int64
	AudioBufferDepth atomic.Int64

	SeamMissCount       atomic.Uint64
	SeamInlinePadCount  atomic.Uint64
	SeamNormalCount     atomic.Uint64
	SeamOverrideCount   atomic.Uint64

	BytesWrittenTotal atomic.Uint64
	BytesDroppedTotal atomic.Uint64

	ClockDriftMicros  atomic.Int64
	DeadlineLateCount atomic.Uint64

	startedAt time.Time
	pid       int32
}

// NewMetrics creates a fresh metrics registry, timestamped at session start.
func NewMetrics() *Metrics {
	return &Metrics{startedAt: time.Now()}
}

// Snapshot is the point-in-time value returned by GetMetrics().
type Snapshot struct {
	FramesEmittedTotal    uint64        `json:"frames_emitted_total"`
	PadFramesEmittedTotal uint64        `json:"pad_frames_emitted_total"`
	VacuumExceptionsTotal uint64        `json:"vacuum_exceptions_total"`
	DecodeFaultsTotal     uint64        `json:"decode_faults_total"`
	VideoBufferDepth      int64         `json:"video_buffer_depth"`
	AudioBufferDepth      int64         `json:"audio_buffer_depth"`
	SeamMissCount         uint64        `json:"seam_miss_count"`
	SeamInlinePadCount    uint64        `json:"seam_inline_pad_count"`
	SeamNormalCount       uint64        `json:"seam_normal_count"`
	SeamOverrideCount     uint64        `json:"seam_override_count"`
	BytesWrittenTotal     uint64        `json:"bytes_written_total"`
	BytesDroppedTotal     uint64        `json:"bytes_dropped_total"`
	ClockDriftMicros      int64         `json:"clock_drift_us"`
	DeadlineLateCount     uint64        `json:"deadline_late_count"`
	Uptime                time.Duration `json:"uptime"`
	ProcessCPUPercent     float64       `json:"process_cpu_percent,omitempty"`
	ProcessRSSBytes       uint64        `json:"process_rss_bytes,omitempty"`
	SystemMemUsedPercent  float64       `json:"system_mem_used_percent,omitempty"`
}

// Snapshot returns a consistent point-in-time copy of the registry.
// Process/system gauges are best-effort: a gopsutil read failure simply
// leaves the corresponding field at zero rather than failing the snapshot.
func (m *Metrics) Snapshot(ctx context.Context) Snapshot {
	s := Snapshot{
		FramesEmittedTotal:    m.FramesEmittedTotal.Load(),
		PadFramesEmittedTotal: m.PadFramesEmittedTotal.Load(),
		VacuumExceptionsTotal: m.VacuumExceptionsTotal.Load(),
		DecodeFaultsTotal:     m.DecodeFaultsTotal.Load(),
		VideoBufferDepth:      m.VideoBufferDepth.Load(),
		AudioBufferDepth:      m.AudioBufferDepth.Load(),
		SeamMissCount:         m.SeamMissCount.Load(),
		SeamInlinePadCount:    m.SeamInlinePadCount.Load(),
		SeamNormalCount:       m.SeamNormalCount.Load(),
		SeamOverrideCount:     m.SeamOverrideCount.Load(),
		BytesWrittenTotal:     m.BytesWrittenTotal.Load(),
		BytesDroppedTotal:     m.BytesDroppedTotal.Load(),
		ClockDriftMicros:      m.ClockDriftMicros.Load(),
		DeadlineLateCount:     m.DeadlineLateCount.Load(),
		Uptime:                time.Since(m.startedAt),
	}

	if m.pid == 0 {
		if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
			m.pid = proc.Pid
		}
	}
	if m.pid != 0 {
		if proc, err := process.NewProcessWithContext(ctx, m.pid); err == nil {
			if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
				s.ProcessCPUPercent = pct
			}
			if mi, err := proc.MemoryInfoWithContext(ctx); err == nil && mi != nil {
				s.ProcessRSSBytes = mi.RSS
			}
		}
	}
	if _, err := cpu.CountsWithContext(ctx, false); err == nil {
		if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
			s.SystemMemUsedPercent = vm.UsedPercent
		}
	}

	return s
}
