// Package tick implements the Tick Loop (spec §4.4): the wall-clock-paced
// heart of the pipeline. One iteration per frame: wait for the deadline,
// select a video frame and a corresponding audio quantum from whichever
// producer currently holds frame authority, stamp origin and PTS, and hand
// the result to the mux. It never blocks the mux and never re-reads the
// clock mid-iteration.
package tick

import (
	"context"
	"log/slog"

	"github.com/retrovue/air/internal/clock"
	"github.com/retrovue/air/internal/model"
	"github.com/retrovue/air/internal/observability"
)

// Decision records which row of the seam decision table (spec §4.4)
// produced a given tick's frame. It exists for logging and the seam_*
// telemetry counters, not for control flow outside the tick loop itself.
type Decision int

const (
	// DecisionDefer is Case A: no swap; the active producer keeps authority.
	DecisionDefer Decision = iota
	// DecisionNormal is Case B: a content-to-content swap committed because
	// the incoming producer was eligible at a fence boundary.
	DecisionNormal
	// DecisionOverride is Case C: a pad<->content swap committed via the
	// override path (pad eligibility only requires audio depth).
	DecisionOverride
	// DecisionVacuum is the frame-authority-vacuum exception: the outgoing
	// producer was depleted before the incoming one became eligible, so a
	// forced swap (or synthesized pad frame) executed to avoid starvation.
	DecisionVacuum
)

func (d Decision) String() string {
	switch d {
	case DecisionDefer:
		return "defer"
	case DecisionNormal:
		return "normal"
	case DecisionOverride:
		return "override"
	case DecisionVacuum:
		return "vacuum"
	default:
		return "unknown"
	}
}

// Producer is the tick_producer abstraction (spec §9 "Runtime
// polymorphism"): two frame operations plus the predicates and segment
// accessor the seam decision reads. Content segments and the pad producer
// both satisfy it.
type Producer interface {
	NextVideoFrame(sessionFrameIndex int64) (model.Frame, bool)
	NextAudioQuantum(sessionFrameIndex int64) (model.Frame, bool)
	// IsDepleted reports that this producer can no longer supply frames
	// (EOF reached, or its lookahead buffers ran dry with fill stopped).
	IsDepleted() bool
	// Eligible reports whether this producer may assume frame authority
	// right now. Content producers gate on buffer depth; the pad producer
	// is always eligible once its audio-depth threshold (config-dependent,
	// spec §9 open question) is met, since pad video is on-demand
	// synthesis requiring no buffer depth at all.
	Eligible() bool
	// IsPad distinguishes a pad<->content swap (Case C, override) from a
	// content<->content swap (Case B, normal commit).
	IsPad() bool
	SegmentIndex() int
}

// Loop runs the tick loop for one session. It owns no I/O beyond the
// output clock wait and the (non-blocking, by the mux's own contract)
// handoff to whatever consumes its emitted frames.
type Loop struct {
	clk     *clock.OutputClock
	active  Producer
	pad     Producer // always-available fallback; never nil
	metrics *observability.Metrics
	logger  *slog.Logger

	incoming       Producer
	fenceSegment   int // incoming's segment index, valid only while incoming != nil
}

// New creates a Loop with the given starting active producer. pad must be
// a producer that never reports IsDepleted() == true and is always
// Eligible() (spec §4.6: the pad producer is a session-lifetime component).
func New(clk *clock.OutputClock, active, pad Producer, metrics *observability.Metrics, logger *slog.Logger) *Loop {
	return &Loop{clk: clk, active: active, pad: pad, metrics: metrics, logger: logger}
}

// ArmIncoming records a producer as a candidate to take over frame
// authority at the next fence boundary (spec §4.5's output) or sooner, via
// the vacuum-exception path, if the active producer depletes first.
func (l *Loop) ArmIncoming(p Producer) {
	l.incoming = p
	l.fenceSegment = p.SegmentIndex()
}

// Active returns the producer currently holding frame authority.
func (l *Loop) Active() Producer { return l.active }

// Tick runs one iteration: wait for deadline(i), select frames, stamp
// origin/PTS, and return the result along with which decision-table case
// produced it. atFenceBoundary is true for exactly the tick at which the
// current segment's declared duration elapses (the seam tick).
func (l *Loop) Tick(ctx context.Context, i int64, ctMillis int64, atFenceBoundary bool) (model.Frame, Decision, error) {
	lateness, err := l.clk.WaitForFrame(ctx, i)
	if err != nil {
		return model.Frame{}, DecisionDefer, err
	}
	if lateness > 0 && l.metrics != nil {
		l.metrics.DeadlineLateCount.Add(1)
	}

	producer, decision := l.selectProducer(atFenceBoundary)

	videoFrame, ok := producer.NextVideoFrame(i)
	if !ok {
		// The elected producer had nothing this instant (e.g. a content
		// producer whose selected frame turned out to be from the
		// outgoing side per Case A) — fall back to active, or pad if even
		// active is dry; only the pad fallback records a vacuum exception.
		videoFrame, ok = l.active.NextVideoFrame(i)
		producer = l.active
		decision = DecisionDefer
		if !ok {
			videoFrame, _ = l.pad.NextVideoFrame(i)
			producer = l.pad
			decision = DecisionVacuum
			if l.metrics != nil {
				l.metrics.VacuumExceptionsTotal.Add(1)
			}
		}
	}

	audioFrame, audioOK := producer.NextAudioQuantum(i)
	if !audioOK {
		audioFrame, _ = l.pad.NextAudioQuantum(i)
	}

	// A vacuum election of incoming that actually supplied the frame is the
	// forced swap: incoming takes authority just like a normal/override commit.
	if decision == DecisionNormal || decision == DecisionOverride ||
		(decision == DecisionVacuum && l.incoming != nil && producer == l.incoming) {
		l.commitSwap()
	}

	videoFrame.CTMillis = ctMillis
	videoFrame.SessionFrameIndex = i
	videoFrame.OriginSegment = producer.SegmentIndex()
	videoFrame.AudioData = audioFrame.AudioData
	videoFrame.AudioSampleCount = audioFrame.AudioSampleCount

	l.recordDecision(decision)
	return videoFrame, decision, nil
}

// selectProducer implements the seam decision table (spec §4.4), choosing
// which producer is elected to supply this tick's frame before the actual
// NextVideoFrame call resolves whether that election holds.
func (l *Loop) selectProducer(atFenceBoundary bool) (Producer, Decision) {
	if l.incoming == nil {
		return l.active, DecisionDefer
	}

	outgoingDepleted := l.active.IsDepleted()
	incomingEligible := l.incoming.Eligible() && !l.incoming.IsDepleted()

	switch {
	case outgoingDepleted && !incomingEligible:
		// Frame-authority vacuum (spec §4.4 exception): outgoing is dry and
		// incoming isn't ready yet. Force the swap anyway to avoid
		// starvation; origin is re-stamped to incoming post-encode, the
		// sole permitted post-encode origin mutation.
		return l.incoming, DecisionVacuum

	case atFenceBoundary && incomingEligible:
		if l.active.IsPad() != l.incoming.IsPad() {
			return l.incoming, DecisionOverride
		}
		return l.incoming, DecisionNormal

	default:
		return l.active, DecisionDefer
	}
}

func (l *Loop) commitSwap() {
	l.active = l.incoming
	l.incoming = nil
}

func (l *Loop) recordDecision(d Decision) {
	if l.metrics == nil {
		return
	}
	switch d {
	case DecisionNormal:
		l.metrics.SeamNormalCount.Add(1)
	case DecisionOverride:
		l.metrics.SeamOverrideCount.Add(1)
	case DecisionVacuum:
		l.metrics.SeamMissCount.Add(1)
	}
}
