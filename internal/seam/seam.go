// Package seam implements the Seam Preparer (spec §4.5): a single-worker,
// single-slot asynchronous preparer that primes the next content segment's
// decoder and lookahead buffers ahead of the tick loop reaching its seam,
// so a normal-commit swap never has to open a decoder on the tick thread.
package seam

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/retrovue/air/internal/model"
)

// ErrMiss is returned by TakeIfReady when the preparer has not finished
// (or has not even started) preparing the requested target by the time the
// tick loop reaches its seam. The tick loop treats this as a seam MISS and
// enters the vacuum-exception path.
var ErrMiss = errors.New("seam: prepared result not ready")

// Prepared is the result the worker deposits into the slot: an opened
// decoder already primed to the pipeline's lookahead-buffer target depth.
type Prepared struct {
	SegmentIndex int
	VideoBuf     *Buffers
	AudioBuf     *Buffers

	// Payload is an opaque handle the caller's PrepareFunc may stash its own
	// concrete producer/decoder state in, recovered via a type assertion at
	// TakeIfReady time. The seam package never reads or writes it.
	Payload any
}

// Buffers is a narrow view over whatever buffer type the caller primed;
// the seam package does not depend on internal/buffer directly so that
// tests can substitute a fake without constructing real lookahead buffers.
type Buffers struct {
	Depth int
}

// PrepareFunc performs the actual decoder-open-and-prime work for one
// target segment. It must respect ctx cancellation (the tick loop discards
// an in-flight job on session stop, per spec §5 "prep worker to complete
// or be discarded").
type PrepareFunc func(ctx context.Context, target model.Segment) (*Prepared, error)

// Preparer holds at most one in-flight job and at most one prepared result,
// consumed exactly once at the next content seam (spec §4.5 invariants).
type Preparer struct {
	mu      sync.Mutex
	segs    []model.Segment
	prepare PrepareFunc
	logger  *slog.Logger

	inFlightTarget int // -1 when idle
	cancelInFlight context.CancelFunc

	result       *Prepared
	resultTarget int // -1 when slot empty
}

// New creates a Preparer over the block's segment list.
func New(segs []model.Segment, prepare PrepareFunc, logger *slog.Logger) *Preparer {
	return &Preparer{
		segs:           segs,
		prepare:        prepare,
		logger:         logger,
		inFlightTarget: -1,
		resultTarget:   -1,
	}
}

// nextNonPadTarget scans forward from currentSegmentIndex+1, skipping pad
// segments, to find the next content segment (spec §4.5 step 1). It returns
// -1 if none remains in this block.
func (p *Preparer) nextNonPadTarget(currentSegmentIndex int) int {
	for i := currentSegmentIndex + 1; i < len(p.segs); i++ {
		if !p.segs[i].IsPad() {
			return i
		}
	}
	return -1
}

// ArmSegmentPrep scans forward for the next non-pad segment after
// currentSegmentIndex and, if no prepared result or in-flight job already
// targets it, submits a new preparation job in a background goroutine.
func (p *Preparer) ArmSegmentPrep(ctx context.Context, currentSegmentIndex int) {
	p.mu.Lock()

	target := p.nextNonPadTarget(currentSegmentIndex)
	if target < 0 {
		p.mu.Unlock()
		return
	}
	if p.resultTarget == target || p.inFlightTarget == target {
		p.mu.Unlock()
		return
	}

	// A stale in-flight job (targeting an already-passed segment) is
	// discarded; only one job is ever in flight (spec §4.5 invariant).
	if p.inFlightTarget >= 0 && p.cancelInFlight != nil {
		p.cancelInFlight()
	}

	jobCtx, cancel := context.WithCancel(ctx)
	p.inFlightTarget = target
	p.cancelInFlight = cancel
	seg := p.segs[target]
	p.mu.Unlock()

	go p.runJob(jobCtx, target, seg)
}

func (p *Preparer) runJob(ctx context.Context, target int, seg model.Segment) {
	result, err := p.prepare(ctx, seg)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inFlightTarget != target {
		// superseded by a newer ArmSegmentPrep call; drop this result
		return
	}
	p.inFlightTarget = -1
	p.cancelInFlight = nil

	if err != nil {
		if p.logger != nil {
			p.logger.Warn("seam prep job failed", "target_segment", target, "err", err)
		}
		return
	}
	p.result = result
	p.resultTarget = target
}

// TakeIfReady consumes the prepared result for target if present, clearing
// the slot. It returns ErrMiss if the worker has not completed by the seam
// tick, signalling the tick loop to enter the vacuum-exception path.
func (p *Preparer) TakeIfReady(target int) (*Prepared, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resultTarget != target || p.result == nil {
		return nil, ErrMiss
	}
	result := p.result
	p.result = nil
	p.resultTarget = -1
	return result, nil
}

// IsPadToPadOrContentToPad reports whether the transition from the segment
// at fromIndex to the segment at toIndex bypasses the preparer entirely via
// an inline pad swap (spec §4.5: "Pad-to-pad or content-to-pad transitions
// bypass the preparer"). Content-to-content and pad-to-content transitions
// go through the normal ArmSegmentPrep/TakeIfReady path.
func (p *Preparer) IsPadToPadOrContentToPad(fromIndex, toIndex int) bool {
	if fromIndex < 0 || fromIndex >= len(p.segs) || toIndex < 0 || toIndex >= len(p.segs) {
		return false
	}
	from := p.segs[fromIndex]
	to := p.segs[toIndex]
	if from.IsPad() && to.IsPad() {
		return true
	}
	if !from.IsPad() && to.IsPad() {
		return true
	}
	return false
}
