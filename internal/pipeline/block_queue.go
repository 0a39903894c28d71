package pipeline

import (
	"errors"
	"sync"

	"github.com/retrovue/air/internal/model"
)

// ErrBlockNotContiguous is returned by SubmitBlock when a block's
// StartUTCMs does not follow the last queued block's EndUTCMs (spec §6:
// "accepted iff block is well-formed and contiguous with the last queued
// block"). A gap is permitted only for the first block the queue ever
// receives; the tail is kept after blocks are dequeued.
var ErrBlockNotContiguous = errors.New("pipeline: block not contiguous with queue tail")

// ErrBlockMalformed is returned for a block with no segments.
var ErrBlockMalformed = errors.New("pipeline: block has no segments")

// BlockQueue is the mutex-guarded, drained FIFO of queued blocks (spec §5
// "Shared-resource discipline"). The control-plane SubmitBlock operation is
// its only writer; the pipeline manager's fill/prep orchestration is its
// only reader.
type BlockQueue struct {
	mu     sync.Mutex
	blocks []model.Block
	tail   *model.Block
}

// NewBlockQueue creates an empty queue.
func NewBlockQueue() *BlockQueue {
	return &BlockQueue{}
}

// Submit appends b to the queue iff it is well-formed and contiguous with
// the last block ever submitted. A queue that has never received a block
// accepts any well-formed block (session start is explicitly permitted to
// have a gap, spec §6); a queue drained by Next still requires contiguity.
func (q *BlockQueue) Submit(b model.Block) error {
	if len(b.Segments) == 0 {
		return ErrBlockMalformed
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.tail != nil && b.StartUTCMs != q.tail.EndUTCMs {
		return ErrBlockNotContiguous
	}

	q.blocks = append(q.blocks, b)
	tail := b
	q.tail = &tail
	return nil
}

// Next pops and returns the oldest queued block, if any.
func (q *BlockQueue) Next() (model.Block, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.blocks) == 0 {
		return model.Block{}, false
	}
	b := q.blocks[0]
	q.blocks = q.blocks[1:]
	return b, true
}

// Len returns the number of queued (not yet dequeued) blocks.
func (q *BlockQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.blocks)
}
