package queue

import (
	"context"
	"sync"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/perr"
)

// Intra is a channel-backed Queue for endpoints sharing this address
// space — the common case. INTER queues do not use it: their TASK
// endpoints use HomeBound over ipc.QueueHome's own channels.
type Intra struct {
	name string
	ch   chan *batch.Batch

	closeOnce sync.Once
	closed    chan struct{}
}

// NewIntra allocates a channel-backed queue of the given capacity.
func NewIntra(name string, capacity int) *Intra {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Intra{
		name:   name,
		ch:     make(chan *batch.Batch, capacity),
		closed: make(chan struct{}),
	}
}

func (q *Intra) Name() string   { return q.name }
func (q *Intra) Flavor() Flavor { return INTRA }

func (q *Intra) Put(ctx context.Context, b *batch.Batch) error {
	select {
	case q.ch <- b:
		return nil
	case <-q.closed:
		return perr.ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Intra) Get(ctx context.Context) (*batch.Batch, error) {
	select {
	case b, ok := <-q.ch:
		if !ok {
			return nil, perr.ErrQueueClosed
		}
		return b, nil
	case <-q.closed:
		select {
		case b, ok := <-q.ch:
			if ok {
				return b, nil
			}
		default:
		}
		return nil, perr.ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Intra) Empty() bool {
	return len(q.ch) == 0
}

func (q *Intra) Len() int {
	return len(q.ch)
}

// Close unblocks pending Get/Put calls. It does not close the
// underlying channel (so any already-queued Batches remain readable
// via a direct drain by the caller); Get observes closure via the
// closed signal once the channel is empty.
func (q *Intra) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}
