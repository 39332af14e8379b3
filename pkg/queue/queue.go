// Package queue implements the bounded FIFO of Batches that connects
// nodes: an INTRA flavor backed by a buffered Go channel for
// same-process endpoints, and an INTER flavor backed by pkg/ipc's
// gRPC transport for endpoints split across a PROCESS boundary.
package queue

import (
	"context"

	"github.com/cuemby/flowrunner/pkg/batch"
)

// Flavor selects a Queue's transport.
type Flavor int

const (
	// INTRA connects endpoints sharing this address space.
	INTRA Flavor = iota
	// INTER connects at least one PROCESS-isolated endpoint.
	INTER
)

func (f Flavor) String() string {
	if f == INTER {
		return "INTER"
	}
	return "INTRA"
}

// DefaultCapacity is the queue depth the builder uses when a pipeline
// spec does not override it.
const DefaultCapacity = 16

// Queue is a bounded FIFO of Batches with a known port name. Put and
// Get block; there is no nonblocking alternative, matching spec.md
// §4.B — backpressure is expressed purely by Put blocking on a full
// queue.
type Queue interface {
	Name() string
	Flavor() Flavor
	// Put enqueues b, blocking while the queue is full. Returns
	// perr.ErrQueueClosed if the queue was closed concurrently.
	Put(ctx context.Context, b *batch.Batch) error
	// Get dequeues the next Batch, blocking while the queue is empty.
	// Returns perr.ErrQueueClosed once the queue is drained and closed.
	Get(ctx context.Context) (*batch.Batch, error)
	// Empty reports whether the queue currently holds no Batch. It is
	// advisory only — a concurrent Put/Get may race it.
	Empty() bool
	// Len reports the current pending count, for the sampling
	// invariant in spec.md §8 ("pending count in [0, C]").
	Len() int
	// Close unblocks any pending or future Get/Put with
	// perr.ErrQueueClosed. Idempotent.
	Close()
}
