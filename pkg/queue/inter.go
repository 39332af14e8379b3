package queue

import (
	"context"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/ipc"
	"github.com/cuemby/flowrunner/pkg/perr"
)

// HomeBound is the INTER-flavor Queue used by a TASK-isolated endpoint
// living in the same process as the pipeline's ipc.QueueHome: rather
// than dialing itself over gRPC, it reads/writes the home's buffer
// channel directly. A PROCESS-isolated endpoint on the same port
// reaches the very same channel through ipc.QueueHome's Attach stream
// (see Remote below) — both sides observe the one FIFO.
type HomeBound struct {
	name string
	ch   chan *batch.Batch
}

// NewHomeBound registers (or reuses) name's buffer on home and wraps
// it for direct, same-process use.
func NewHomeBound(home *ipc.QueueHome, name string, capacity int) *HomeBound {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &HomeBound{name: name, ch: home.Register(name, capacity)}
}

func (q *HomeBound) Name() string   { return q.name }
func (q *HomeBound) Flavor() Flavor { return INTER }

func (q *HomeBound) Put(ctx context.Context, b *batch.Batch) error {
	select {
	case q.ch <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *HomeBound) Get(ctx context.Context) (*batch.Batch, error) {
	select {
	case b, ok := <-q.ch:
		if !ok {
			return nil, perr.ErrQueueClosed
		}
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *HomeBound) Empty() bool { return len(q.ch) == 0 }
func (q *HomeBound) Len() int    { return len(q.ch) }
func (q *HomeBound) Close()      { close(q.ch) }

// Remote is the INTER-flavor Queue used by a PROCESS-isolated endpoint:
// it forwards Put/Get to the home process's QueueHome over a single
// gRPC stream declared with a fixed role (this end is either always a
// producer or always a consumer for a given port, per spec.md §3's
// "one logical producer port, one or more consumer endpoints").
type Remote struct {
	name string
	role string
	rq   *ipc.RemoteQueue
}

// NewRemote wraps an already-dialed RemoteQueue (see ipc.DialQueue) for
// the given role (ipc.RoleProducer or ipc.RoleConsumer).
func NewRemote(name, role string, rq *ipc.RemoteQueue) *Remote {
	return &Remote{name: name, role: role, rq: rq}
}

func (q *Remote) Name() string   { return q.name }
func (q *Remote) Flavor() Flavor { return INTER }

func (q *Remote) Put(_ context.Context, b *batch.Batch) error {
	if q.role != ipc.RoleProducer {
		return perr.ErrQueueClosed
	}
	return q.rq.Put(b)
}

func (q *Remote) Get(_ context.Context) (*batch.Batch, error) {
	if q.role != ipc.RoleConsumer {
		return nil, perr.ErrQueueClosed
	}
	b, err := q.rq.Get()
	if err != nil {
		return nil, perr.ErrQueueClosed
	}
	return b, nil
}

// Empty and Len are not observable from a Remote's end without an
// extra round trip, so Empty always reports false and Len always 0;
// the home side's HomeBound.Len is the authoritative view.
func (q *Remote) Empty() bool { return false }
func (q *Remote) Len() int    { return 0 }

func (q *Remote) Close() { _ = q.rq.Close() }
