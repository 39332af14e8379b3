package node

import "sync/atomic"

// Status is a node's lifecycle stage. Transitions are monotonic along
// one of two accepting paths: Pending->Alive->Completed (graceful) or
// Pending->Alive->Terminated (faulted). A node never returns to Alive
// once it has left it.
type Status int32

const (
	Pending Status = iota
	Alive
	Completed
	Terminated
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Alive:
		return "ALIVE"
	case Completed:
		return "COMPLETED"
	case Terminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether s is one of the two accepting end states.
func (s Status) IsTerminal() bool {
	return s == Completed || s == Terminated
}

// statusBox is an atomically-updated Status, shared between a Node's
// own loop and whatever reads it concurrently (the supervisor, the
// metrics endpoint).
type statusBox struct {
	v int32
}

func newStatusBox(initial Status) *statusBox {
	return &statusBox{v: int32(initial)}
}

func (b *statusBox) load() Status {
	return Status(atomic.LoadInt32(&b.v))
}

func (b *statusBox) store(s Status) {
	atomic.StoreInt32(&b.v, int32(s))
}

// casFrom transitions from `from` to `to` only if the current value is
// still `from`, guarding against the double-start / double-terminate
// races spec.md §4.E.2 and §4.E.7 call out.
func (b *statusBox) casFrom(from, to Status) bool {
	return atomic.CompareAndSwapInt32(&b.v, int32(from), int32(to))
}
