// Package memory implements the two shared-state planes: LocalMemory
// (one instance per worker address space) and SharedMemory (a
// process-wide map reachable by every worker, including PROCESS-
// isolated ones, backed by pkg/ipc's KeyValue service).
package memory

import "sync"

// Local is a concurrent-safe, worker-local key/value map. Each worker
// (task or process) owns exactly one instance; there is no cross-
// worker visibility, unlike Shared.
type Local struct {
	m sync.Map
}

// NewLocal creates an empty local map.
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Get(key string) (any, bool) {
	return l.m.Load(key)
}

func (l *Local) Set(key string, value any) {
	l.m.Store(key, value)
}

func (l *Local) Delete(key string) {
	l.m.Delete(key)
}

func (l *Local) Contains(key string) bool {
	_, ok := l.m.Load(key)
	return ok
}

// Keys returns a snapshot of the current key set. No ordering is
// guaranteed.
func (l *Local) Keys() []string {
	var keys []string
	l.m.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	return keys
}
