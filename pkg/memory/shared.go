package memory

import (
	"context"

	"github.com/cuemby/flowrunner/pkg/ipc"
)

// Shared is the process-wide key/value map every worker can reach,
// regardless of isolation. It is lazily initialized by whichever
// caller constructs it first (see NewSharedInProcess /
// NewSharedRemote) and lives for the lifetime of one pipeline run.
type Shared interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	Contains(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context) ([]string, error)
	// CompareAndSwap atomically replaces key's value with next iff its
	// current value equals old (nil old means "absent"), per the
	// design note against full-map-rewrite races.
	CompareAndSwap(ctx context.Context, key string, old, next any) (bool, error)
}

// inProcessShared talks directly to the KVHome living in the same
// address space — the common case for the root process's own TASK
// nodes, which would otherwise pay a pointless gRPC loopback.
type inProcessShared struct {
	home *ipc.KVHome
}

// NewSharedInProcess wraps a KVHome for same-process callers.
func NewSharedInProcess(home *ipc.KVHome) Shared {
	return &inProcessShared{home: home}
}

func (s *inProcessShared) Get(ctx context.Context, key string) (any, bool, error) {
	r, err := s.home.Get(ctx, &ipc.GetRequest{Key: key})
	if err != nil {
		return nil, false, err
	}
	return r.Value, r.Found, nil
}

func (s *inProcessShared) Set(ctx context.Context, key string, value any) error {
	_, err := s.home.Set(ctx, &ipc.SetRequest{Key: key, Value: value})
	return err
}

func (s *inProcessShared) Delete(ctx context.Context, key string) error {
	_, err := s.home.Delete(ctx, &ipc.DeleteRequest{Key: key})
	return err
}

func (s *inProcessShared) Contains(ctx context.Context, key string) (bool, error) {
	r, err := s.home.Contains(ctx, &ipc.ContainsRequest{Key: key})
	if err != nil {
		return false, err
	}
	return r.Found, nil
}

func (s *inProcessShared) Keys(ctx context.Context) ([]string, error) {
	r, err := s.home.Keys(ctx, &ipc.KeysRequest{})
	if err != nil {
		return nil, err
	}
	return r.Keys, nil
}

func (s *inProcessShared) CompareAndSwap(ctx context.Context, key string, old, next any) (bool, error) {
	r, err := s.home.CompareAndSwap(ctx, &ipc.CASRequest{Key: key, Old: old, New: next})
	if err != nil {
		return false, err
	}
	return r.Swapped, nil
}

// remoteShared talks to a KVHome over gRPC — used by PROCESS-isolated
// workers, which live in a different address space than the pipeline
// root that owns the map.
type remoteShared struct {
	client *ipc.KVClient
}

// NewSharedRemote wraps a dialed connection to the root process's ipc
// server for PROCESS-isolated callers.
func NewSharedRemote(client *ipc.KVClient) Shared {
	return &remoteShared{client: client}
}

func (s *remoteShared) Get(ctx context.Context, key string) (any, bool, error) {
	return s.client.Get(ctx, key)
}

func (s *remoteShared) Set(ctx context.Context, key string, value any) error {
	return s.client.Set(ctx, key, value)
}

func (s *remoteShared) Delete(ctx context.Context, key string) error {
	return s.client.Delete(ctx, key)
}

func (s *remoteShared) Contains(ctx context.Context, key string) (bool, error) {
	return s.client.Contains(ctx, key)
}

func (s *remoteShared) Keys(ctx context.Context) ([]string, error) {
	return s.client.Keys(ctx)
}

func (s *remoteShared) CompareAndSwap(ctx context.Context, key string, old, next any) (bool, error) {
	return s.client.CompareAndSwap(ctx, key, old, next)
}
