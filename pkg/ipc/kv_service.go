package ipc

import (
	"context"
	"sync"

	"google.golang.org/grpc"
)

const kvServiceName = "flowrunner.ipc.KeyValue"

// KVHome backs the process-wide SharedMemory plane: a single
// mutex-guarded map, hosted by the pipeline's root process. PROCESS
// workers reach it through the same gRPC server as QueueHome;
// callers in the root process call its methods directly (see
// memory.NewSharedInProcess). Per spec.md §9, writers get a CompareAndSwap
// entry point so cross-process callers can avoid full-map rewrites.
type KVHome struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewKVHome creates an empty shared map.
func NewKVHome() *KVHome {
	return &KVHome{data: make(map[string]any)}
}

type (
	GetRequest struct{ Key string }
	GetReply   struct {
		Value any
		Found bool
	}
	SetRequest struct {
		Key   string
		Value any
	}
	SetReply    struct{}
	DeleteRequest struct{ Key string }
	DeleteReply   struct{}
	ContainsRequest struct{ Key string }
	ContainsReply   struct{ Found bool }
	KeysRequest struct{}
	KeysReply   struct{ Keys []string }
	CASRequest struct {
		Key      string
		Old, New any
	}
	CASReply struct{ Swapped bool }
)

func (h *KVHome) Get(_ context.Context, req *GetRequest) (*GetReply, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.data[req.Key]
	return &GetReply{Value: v, Found: ok}, nil
}

func (h *KVHome) Set(_ context.Context, req *SetRequest) (*SetReply, error) {
	h.mu.Lock()
	h.data[req.Key] = req.Value
	h.mu.Unlock()
	return &SetReply{}, nil
}

func (h *KVHome) Delete(_ context.Context, req *DeleteRequest) (*DeleteReply, error) {
	h.mu.Lock()
	delete(h.data, req.Key)
	h.mu.Unlock()
	return &DeleteReply{}, nil
}

func (h *KVHome) Contains(_ context.Context, req *ContainsRequest) (*ContainsReply, error) {
	h.mu.RLock()
	_, ok := h.data[req.Key]
	h.mu.RUnlock()
	return &ContainsReply{Found: ok}, nil
}

func (h *KVHome) Keys(_ context.Context, _ *KeysRequest) (*KeysReply, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	keys := make([]string, 0, len(h.data))
	for k := range h.data {
		keys = append(keys, k)
	}
	return &KeysReply{Keys: keys}, nil
}

// CompareAndSwap atomically replaces Key's value with New iff its
// current value equals Old (or the key is absent and Old is nil).
func (h *KVHome) CompareAndSwap(_ context.Context, req *CASRequest) (*CASReply, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur, ok := h.data[req.Key]
	if (!ok && req.Old == nil) || (ok && cur == req.Old) {
		h.data[req.Key] = req.New
		return &CASReply{Swapped: true}, nil
	}
	return &CASReply{Swapped: false}, nil
}

// ServiceDesc builds the hand-authored unary-method gRPC descriptor
// for the KeyValue service (see package doc for why this is not
// protobuf-generated).
func (h *KVHome) ServiceDesc() *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: kvServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			unaryMethod("Get", func(ctx context.Context, dec func(any) error) (any, error) {
				req := new(GetRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				return h.Get(ctx, req)
			}),
			unaryMethod("Set", func(ctx context.Context, dec func(any) error) (any, error) {
				req := new(SetRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				return h.Set(ctx, req)
			}),
			unaryMethod("Delete", func(ctx context.Context, dec func(any) error) (any, error) {
				req := new(DeleteRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				return h.Delete(ctx, req)
			}),
			unaryMethod("Contains", func(ctx context.Context, dec func(any) error) (any, error) {
				req := new(ContainsRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				return h.Contains(ctx, req)
			}),
			unaryMethod("Keys", func(ctx context.Context, dec func(any) error) (any, error) {
				req := new(KeysRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				return h.Keys(ctx, req)
			}),
			unaryMethod("CompareAndSwap", func(ctx context.Context, dec func(any) error) (any, error) {
				req := new(CASRequest)
				if err := dec(req); err != nil {
					return nil, err
				}
				return h.CompareAndSwap(ctx, req)
			}),
		},
		Metadata: "flowrunner/ipc/kv.proto",
	}
}

// unaryMethod adapts a (ctx, decode) => (reply, error) closure into the
// grpc.MethodDesc.Handler shape, threading through any unary
// interceptor the server was configured with.
func unaryMethod(name string, fn func(ctx context.Context, dec func(any) error) (any, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			if interceptor == nil {
				return fn(ctx, dec)
			}
			info := &grpc.UnaryServerInfo{FullMethod: "/" + kvServiceName + "/" + name}
			handler := func(ctx context.Context, _ any) (any, error) {
				return fn(ctx, dec)
			}
			return interceptor(ctx, nil, info, handler)
		},
	}
}

// KVClient is a thin wrapper over a gRPC connection that speaks the
// KeyValue service's unary methods using the gob codec.
type KVClient struct {
	cc *grpc.ClientConn
}

// NewKVClient wraps an existing connection to a QueueHome/KVHome
// server.
func NewKVClient(cc *grpc.ClientConn) *KVClient {
	return &KVClient{cc: cc}
}

func (c *KVClient) invoke(ctx context.Context, method string, req, reply any) error {
	return c.cc.Invoke(ctx, "/"+kvServiceName+"/"+method, req, reply, grpc.CallContentSubtype(CodecName))
}

func (c *KVClient) Get(ctx context.Context, key string) (any, bool, error) {
	reply := new(GetReply)
	if err := c.invoke(ctx, "Get", &GetRequest{Key: key}, reply); err != nil {
		return nil, false, err
	}
	return reply.Value, reply.Found, nil
}

func (c *KVClient) Set(ctx context.Context, key string, value any) error {
	return c.invoke(ctx, "Set", &SetRequest{Key: key, Value: value}, new(SetReply))
}

func (c *KVClient) Delete(ctx context.Context, key string) error {
	return c.invoke(ctx, "Delete", &DeleteRequest{Key: key}, new(DeleteReply))
}

func (c *KVClient) Contains(ctx context.Context, key string) (bool, error) {
	reply := new(ContainsReply)
	if err := c.invoke(ctx, "Contains", &ContainsRequest{Key: key}, reply); err != nil {
		return false, err
	}
	return reply.Found, nil
}

func (c *KVClient) Keys(ctx context.Context) ([]string, error) {
	reply := new(KeysReply)
	if err := c.invoke(ctx, "Keys", &KeysRequest{}, reply); err != nil {
		return nil, err
	}
	return reply.Keys, nil
}

func (c *KVClient) CompareAndSwap(ctx context.Context, key string, old, new_ any) (bool, error) {
	reply := new(CASReply)
	if err := c.invoke(ctx, "CompareAndSwap", &CASRequest{Key: key, Old: old, New: new_}, reply); err != nil {
		return false, err
	}
	return reply.Swapped, nil
}
