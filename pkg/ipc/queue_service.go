package ipc

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/log"
	"google.golang.org/grpc"
)

const queueTransportServiceName = "flowrunner.ipc.QueueTransport"
const queueAttachMethod = "/" + queueTransportServiceName + "/Attach"

// QueueHome hosts the backing buffers for every INTER-flavor queue
// declared in a pipeline. It always lives in the process that ran the
// pipeline builder; PROCESS-isolated child nodes reach it over gRPC.
type QueueHome struct {
	mu      sync.Mutex
	buffers map[string]chan *batch.Batch
}

// NewQueueHome creates an empty registry of queue buffers.
func NewQueueHome() *QueueHome {
	return &QueueHome{buffers: make(map[string]chan *batch.Batch)}
}

// Register creates (or returns the existing) buffered channel backing
// the named queue, with the given capacity.
func (h *QueueHome) Register(name string, capacity int) chan *batch.Batch {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.buffers[name]; ok {
		return ch
	}
	ch := make(chan *batch.Batch, capacity)
	h.buffers[name] = ch
	return ch
}

func (h *QueueHome) bufferFor(name string) (chan *batch.Batch, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.buffers[name]
	if !ok {
		return nil, fmt.Errorf("ipc: queue %q not registered with this home", name)
	}
	return ch, nil
}

// ServiceDesc is the hand-authored gRPC service descriptor for the
// queue transport: a single bidirectional stream whose first message
// is an AttachRequest and whose remaining traffic is Frames flowing in
// whichever direction the declared Role implies. There is no generated
// code here (see package doc) — Attach is wired directly to a plain Go
// method via the codec-agnostic streaming handler form.
func (h *QueueHome) ServiceDesc() *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: queueTransportServiceName,
		HandlerType: (*any)(nil),
		Methods:     []grpc.MethodDesc{},
		Streams: []grpc.StreamDesc{
			{
				StreamName:    "Attach",
				Handler:       h.attachHandler,
				ServerStreams: true,
				ClientStreams: true,
			},
		},
		Metadata: "flowrunner/ipc/queue.proto",
	}
}

func (h *QueueHome) attachHandler(_ any, stream grpc.ServerStream) error {
	var req AttachRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	buf, err := h.bufferFor(req.Queue)
	if err != nil {
		return err
	}

	logger := log.WithComponent("ipc.queue_home")
	ctx := stream.Context()

	switch req.Role {
	case RoleProducer:
		for {
			var f Frame
			if err := stream.RecvMsg(&f); err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
			select {
			case buf <- FromWire(f.Batch):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	case RoleConsumer:
		for {
			select {
			case b, ok := <-buf:
				if !ok {
					return nil
				}
				if err := stream.SendMsg(&Frame{Batch: ToWire(b)}); err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	default:
		logger.Error().Str("role", req.Role).Msg("ipc: unknown attach role")
		return fmt.Errorf("ipc: unknown attach role %q", req.Role)
	}
}

// RemoteQueue is a Queue implementation (see pkg/queue) that forwards
// Put/Get calls over a single gRPC stream to a QueueHome living in a
// different OS process.
type RemoteQueue struct {
	name   string
	role   string
	stream grpc.ClientStream
	mu     sync.Mutex
}

// DialQueue opens a stream over cc to the server's QueueHome and declares this end's
// role for the named queue.
func DialQueue(ctx context.Context, cc *grpc.ClientConn, name, role string) (*RemoteQueue, error) {
	stream, err := cc.NewStream(ctx, &grpc.StreamDesc{
		StreamName:    "Attach",
		ServerStreams: true,
		ClientStreams: true,
	}, queueAttachMethod, grpc.CallContentSubtype(CodecName))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&AttachRequest{Queue: name, Role: role}); err != nil {
		return nil, err
	}
	return &RemoteQueue{name: name, role: role, stream: stream}, nil
}

// Put sends a Batch to the home side. Valid only when dialed with
// RoleProducer.
func (r *RemoteQueue) Put(b *batch.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream.SendMsg(&Frame{Batch: ToWire(b)})
}

// Get receives the next Batch from the home side. Valid only when
// dialed with RoleConsumer.
func (r *RemoteQueue) Get() (*batch.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var f Frame
	if err := r.stream.RecvMsg(&f); err != nil {
		return nil, err
	}
	return FromWire(f.Batch), nil
}

// Close terminates the underlying stream's send side.
func (r *RemoteQueue) Close() error {
	return r.stream.CloseSend()
}
