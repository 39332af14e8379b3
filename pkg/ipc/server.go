package ipc

import (
	"net"

	"github.com/cuemby/flowrunner/pkg/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Server hosts QueueHome and KVHome behind one gRPC listener — the
// single arbitration process the pipeline's root runs so every
// PROCESS-isolated node can reach its queues and the shared map.
type Server struct {
	Queues *QueueHome
	KV     *KVHome

	grpcServer *grpc.Server
	listener   net.Listener
}

// Listen starts the server on addr ("127.0.0.1:0" picks a free port)
// and returns once it is accepting connections. Call Addr to discover
// the bound address for child processes.
func Listen(addr string) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Queues:     NewQueueHome(),
		KV:         NewKVHome(),
		grpcServer: grpc.NewServer(),
		listener:   lis,
	}
	s.grpcServer.RegisterService(s.Queues.ServiceDesc(), s.Queues)
	s.grpcServer.RegisterService(s.KV.ServiceDesc(), s.KV)

	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			log.WithComponent("ipc.server").Debug().Err(err).Msg("ipc server stopped")
		}
	}()

	return s, nil
}

// Addr returns the bound TCP address, e.g. for passing to child
// processes via their --addr flag.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the gRPC server.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

// Dial connects to a Server's address from a child process.
func Dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}
