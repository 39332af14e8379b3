// Package ipc provides the cross-process transport flowrunner uses for
// INTER-flavored queues and the process-wide shared memory plane: a
// single long-lived gRPC server hosted by the pipeline's root process,
// dialed by every PROCESS-isolated node's child process.
//
// The wire format is gob, not protobuf: the pack's own teacher
// (cuemby/warren) dials generated protobuf stubs under
// api/proto, but that package is generated code and was not part of
// the retrieved source, so there is nothing to adapt. gRPC's codec is
// pluggable (see google.golang.org/grpc/encoding), so a gob codec lets
// the real grpc transport carry plain Go structs without regenerating
// anything — grounded on the same "channel carries arbitrary framed
// messages" idea that joeycumines-go-utilpkg/inprocgrpc applies
// in-process.
package ipc

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

const codecName = "gob"

type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(gobCodec{})
	// Record and shared-memory values are carried as `any`; gob needs
	// every concrete type that crosses an interface boundary
	// registered up front. This covers the scalar types records and
	// shared-memory entries realistically hold; application-specific
	// node implementations that store other concrete types across a
	// PROCESS boundary must gob.Register them too.
	gob.Register(map[string]any{})
	gob.Register("")
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(bool(false))
	gob.Register([]any{})
	gob.Register([]string{})
}

// CodecName is the gRPC content-subtype every ipc client must request
// via grpc.CallContentSubtype, so the server picks the gob codec
// instead of attempting protobuf.
const CodecName = codecName
