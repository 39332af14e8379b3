package supervisor

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/ipc"
	"github.com/cuemby/flowrunner/pkg/memory"
	"github.com/cuemby/flowrunner/pkg/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selfCompleting is a Processor for a node with one declared output
// and no input ports: its first (and only) invocation returns a LAST
// Batch, driving the node straight to COMPLETED.
type selfCompleting struct{}

func (selfCompleting) Process(context.Context, *batch.Batch) (*batch.Batch, error) {
	return batch.LastBatch(), nil
}

// alwaysErrors drives a node to TERMINATED: on a node with no output
// ports, the ERROR Batch it yields fails the output shape check.
type alwaysErrors struct{}

func (alwaysErrors) Process(context.Context, *batch.Batch) (*batch.Batch, error) {
	return nil, errors.New("boom")
}

func newSharedForTest() memory.Shared {
	return memory.NewSharedInProcess(ipc.NewKVHome())
}

func TestWatchdogWritesHeartbeat(t *testing.T) {
	shared := newSharedForTest()

	w := NewWatchdog(shared, nil)
	out, err := w.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	v, ok, err := shared.Get(context.Background(), HeartbeatKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func TestWatchdogCompletesWhenAllNodesCompleted(t *testing.T) {
	shared := newSharedForTest()

	a := node.New(node.Config{Name: "a", Outputs: []string{"out-a"}}, selfCompleting{}, nil)
	b := node.New(node.Config{Name: "b", Outputs: []string{"out-b"}}, selfCompleting{}, nil)
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())
	a.Join()
	b.Join()

	w := NewWatchdog(shared, []*node.Node{a, b})
	out, err := w.Process(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.IsLast())
}

func TestWatchdogDrainsOnAnyTermination(t *testing.T) {
	shared := newSharedForTest()

	ok := node.New(node.Config{Name: "ok", Outputs: []string{"out-ok"}}, selfCompleting{}, nil)
	require.NoError(t, ok.Start())
	ok.Join()

	bad := node.New(node.Config{Name: "bad"}, alwaysErrors{}, nil)
	require.NoError(t, bad.Start())
	bad.Join()

	w := NewWatchdog(shared, []*node.Node{ok, bad})
	out, err := w.Process(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.IsLast())
	assert.Equal(t, node.Terminated, bad.Status())
}
