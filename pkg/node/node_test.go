package node

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcProcessor adapts a plain function to Processor for test nodes.
type funcProcessor struct {
	fn func(ctx context.Context, input *batch.Batch) (*batch.Batch, error)
}

func (f *funcProcessor) Process(ctx context.Context, input *batch.Batch) (*batch.Batch, error) {
	return f.fn(ctx, input)
}

func waitStatus(t *testing.T, n *Node, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n.Status() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("node %q did not reach %s, stuck at %s", n.Name(), want, n.Status())
}

func TestLinearOKThenLast(t *testing.T) {
	in := queue.NewIntra("in", 4)
	out := queue.NewIntra("out", 4)

	identity := New(Config{Name: "identity", Inputs: []string{"in"}, Outputs: []string{"out"}}, &funcProcessor{
		fn: func(_ context.Context, input *batch.Batch) (*batch.Batch, error) {
			if input.IsLast() {
				return batch.LastBatch(), nil
			}
			return batch.New(batch.OK, append([]batch.Record{}, input.Records()...), nil), nil
		},
	}, nil)
	identity.AttachInput(in)
	identity.AttachOutput(out)
	require.NoError(t, identity.Start())

	ctx := context.Background()
	require.NoError(t, in.Put(ctx, batch.OKBatch(batch.Record{"x": 1}, batch.Record{"x": 2})))
	require.NoError(t, in.Put(ctx, batch.OKBatch(batch.Record{"x": 3}, batch.Record{"x": 4})))
	require.NoError(t, in.Put(ctx, batch.LastBatch()))

	var received []batch.Record
	for {
		b, err := out.Get(ctx)
		require.NoError(t, err)
		if b.IsLast() {
			break
		}
		received = append(received, b.Records()...)
	}

	assert.Len(t, received, 4)
	waitStatus(t, identity, Completed)
}

func TestZipSynchronizesTwoInputs(t *testing.T) {
	a := queue.NewIntra("a", 4)
	b := queue.NewIntra("b", 4)
	out := queue.NewIntra("out", 4)

	n := New(Config{Name: "joiner", Inputs: []string{"a", "b"}, Outputs: []string{"out"}}, &funcProcessor{
		fn: func(_ context.Context, input *batch.Batch) (*batch.Batch, error) {
			if input.IsLast() {
				return batch.LastBatch(), nil
			}
			return batch.New(batch.OK, input.Records(), nil), nil
		},
	}, nil)
	n.AttachInput(a)
	n.AttachInput(b)
	n.AttachOutput(out)
	require.NoError(t, n.Start())

	ctx := context.Background()
	require.NoError(t, a.Put(ctx, batch.OKBatch(batch.Record{"x": 1}, batch.Record{"x": 2})))
	require.NoError(t, b.Put(ctx, batch.OKBatch(batch.Record{"y": 10}, batch.Record{"y": 20})))
	require.NoError(t, a.Put(ctx, batch.LastBatch()))
	require.NoError(t, b.Put(ctx, batch.LastBatch()))

	got, err := out.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, batch.Record{"a": batch.Record{"x": 1}, "b": batch.Record{"y": 10}}, got.At(0))
	assert.Equal(t, batch.Record{"a": batch.Record{"x": 2}, "b": batch.Record{"y": 20}}, got.At(1))

	last, err := out.Get(ctx)
	require.NoError(t, err)
	assert.True(t, last.IsLast())
	waitStatus(t, n, Completed)
}

func TestZipLengthMismatchTerminates(t *testing.T) {
	a := queue.NewIntra("a", 4)
	b := queue.NewIntra("b", 4)

	n := New(Config{Name: "joiner", Inputs: []string{"a", "b"}, Outputs: []string{"out"}}, &funcProcessor{
		fn: func(_ context.Context, input *batch.Batch) (*batch.Batch, error) {
			return batch.New(batch.OK, input.Records(), nil), nil
		},
	}, nil)
	out := queue.NewIntra("out", 4)
	n.AttachInput(a)
	n.AttachInput(b)
	n.AttachOutput(out)
	require.NoError(t, n.Start())

	ctx := context.Background()
	require.NoError(t, a.Put(ctx, batch.OKBatch(batch.Record{"x": 1}, batch.Record{"x": 2})))
	require.NoError(t, b.Put(ctx, batch.OKBatch(batch.Record{"y": 10})))

	waitStatus(t, n, Terminated)
}

func TestRetryThenSucceed(t *testing.T) {
	in := queue.NewIntra("in", 4)
	out := queue.NewIntra("out", 4)

	attempts := 0
	n := New(Config{Name: "flaky", Inputs: []string{"in"}, Outputs: []string{"out"}, MaxRetries: 1}, &funcProcessor{
		fn: func(_ context.Context, input *batch.Batch) (*batch.Batch, error) {
			if input.IsLast() {
				return batch.LastBatch(), nil
			}
			attempts++
			if attempts == 1 {
				return nil, assertError{}
			}
			return batch.New(batch.OK, input.Records(), nil), nil
		},
	}, nil)
	n.AttachInput(in)
	n.AttachOutput(out)
	require.NoError(t, n.Start())

	ctx := context.Background()
	require.NoError(t, in.Put(ctx, batch.OKBatch(batch.Record{"x": 1})))

	got, err := out.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsOK())
	assert.Equal(t, 2, attempts)

	require.NoError(t, in.Put(ctx, batch.LastBatch()))
	waitStatus(t, n, Completed)
}

type assertError struct{}

func (assertError) Error() string { return "synthetic failure" }

func TestRestartExhaustedTerminates(t *testing.T) {
	in := queue.NewIntra("in", 4)
	out := queue.NewIntra("out", 4)

	n := New(Config{Name: "always-fails", Inputs: []string{"in"}, Outputs: []string{"out"}, MaxRetries: 0, MaxRestarts: 0}, &funcProcessor{
		fn: func(_ context.Context, _ *batch.Batch) (*batch.Batch, error) {
			return nil, assertError{}
		},
	}, nil)
	n.AttachInput(in)
	n.AttachOutput(out)
	require.NoError(t, n.Start())

	ctx := context.Background()
	require.NoError(t, in.Put(ctx, batch.OKBatch(batch.Record{"x": 1})))

	waitStatus(t, n, Terminated)
}

func TestCollectorFlushFoldsTriggerBatch(t *testing.T) {
	in := queue.NewIntra("in", 4)
	out := queue.NewIntra("out", 4)

	var seen []batch.Record
	n := New(Config{Name: "collector", Inputs: []string{"in"}, Outputs: []string{"out"}, CollectorKey: "flush"}, &funcProcessor{
		fn: func(_ context.Context, input *batch.Batch) (*batch.Batch, error) {
			seen = input.Records()
			return batch.New(batch.OK, input.Records(), nil), nil
		},
	}, nil)
	n.AttachInput(in)
	n.AttachOutput(out)
	require.NoError(t, n.Start())

	ctx := context.Background()
	require.NoError(t, in.Put(ctx, batch.New(batch.OK, []batch.Record{{"x": 1}}, map[string]any{"flush": false})))
	require.NoError(t, in.Put(ctx, batch.New(batch.OK, []batch.Record{{"x": 2}}, map[string]any{"flush": true})))

	got, err := out.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	assert.Len(t, seen, 2)
}

func TestDrainIsIdempotent(t *testing.T) {
	n := New(Config{Name: "solo"}, &funcProcessor{
		fn: func(_ context.Context, _ *batch.Batch) (*batch.Batch, error) { return nil, nil },
	}, nil)
	require.NoError(t, n.Start())
	assert.NotPanics(t, func() {
		n.Drain()
		n.Drain()
	})
}
