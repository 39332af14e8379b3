package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/node"
	"github.com/cuemby/flowrunner/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// source emits one OK batch of its configured records, then LAST.
type source struct {
	records []batch.Record
	sent    bool
}

func (s *source) Process(context.Context, *batch.Batch) (*batch.Batch, error) {
	if s.sent {
		return batch.LastBatch(), nil
	}
	s.sent = true
	return batch.New(batch.OK, s.records, nil), nil
}

// sink accumulates every OK batch's records it is handed.
type sink struct {
	mu  sync.Mutex
	got []batch.Record
}

func (s *sink) Process(_ context.Context, input *batch.Batch) (*batch.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if input != nil && input.IsOK() {
		s.got = append(s.got, input.Records()...)
	}
	return nil, nil
}

func newTestRegistry(src *source, snk *sink) *registry.Registry {
	r := registry.New()
	r.Register("Source", func(registry.Args) (node.Processor, error) { return src, nil })
	r.Register("Sink", func(registry.Args) (node.Processor, error) { return snk, nil })
	return r
}

func TestBuildAndRunLinearPipeline(t *testing.T) {
	src := &source{records: []batch.Record{{"v": 1}, {"v": 2}}}
	snk := &sink{}
	r := newTestRegistry(src, snk)

	spec := &Spec{
		Nodes: []registry.Record{
			{Name: "src", Class: "Source", Output: "mid"},
			{Name: "snk", Class: "Sink", Input: "mid"},
		},
	}

	p, err := Build(r, spec)
	require.NoError(t, err)
	require.NoError(t, p.Run())

	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not finish in time")
	}

	snk.mu.Lock()
	defer snk.mu.Unlock()
	assert.Equal(t, []batch.Record{{"v": 1}, {"v": 2}}, snk.got)
}

func TestBuildFailsOnUnknownClass(t *testing.T) {
	r := registry.New()
	spec := &Spec{Nodes: []registry.Record{{Name: "x", Class: "DoesNotExist"}}}
	_, err := Build(r, spec)
	assert.ErrorContains(t, err, "unknown class")
}

func TestBuildFailsOnDanglingPort(t *testing.T) {
	src := &source{}
	r := registry.New()
	r.Register("Source", func(registry.Args) (node.Processor, error) { return src, nil })

	spec := &Spec{Nodes: []registry.Record{
		{Name: "src", Class: "Source", Output: "orphan"},
	}}
	_, err := Build(r, spec)
	assert.ErrorContains(t, err, "invalid pipeline spec")
}
