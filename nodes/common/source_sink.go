package common

import (
	"context"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/log"
	"github.com/cuemby/flowrunner/pkg/node"
	"github.com/cuemby/flowrunner/pkg/registry"
)

// LiteralSource emits "count" records, each carrying only its position
// under "seq", as a single OK Batch, then
// LAST — a minimal config-driven stand-in for pipez's DummyNode
// (original_source/pipez/nodes/dummy.py), used to exercise a pipeline
// end to end without a real data source.
type LiteralSource struct {
	count int
	sent  bool
}

// NewLiteralSource builds a LiteralSource from a "count" argument
// (default 1).
func NewLiteralSource(args registry.Args) (node.Processor, error) {
	return &LiteralSource{count: args.Int("count", 1)}, nil
}

func (s *LiteralSource) Process(context.Context, *batch.Batch) (*batch.Batch, error) {
	if s.sent {
		return batch.LastBatch(), nil
	}
	s.sent = true
	records := make([]batch.Record, s.count)
	for i := range records {
		records[i] = batch.Record{"seq": i}
	}
	return batch.New(batch.OK, records, nil), nil
}

// LogSink logs every OK batch it receives at debug level and discards
// it — useful as a pipeline's terminal node in examples and smoke
// tests.
type LogSink struct {
	name string
}

// NewLogSink builds a LogSink; "name" names the logger, defaulting to
// "log-sink".
func NewLogSink(args registry.Args) (node.Processor, error) {
	return &LogSink{name: args.String("name", "log-sink")}, nil
}

func (s *LogSink) Process(_ context.Context, input *batch.Batch) (*batch.Batch, error) {
	if input != nil && input.IsOK() {
		log.WithNode(s.name).Debug().Int("records", input.Len()).Msg("received batch")
	}
	return nil, nil
}
