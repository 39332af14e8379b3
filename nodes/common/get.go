// Package common provides a handful of general-purpose nodes —
// projection, grouping/ungrouping, and a literal-data source/sink pair
// for examples and tests — registered by class name so a pipeline
// config can reference them without any Go glue. Grounded on
// original_source/pipez/nodes/common/*.py, re-expressed in Go rather
// than translated line for line.
package common

import (
	"context"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/node"
	"github.com/cuemby/flowrunner/pkg/registry"
)

// Get projects each record down to a fixed set of keys, dropping the
// rest. Grounded on original_source/pipez/nodes/common/get.py.
type Get struct {
	keys []string
}

// NewGet builds a Get from a "keys" argument (a string or list of
// strings).
func NewGet(args registry.Args) (node.Processor, error) {
	return &Get{keys: args.Strings("keys")}, nil
}

func (g *Get) Process(_ context.Context, input *batch.Batch) (*batch.Batch, error) {
	if input == nil || !input.IsOK() {
		return nil, nil
	}
	out := make([]batch.Record, 0, input.Len())
	for _, rec := range input.Records() {
		projected := make(batch.Record, len(g.keys))
		for _, k := range g.keys {
			if v, ok := rec[k]; ok {
				projected[k] = v
			}
		}
		out = append(out, projected)
	}
	return batch.New(batch.OK, out, input.Meta()), nil
}

// Register adds every node in this package to r under its class name.
func Register(r *registry.Registry) {
	r.Register("Get", NewGet)
	r.Register("Group", NewGroup)
	r.Register("Ungroup", NewUngroup)
	r.Register("LiteralSource", NewLiteralSource)
	r.Register("LogSink", NewLogSink)
}
