package common

import (
	"context"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/node"
	"github.com/cuemby/flowrunner/pkg/registry"
)

// Ungroup flattens a nested list found at a key path (a list of
// nested keys) inside
// each input record into one output record per list element, tagging
// every output record's originating input index in metadata["idxs"]
// so a downstream Group can fold the stream back together. Grounded on
// original_source/pipez/nodes/common/ungroup.py.
type Ungroup struct {
	path    []string
	mainKey string
}

// NewUngroup builds an Ungroup from "keys" (the nested path to the
// list, e.g. ["detections"]) and "main_key" (the field name each
// exploded record carries its value under).
func NewUngroup(args registry.Args) (node.Processor, error) {
	return &Ungroup{
		path:    args.Strings("keys"),
		mainKey: args.String("main_key", "value"),
	}, nil
}

func (u *Ungroup) Process(_ context.Context, input *batch.Batch) (*batch.Batch, error) {
	if input == nil || !input.IsOK() {
		return nil, nil
	}

	out := make([]batch.Record, 0, input.Len())
	idxs := make([]int, 0, input.Len())

	for idx, rec := range input.Records() {
		list, ok := walk(rec, u.path)
		if !ok {
			continue
		}
		for _, item := range list {
			out = append(out, batch.Record{u.mainKey: item})
			idxs = append(idxs, idx)
		}
	}

	meta := copyMeta(input.Meta())
	meta["idxs"] = idxs
	meta["batch_size"] = input.Len()
	return batch.New(batch.OK, out, meta), nil
}

// walk descends rec through path, returning the []any found at the end
// of it. A missing key or a non-slice leaf reports ok=false so the
// caller can skip that record, mirroring is_keys_available's guard in
// the original.
func walk(rec batch.Record, path []string) ([]any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	var cur any = map[string]any(rec)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			if asRec, ok := cur.(batch.Record); ok {
				m = map[string]any(asRec)
			} else {
				return nil, false
			}
		}
		v, ok := m[key]
		if !ok {
			return nil, false
		}
		cur = v
	}
	list, ok := cur.([]any)
	return list, ok
}

func copyMeta(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}
