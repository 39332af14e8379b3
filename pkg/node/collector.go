package node

import (
	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/perr"
)

// foldCollector implements spec.md §4.E.6. When collectorKey is empty
// the node is not in collector mode and input passes through
// unchanged. Otherwise every non-terminal OK input batch extends the
// accumulator; a batch whose metadata[collectorKey] is truthy extends
// it and then flushes it.
//
// Open Question #3 (spec.md §9): the flush batch's own records ARE
// folded into the accumulator before Process runs — the flush key is
// a marker on a batch that still carries data, not a bare signal. This
// is the documented, tested choice; node implementations that want
// signal-only flush batches should simply emit them with an empty
// record slice.
func (n *Node) foldCollector(input *batch.Batch) (effective *batch.Batch, await bool, err error) {
	if n.collectorKey == "" {
		return input, false, nil
	}
	if input == nil {
		return nil, true, nil
	}

	v, ok := input.Meta()[n.collectorKey]
	if !ok {
		return nil, false, perr.ErrMissingCollectorKey
	}

	n.accumulator = append(n.accumulator, input.Records()...)
	if n.accumMeta == nil {
		n.accumMeta = make(map[string]any, len(input.Meta()))
	}
	for k, val := range input.Meta() {
		n.accumMeta[k] = val
	}

	if !truthy(v) {
		return nil, true, nil
	}

	flushed := batch.New(batch.OK, n.accumulator, n.accumMeta)
	n.accumulator = nil
	n.accumMeta = nil
	return flushed, false, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case nil:
		return false
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}
