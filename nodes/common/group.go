package common

import (
	"context"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/node"
	"github.com/cuemby/flowrunner/pkg/perr"
	"github.com/cuemby/flowrunner/pkg/registry"
)

// Group is Ungroup's inverse: it folds a flattened stream back into
// one record per original index, using the metadata["idxs"]/
// metadata["batch_size"] an upstream Ungroup attached, nesting every
// folded record under className. Grounded on
// original_source/pipez/nodes/common/group.py.
type Group struct {
	className string
}

// NewGroup builds a Group from a "class_name" argument — the key each
// reconstructed record carries its folded list under.
func NewGroup(args registry.Args) (node.Processor, error) {
	return &Group{className: args.String("class_name", "items")}, nil
}

func (g *Group) Process(_ context.Context, input *batch.Batch) (*batch.Batch, error) {
	if input == nil || !input.IsOK() {
		return nil, nil
	}

	meta := copyMeta(input.Meta())
	idxsRaw, ok := meta["idxs"]
	if !ok {
		return nil, perr.ErrInvalidPipelineSpec
	}
	delete(meta, "idxs")
	batchSize, _ := meta["batch_size"].(int)
	delete(meta, "batch_size")

	idxs, err := toIntSlice(idxsRaw)
	if err != nil {
		return nil, err
	}

	out := make([]batch.Record, batchSize)
	for i := range out {
		out[i] = batch.Record{}
	}
	for i, rec := range input.Records() {
		if i >= len(idxs) {
			break
		}
		idx := idxs[i]
		if idx < 0 || idx >= batchSize {
			continue
		}
		existing, _ := out[idx][g.className].([]batch.Record)
		out[idx][g.className] = append(existing, rec)
	}

	return batch.New(batch.OK, out, meta), nil
}

func toIntSlice(v any) ([]int, error) {
	switch t := v.(type) {
	case []int:
		return t, nil
	case []any:
		out := make([]int, 0, len(t))
		for _, e := range t {
			switch n := e.(type) {
			case int:
				out = append(out, n)
			case int64:
				out = append(out, int(n))
			case float64:
				out = append(out, int(n))
			default:
				return nil, perr.ErrInvalidPipelineSpec
			}
		}
		return out, nil
	default:
		return nil, perr.ErrInvalidPipelineSpec
	}
}
