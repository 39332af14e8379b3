package node

import (
	"context"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/perr"
)

// zip implements the multi-input synchronization of spec.md §4.E.4: it
// reads one Batch from each input port in declared order, then
// combines them under a lock-step barrier.
func (n *Node) zip(ctx context.Context) (*batch.Batch, error) {
	parts := make([]*batch.Batch, len(n.inputs))
	for i, q := range n.inputs {
		b, err := q.Get(ctx)
		if err != nil {
			return nil, err
		}
		parts[i] = b
	}

	length := parts[0].Len()
	for _, b := range parts[1:] {
		if b.Len() != length {
			return batch.ErrorBatch("Length batches cannot be different"), nil
		}
	}

	allOK, allLast := true, true
	for _, b := range parts {
		if !b.IsOK() {
			allOK = false
		}
		if !b.IsLast() {
			allLast = false
		}
	}

	switch {
	case allLast:
		return batch.LastBatch(), nil
	case allOK:
		return n.zipAssemble(parts, length), nil
	default:
		return nil, perr.ErrBatchStatusMismatch
	}
}

// zipAssemble builds the synthesized OK batch: record j is the keyed
// map {port_i -> parts[i][j]}, and metadata is the union of every
// part's metadata with later inputs (declared order) winning on key
// conflicts.
func (n *Node) zipAssemble(parts []*batch.Batch, length int) *batch.Batch {
	records := make([]batch.Record, length)
	for j := 0; j < length; j++ {
		rec := make(batch.Record, len(parts))
		for i, b := range parts {
			rec[n.inputNames[i]] = b.At(j)
		}
		records[j] = rec
	}

	meta := make(map[string]any)
	for _, b := range parts {
		for k, v := range b.Meta() {
			meta[k] = v
		}
	}

	return batch.New(batch.OK, records, meta)
}
