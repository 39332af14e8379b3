package ipc

import "github.com/cuemby/flowrunner/pkg/batch"

// AttachRequest is the first frame sent on a QueueTransport stream: it
// declares which queue the caller wants and whether it intends to
// produce into it or consume from it.
type AttachRequest struct {
	Queue string
	Role  string // "producer" or "consumer"
}

const (
	RoleProducer = "producer"
	RoleConsumer = "consumer"
)

// Frame carries one Batch across a QueueTransport stream.
type Frame struct {
	Batch WireBatch
}

// WireBatch is the gob-friendly mirror of batch.Batch (whose fields are
// unexported, so gob cannot encode it directly).
type WireBatch struct {
	Status  int
	Records []batch.Record
	Meta    map[string]any
	Err     string
}

// ToWire converts a Batch to its wire representation.
func ToWire(b *batch.Batch) WireBatch {
	return WireBatch{
		Status:  int(b.Status()),
		Records: b.Records(),
		Meta:    b.Meta(),
		Err:     b.Err(),
	}
}

// FromWire reconstructs a Batch from its wire representation.
func FromWire(w WireBatch) *batch.Batch {
	b := batch.New(batch.Status(w.Status), w.Records, w.Meta)
	if batch.Status(w.Status) == batch.Error {
		return batch.ErrorBatch(w.Err)
	}
	return b
}
