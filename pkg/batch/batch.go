// Package batch defines the envelope that carries data between pipeline
// nodes: an ordered record sequence, a metadata map, and a status tag.
package batch

// Status tags a Batch's place in the stream.
type Status int

const (
	// OK carries zero or more records as a normal step of the stream.
	OK Status = iota
	// Last marks the end of a stream; it carries no data semantics
	// beyond the status.
	Last
	// Error marks a failed step; Error() holds the failure message.
	Error
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Last:
		return "LAST"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Record is a single keyed unit of data flowing through the pipeline.
type Record map[string]any

// Batch is an immutable-by-convention envelope: once returned from a
// work function or constructed by the runtime, nothing may rewrite its
// status, records, or metadata. Fan-out shares a Batch by reference
// across every downstream queue of one output port; the only safe
// mutation point is during construction, via Append, before the Batch
// is published to any queue.
type Batch struct {
	records []Record
	meta    map[string]any
	status  Status
	err     string
}

// New constructs a Batch. A nil meta is normalized to an empty map so
// callers can always range over it.
func New(status Status, records []Record, meta map[string]any) *Batch {
	if meta == nil {
		meta = map[string]any{}
	}
	return &Batch{records: records, meta: meta, status: status}
}

// OKBatch constructs an OK Batch from the given records.
func OKBatch(records ...Record) *Batch {
	return New(OK, records, nil)
}

// LastBatch constructs the terminal LAST Batch.
func LastBatch() *Batch {
	return New(Last, nil, nil)
}

// ErrorBatch constructs an ERROR Batch carrying the given message.
func ErrorBatch(msg string) *Batch {
	b := New(Error, nil, nil)
	b.err = msg
	return b
}

// Append adds a record during construction. Callers must not call
// Append once a Batch has been handed to a queue.
func (b *Batch) Append(r Record) {
	b.records = append(b.records, r)
}

// Len returns the number of records.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.records)
}

// At returns the record at position i.
func (b *Batch) At(i int) Record {
	return b.records[i]
}

// Records returns the underlying record slice. Callers must treat it
// as read-only.
func (b *Batch) Records() []Record {
	return b.records
}

// Meta returns the batch's metadata map. Callers must treat it as
// read-only once the Batch has been published.
func (b *Batch) Meta() map[string]any {
	return b.meta
}

// Status returns the batch's status tag.
func (b *Batch) Status() Status {
	return b.status
}

// Err returns the error message, set iff Status() == Error.
func (b *Batch) Err() string {
	return b.err
}

// IsOK reports whether the batch's status is OK.
func (b *Batch) IsOK() bool { return b != nil && b.status == OK }

// IsLast reports whether the batch's status is LAST.
func (b *Batch) IsLast() bool { return b != nil && b.status == Last }

// IsError reports whether the batch's status is ERROR.
func (b *Batch) IsError() bool { return b != nil && b.status == Error }
