// Package perr collects the sentinel error kinds used across flowrunner,
// per the error taxonomy in the runtime specification.
package perr

import "errors"

var (
	// ErrBatchLengthMismatch names the failure of a multi-input node's
	// zip step when synchronized batches do not share the same length.
	// The zip step reports that failure as an ERROR Batch carrying
	// "Length batches cannot be different", not by returning this error.
	ErrBatchLengthMismatch = errors.New("pipez: length batches cannot be different")

	// ErrBatchStatusMismatch is raised by a multi-input node's zip step,
	// or when a node's input/output statuses disagree (OK vs LAST).
	ErrBatchStatusMismatch = errors.New("pipez: batch status mismatch")

	// ErrNodeOutputMismatch is raised when a node produces output without
	// declared output ports, or declares output ports but produces none.
	ErrNodeOutputMismatch = errors.New("pipez: output batch does not match node's declared ports")

	// ErrMissingCollectorKey is raised in collector mode when the
	// configured flush flag is absent from an input batch's metadata.
	ErrMissingCollectorKey = errors.New("pipez: collector flag missing from batch metadata")

	// ErrQueueClosed is surfaced when a queue's transport is interrupted
	// (e.g. the remote end of an inter-process queue disconnected).
	ErrQueueClosed = errors.New("pipez: queue closed")

	// ErrUnknownClass is returned by the registry when hydrating a
	// configuration record whose cls field names no registered
	// constructor.
	ErrUnknownClass = errors.New("pipez: unknown class")

	// ErrInvalidPipelineSpec is returned by the builder when a
	// configuration record cannot be resolved, or a declared port is
	// never referenced.
	ErrInvalidPipelineSpec = errors.New("pipez: invalid pipeline spec")

	// ErrAlreadyStarted is returned by Node.Start when called on a node
	// that has already left the PENDING status.
	ErrAlreadyStarted = errors.New("pipez: node already started")
)
