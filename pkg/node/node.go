// Package node implements the node lifecycle and worker loop: the
// status machine, batch pull/push, multi-input zip synchronization,
// retry/restart policy, collector mode, and drain/release handling.
// This is the hard core of the runtime (spec.md §2 component E).
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/memory"
	"github.com/cuemby/flowrunner/pkg/metrics"
	"github.com/cuemby/flowrunner/pkg/perr"
	"github.com/cuemby/flowrunner/pkg/queue"
	"github.com/rs/zerolog"

	"github.com/cuemby/flowrunner/pkg/log"
)

// Isolation selects where a node's worker runs.
type Isolation int

const (
	Task Isolation = iota
	Process
)

func (i Isolation) String() string {
	if i == Process {
		return "PROCESS"
	}
	return "TASK"
}

// Processor is the single method a node implementation overrides
// (spec.md §6's work-function contract). input is nil when the node
// has no input ports. A nil, nil return means "nothing to publish
// this iteration, keep looping" (the ∅ result in spec.md §4.E.3 step
// 10/11); a non-nil error is converted to an ERROR Batch bearing its
// message and subjected to the retry/restart policy exactly as if the
// Processor had returned one directly.
type Processor interface {
	Process(ctx context.Context, input *batch.Batch) (*batch.Batch, error)
}

// PostIniter is an optional Processor hook invoked by the restart
// policy after Closer.Close, before the next Process call.
type PostIniter interface {
	PostInit() error
}

// Closer is an optional Processor hook invoked once per restart
// attempt and once on any terminal transition (spec.md §4.E.7's
// release hook).
type Closer interface {
	Close() error
}

// Config describes a Node's construction parameters (spec.md §4.E.1).
type Config struct {
	Name         string
	Isolation    Isolation
	Inputs       []string
	Outputs      []string
	Timeout      time.Duration
	MaxRetries   int
	MaxRestarts  int
	CollectorKey string // empty disables collector mode
}

// Node is one vertex of the pipeline graph: it owns a Worker, pulls
// from its input queues, invokes its Processor, and pushes to its
// output queues, advancing its own status as it goes.
type Node struct {
	name         string
	isolation    Isolation
	inputNames   []string
	outputNames  []string
	timeout      time.Duration
	maxRetries   int
	maxRestarts  int
	collectorKey string

	inputs  []queue.Queue
	outputs []queue.Queue

	local  *memory.Local
	shared memory.Shared

	metrics   *metrics.Metrics
	processor Processor
	worker    Worker
	status    *statusBox
	logger    zerolog.Logger

	accumulator []batch.Record
	accumMeta   map[string]any

	releaseDone bool

	// statusKey, when set, is the SharedMemory key this node mirrors
	// its status transitions into. The pipeline builder sets this for
	// PROCESS-isolated nodes so the parent process's supervision handle
	// (which never runs this Node's loop itself — the child process
	// does) can observe status across the OS-process boundary, using
	// the same shared-map mechanism the supervisor already uses for its
	// own heartbeat (spec.md §6).
	statusKey string
}

// EnableRemoteStatus configures this Node to mirror its status into
// SharedMemory under key, and — when isolation is PROCESS — to prefer
// reading that key over its own local atomic status, since the
// in-process loop belongs to a different Node instance living in the
// child.
func (n *Node) EnableRemoteStatus(key string) {
	n.statusKey = key
}

// New constructs a Node in the PENDING state. The worker is not
// started until Start is called.
func New(cfg Config, p Processor, shared memory.Shared) *Node {
	inputs := canonPorts(cfg.Inputs)
	outputs := canonPorts(cfg.Outputs)
	return &Node{
		name:         cfg.Name,
		isolation:    cfg.Isolation,
		inputNames:   inputs,
		outputNames:  outputs,
		timeout:      cfg.Timeout,
		maxRetries:   cfg.MaxRetries,
		maxRestarts:  cfg.MaxRestarts,
		collectorKey: cfg.CollectorKey,
		local:        memory.NewLocal(),
		shared:       shared,
		metrics:      metrics.New(cfg.Name),
		processor:    p,
		status:       newStatusBox(Pending),
		logger:       log.WithNode(cfg.Name),
	}
}

func canonPorts(ports []string) []string {
	if ports == nil {
		return nil
	}
	out := make([]string, len(ports))
	copy(out, ports)
	return out
}

// Name returns the node's display name.
func (n *Node) Name() string { return n.name }

// Inputs and Outputs return the declared port names, in order — the
// same order the pipeline builder must attach queues in.
func (n *Node) Inputs() []string  { return n.inputNames }
func (n *Node) Outputs() []string { return n.outputNames }

// Local exposes the node's worker-local memory plane.
func (n *Node) Local() *memory.Local { return n.local }

// Isolation reports whether this node runs as a TASK or a PROCESS,
// the one thing the pipeline builder must branch on when attaching
// queues and choosing a Worker.
func (n *Node) Isolation() Isolation { return n.isolation }

// AttachInput and AttachOutput append a resolved Queue to the node's
// input or output list, so callers attach in declared port order;
// called by the pipeline builder after it allocates queues for every
// port name.
func (n *Node) AttachInput(q queue.Queue) {
	n.inputs = append(n.inputs, q)
}

func (n *Node) AttachOutput(q queue.Queue) {
	n.outputs = append(n.outputs, q)
}

// Status returns the node's current lifecycle stage. For a PROCESS
// node's parent-side handle, this consults the mirrored SharedMemory
// key rather than the local atomic box, which only ever reflects the
// handle's own (unused) loop.
func (n *Node) Status() Status {
	if n.statusKey != "" && n.isolation == Process && n.shared != nil {
		if v, ok, err := n.shared.Get(context.Background(), n.statusKey); err == nil && ok {
			if s, ok := v.(string); ok {
				if parsed, ok := parseStatus(s); ok {
					return parsed
				}
			}
		}
	}
	return n.status.load()
}

func parseStatus(s string) (Status, bool) {
	switch s {
	case "PENDING":
		return Pending, true
	case "ALIVE":
		return Alive, true
	case "COMPLETED":
		return Completed, true
	case "TERMINATED":
		return Terminated, true
	default:
		return 0, false
	}
}

func (n *Node) mirrorStatus(s Status) {
	if n.statusKey == "" || n.shared == nil {
		return
	}
	if err := n.shared.Set(context.Background(), n.statusKey, s.String()); err != nil {
		n.logger.Warn().Err(err).Msg("failed to mirror status to shared memory")
	}
}

// Metrics exposes the node's counters and duration ring.
func (n *Node) Metrics() *metrics.Metrics { return n.metrics }

// SetWorker installs the Worker this node will drive on Start. The
// pipeline builder calls this with a ProcessWorker for a PROCESS node;
// a node with no installed Worker gets a TaskWorker wrapping n.runLoop
// on Start.
func (n *Node) SetWorker(w Worker) {
	n.worker = w
}

// Worker returns the installed Worker, or nil until SetWorker or Start
// installs one. Pipeline.Wait uses this to type-assert the liveness
// monitor's ProcessWorker and force-kill it.
func (n *Node) Worker() Worker { return n.worker }

// Start transitions PENDING->ALIVE and launches the worker. Illegal to
// call twice; the second call returns perr.ErrAlreadyStarted.
func (n *Node) Start() error {
	if !n.status.casFrom(Pending, Alive) {
		return perr.ErrAlreadyStarted
	}
	n.mirrorStatus(Alive)
	if n.worker == nil {
		n.worker = NewTaskWorker(n.runLoop)
	}
	return n.worker.Start()
}

// Join blocks until the node's worker has exited.
func (n *Node) Join() {
	if n.worker != nil {
		n.worker.Join()
	}
}

// Drain forces TERMINATED and empties all attached queues without
// blocking (spec.md §4.E.7's forced termination path). Idempotent per
// spec.md §8.
func (n *Node) Drain() {
	if !n.status.casFrom(Alive, Terminated) {
		// Already terminal (or never started) — still drain queues so
		// a concurrent producer doesn't block forever, but do not
		// re-run release.
		n.drainQueues()
		return
	}
	n.mirrorStatus(Terminated)
	n.drainQueues()
	n.release()
}

func (n *Node) drainQueues() {
	attached := make([]queue.Queue, 0, len(n.inputs)+len(n.outputs))
	attached = append(attached, n.inputs...)
	attached = append(attached, n.outputs...)
	for _, q := range attached {
		for !q.Empty() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			if _, err := q.Get(ctx); err != nil {
				cancel()
				break
			}
			cancel()
		}
	}
}

// release is the overridable hook called exactly once on any terminal
// transition (spec.md §4.E.7).
func (n *Node) release() {
	if n.releaseDone {
		return
	}
	n.releaseDone = true
	if c, ok := n.processor.(Closer); ok {
		if err := c.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("processor close failed during release")
		}
	}
}

// runLoop is the Worker function for TASK isolation; a PROCESS node's
// child process calls this same method on its own in-process Node
// instance (see cmd/flowctl's __noderun), so the iteration logic never
// branches on isolation.
func (n *Node) runLoop() {
	ctx := context.Background()
	for {
		if n.timeout > 0 {
			time.Sleep(n.timeout)
		}
		if n.status.load() != Alive {
			return
		}
		if n.iterate(ctx) {
			return
		}
	}
}

// iterate executes one full pass of spec.md §4.E.3 steps 3-11. It
// returns true once the node has reached a terminal status.
func (n *Node) iterate(ctx context.Context) bool {
	input, err := n.pullInput(ctx)
	if err != nil {
		n.logger.Error().Err(err).Msg("input pull failed")
		n.terminate()
		return true
	}

	if input != nil {
		if input.IsLast() {
			n.publishTerminal(ctx, batch.LastBatch())
			n.complete()
			return true
		}
		if input.IsError() {
			n.logger.Error().Str("err", input.Err()).Msg("upstream error batch received")
			n.terminate()
			return true
		}
	}

	effectiveInput, await, collErr := n.foldCollector(input)
	if collErr != nil {
		n.logger.Error().Err(collErr).Msg("collector fold failed")
		n.terminate()
		return true
	}
	if await {
		return false
	}

	output, procErr := n.invoke(ctx, effectiveInput)

	n.accumulateMetrics(effectiveInput, output)

	if shapeErr := n.shapeCheck(effectiveInput, output); shapeErr != nil {
		n.logger.Error().Err(shapeErr).Msg("output shape check failed")
		n.terminate()
		return true
	}

	if output != nil && !output.IsError() {
		if pubErr := n.publish(ctx, output); pubErr != nil {
			n.logger.Error().Err(pubErr).Msg("publish failed")
			n.terminate()
			return true
		}
	}

	isLastTransition := (effectiveInput != nil && effectiveInput.IsLast()) || (output != nil && output.IsLast())
	if isLastTransition {
		n.complete()
		return true
	}

	if output != nil && output.IsError() {
		return n.applyRetryPolicy(ctx, effectiveInput, procErr)
	}

	return false
}

func (n *Node) terminate() {
	if n.status.casFrom(Alive, Terminated) {
		n.mirrorStatus(Terminated)
		n.release()
	}
}

func (n *Node) complete() {
	if n.status.casFrom(Alive, Completed) {
		n.mirrorStatus(Completed)
		n.release()
	}
}

// publishTerminal pushes a LAST Batch to every output queue (spec.md
// §4.E.3 step 4's LAST-propagation path); the caller then completes
// the node.
func (n *Node) publishTerminal(ctx context.Context, last *batch.Batch) {
	for _, q := range n.outputs {
		if err := q.Put(ctx, last); err != nil {
			n.logger.Warn().Err(err).Str("queue", q.Name()).Msg("failed to propagate LAST")
		}
	}
}

// pullInput implements spec.md §4.E.3 step 3.
func (n *Node) pullInput(ctx context.Context) (*batch.Batch, error) {
	switch len(n.inputs) {
	case 0:
		return nil, nil
	case 1:
		b, err := n.inputs[0].Get(ctx)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return n.zip(ctx)
	}
}

// invoke calls the Processor, converting a returned error into an
// ERROR Batch per spec.md §9's "exception-as-status" design note.
func (n *Node) invoke(ctx context.Context, input *batch.Batch) (*batch.Batch, error) {
	start := time.Now()
	out, err := n.safeProcess(ctx, input)
	n.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		return batch.ErrorBatch(err.Error()), err
	}
	return out, nil
}

func (n *Node) safeProcess(ctx context.Context, input *batch.Batch) (out *batch.Batch, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processing panicked: %v", r)
			out = nil
		}
	}()
	return n.processor.Process(ctx, input)
}

func (n *Node) accumulateMetrics(input, output *batch.Batch) {
	if input != nil {
		n.metrics.AddInput(input.Len())
	}
	if output != nil {
		n.metrics.AddOutput(output.Len())
	}
}

// shapeCheck implements spec.md §4.E.3 step 7.
func (n *Node) shapeCheck(input, output *batch.Batch) error {
	if output == nil && len(n.outputNames) > 0 {
		return perr.ErrNodeOutputMismatch
	}
	if output != nil && len(n.outputNames) == 0 && !output.IsLast() {
		return perr.ErrNodeOutputMismatch
	}
	if input != nil && output != nil {
		if input.IsOK() && output.IsLast() {
			return perr.ErrBatchStatusMismatch
		}
		if input.IsLast() && output.IsOK() {
			return perr.ErrBatchStatusMismatch
		}
	}
	return nil
}

// publish fans a Batch reference out to every output queue (spec.md
// §4.E.3 step 8, §3's "shallow fan-out").
func (n *Node) publish(ctx context.Context, b *batch.Batch) error {
	for _, q := range n.outputs {
		if err := q.Put(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// applyRetryPolicy implements spec.md §4.E.5.
func (n *Node) applyRetryPolicy(ctx context.Context, input *batch.Batch, cause error) bool {
	retries := 0
	restarts := 0
	for {
		retries++
		if retries <= n.maxRetries {
			out, err := n.invoke(ctx, input)
			if err == nil && !out.IsError() {
				if pubErr := n.publish(ctx, out); pubErr != nil {
					n.logger.Error().Err(pubErr).Msg("publish failed during retry")
					n.terminate()
					return true
				}
				return false
			}
			continue
		}

		restarts++
		if restarts <= n.maxRestarts {
			if c, ok := n.processor.(Closer); ok {
				if cerr := c.Close(); cerr != nil {
					n.logger.Warn().Err(cerr).Msg("processor close failed during restart")
				}
			}
			if p, ok := n.processor.(PostIniter); ok {
				if piErr := p.PostInit(); piErr != nil {
					n.logger.Error().Err(piErr).Msg("processor post-init failed during restart")
					n.terminate()
					return true
				}
			}
			retries = 0
			continue
		}

		n.logger.Error().Err(cause).Msg("retry/restart budget exhausted")
		n.terminate()
		return true
	}
}
