package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/ipc"
	"github.com/cuemby/flowrunner/pkg/log"
	"github.com/cuemby/flowrunner/pkg/memory"
	"github.com/cuemby/flowrunner/pkg/node"
	"github.com/cuemby/flowrunner/pkg/queue"
	"github.com/cuemby/flowrunner/pkg/registry"
	"github.com/cuemby/flowrunner/pkg/supervisor"
	"github.com/google/uuid"
)

// noopProcessor satisfies node.Processor for the parent-side handle of
// the liveness monitor. Its Process method is never invoked: a
// ProcessWorker replaces the node's runLoop entirely, driving a
// separate child-process Node instance instead.
type noopProcessor struct{}

func (noopProcessor) Process(context.Context, *batch.Batch) (*batch.Batch, error) {
	return nil, nil
}

// Pipeline is a fully wired, running (or ready-to-run) collection of
// nodes sharing one ipc.Server as their process-wide memory and queue
// home.
type Pipeline struct {
	home   *ipc.Server
	shared memory.Shared

	nodes      []*node.Node
	supervisor *node.Node
	liveness   *node.Node

	metricsAddr string
	runID       string
}

// Nodes returns the regular (non-supervisor, non-liveness) nodes, in
// declared order — used by pkg/metricsapi for its snapshot.
func (p *Pipeline) Nodes() []*node.Node { return p.nodes }

// Shared exposes the process-wide map, e.g. for a metrics endpoint
// wanting to read the supervisor's heartbeat.
func (p *Pipeline) Shared() memory.Shared { return p.shared }

// RunID returns the identifier generated for this Pipeline when it was
// built — a correlation handle for log lines, since
// nothing about a Spec itself names one run apart from another.
func (p *Pipeline) RunID() string { return p.runID }

// Build implements spec.md §4.F's 7-step procedure over an
// already-resolved registry and Spec. FromConfig is the usual entry
// point; Build is exposed directly for callers (tests, embedders) that
// already have a Spec in hand.
func Build(r *registry.Registry, spec *Spec) (*Pipeline, error) {
	capacity := spec.QueueCapacity
	if capacity <= 0 {
		capacity = queue.DefaultCapacity
	}

	home, err := ipc.Listen("127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("pipeline: starting ipc server: %w", err)
	}
	shared := memory.NewSharedInProcess(home.KV)

	nodes := make([]*node.Node, 0, len(spec.Nodes))
	recByName := make(map[string]registry.Record, len(spec.Nodes))
	for _, rec := range spec.Nodes {
		n, err := registry.Hydrate(r, rec, shared)
		if err != nil {
			home.Stop()
			return nil, fmt.Errorf("pipeline: hydrating node %q: %w", rec.Name, err)
		}
		if n.Isolation() == node.Process {
			n.EnableRemoteStatus(statusKey(n.Name()))
		}
		recByName[n.Name()] = normalizedRecord(rec, n.Name())
		nodes = append(nodes, n)
	}

	ports := collectPorts(nodes)
	if err := validatePorts(ports); err != nil {
		home.Stop()
		return nil, err
	}

	intraCache := make(map[string]*queue.Intra)
	for _, n := range nodes {
		if n.Isolation() == node.Process {
			continue
		}
		for _, name := range n.Inputs() {
			n.AttachInput(resolveQueue(home.Queues, ports, intraCache, name, capacity))
		}
		for _, name := range n.Outputs() {
			n.AttachOutput(resolveQueue(home.Queues, ports, intraCache, name, capacity))
		}
	}

	binary, err := selfBinary()
	for _, n := range nodes {
		if n.Isolation() != node.Process {
			continue
		}
		if err != nil {
			home.Stop()
			return nil, err
		}
		cmd, cerr := nodeCmd(binary, home.Addr(), recByName[n.Name()])
		if cerr != nil {
			home.Stop()
			return nil, cerr
		}
		n.SetWorker(node.NewProcessWorker(n.Name(), cmd))
	}

	watchdog := supervisor.NewWatchdog(shared, nodes)
	supNode := node.New(node.Config{Name: "supervisor", Timeout: time.Second}, watchdog, shared)

	p := &Pipeline{
		home:        home,
		shared:      shared,
		nodes:       nodes,
		supervisor:  supNode,
		metricsAddr: spec.MetricsAddr,
		runID:       uuid.NewString(),
	}

	if profile, ok := spec.livenessProfile(); ok {
		if binary == "" {
			b, berr := selfBinary()
			if berr != nil {
				home.Stop()
				return nil, berr
			}
			binary = b
		}
		cmd := livenessCmd(binary, home.Addr(), string(profile))
		livNode := node.New(node.Config{Name: "liveness", Isolation: node.Process}, noopProcessor{}, shared)
		livNode.SetWorker(node.NewProcessWorker("liveness", cmd))
		p.liveness = livNode
	}

	return p, nil
}

// FromConfig loads a Spec from path and builds a Pipeline from it.
func FromConfig(r *registry.Registry, path string) (*Pipeline, error) {
	spec, err := LoadSpec(path)
	if err != nil {
		return nil, err
	}
	return Build(r, spec)
}

// statusKey is the SharedMemory key a PROCESS node's child mirrors its
// status into, and the parent-side handle reads back (pkg/node's
// EnableRemoteStatus).
func statusKey(name string) string {
	return "node:" + name + ":status"
}

// normalizedRecord returns rec with Name guaranteed non-empty, matching
// the name registry.Hydrate already assigned its Node (rec.Class when
// rec.Name was blank) — the child process must hydrate under the same
// name the parent observed, since status mirroring keys off it.
func normalizedRecord(rec registry.Record, resolvedName string) registry.Record {
	rec.Name = resolvedName
	return rec
}

// resolveQueue returns the Queue instance a node should attach for
// port name, reusing a single INTRA queue.Intra (a genuine shared
// channel) across every referencing endpoint, and a fresh
// queue.HomeBound wrapper (a thin handle onto the home's one buffered
// channel, per ipc.QueueHome.Register's memoization) for INTER ports.
func resolveQueue(home *ipc.QueueHome, ports map[string]*portRefs, intraCache map[string]*queue.Intra, name string, capacity int) queue.Queue {
	if ports[name].flavor() == queue.INTER {
		return queue.NewHomeBound(home, name, capacity)
	}
	q, ok := intraCache[name]
	if !ok {
		q = queue.NewIntra(name, capacity)
		intraCache[name] = q
	}
	return q
}

// Run starts every regular node in declared order (spec.md §4.F step
// 5), then the supervisor (step 6), then the liveness monitor if
// configured, then optionally the metrics web server (step 7, left to
// the caller — see pkg/metricsapi).
func (p *Pipeline) Run() error {
	for _, n := range p.nodes {
		if err := n.Start(); err != nil {
			return fmt.Errorf("pipeline: starting node %q: %w", n.Name(), err)
		}
	}
	if err := p.supervisor.Start(); err != nil {
		return fmt.Errorf("pipeline: starting supervisor: %w", err)
	}
	if p.liveness != nil {
		if err := p.liveness.Start(); err != nil {
			return fmt.Errorf("pipeline: starting liveness monitor: %w", err)
		}
	}
	log.WithComponent("pipeline").Info().Str("run_id", p.runID).Int("nodes", len(p.nodes)).Msg("pipeline run started")
	return nil
}

// Shutdown forces every regular node to TERMINATED (node.Drain is
// idempotent and non-blocking), giving the supervisor's next tick
// something to act on. Used by cmd/flowctl's run command when an OS
// interrupt arrives mid-run, since nothing else can unblock Wait.
func (p *Pipeline) Shutdown() {
	for _, n := range p.nodes {
		n.Drain()
	}
}

// Wait blocks until the supervisor finalizes the run (either every
// node completed, or it drained the pipeline after a termination),
// then tears down the liveness monitor (which otherwise has no natural
// end) and the ipc server.
func (p *Pipeline) Wait() {
	p.supervisor.Join()
	if p.liveness != nil {
		p.liveness.Drain()
		// The liveness monitor has no self-termination path (it polls
		// forever by design); once the pipeline is done, its child
		// process must be force-killed rather than waited on.
		if pw, ok := p.liveness.Worker().(*node.ProcessWorker); ok {
			_ = pw.Kill()
		}
		p.liveness.Join()
	}
	p.home.Stop()
	log.WithComponent("pipeline").Info().Str("run_id", p.runID).Msg("pipeline run complete")
}
