package node

import (
	"os/exec"
	"sync"

	"github.com/cuemby/flowrunner/pkg/log"
)

// Worker is the single interface a Node drives regardless of
// isolation, per the design note in spec.md §9 ("present this as a
// single interface Worker{start; join; alive?}"): the node's iterate
// loop never branches on isolation except when attaching queues.
type Worker interface {
	Start() error
	Join()
	Alive() bool
}

// TaskWorker runs a Node's loop as a goroutine sharing this process's
// address space.
type TaskWorker struct {
	fn   func()
	done chan struct{}

	mu    sync.Mutex
	alive bool
}

// NewTaskWorker wraps fn (normally a Node's runLoop) for in-process
// execution.
func NewTaskWorker(fn func()) *TaskWorker {
	return &TaskWorker{fn: fn, done: make(chan struct{})}
}

func (w *TaskWorker) Start() error {
	w.mu.Lock()
	w.alive = true
	w.mu.Unlock()
	go func() {
		defer close(w.done)
		defer func() {
			w.mu.Lock()
			w.alive = false
			w.mu.Unlock()
		}()
		w.fn()
	}()
	return nil
}

func (w *TaskWorker) Join() {
	<-w.done
}

func (w *TaskWorker) Alive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alive
}

// ProcessWorker runs a Node's loop in a child OS process, used for
// PROCESS isolation — work that cannot share this address space
// (non-reentrant libraries, a crash that must not take the rest of
// the pipeline with it). The child is expected to be the same binary
// re-invoked with the hidden `__noderun` subcommand (see cmd/flowctl),
// grounded on pkg/embedded's containerd-child-process pattern rather
// than any container runtime — flowrunner has no image/runtime layer,
// only os/exec.
type ProcessWorker struct {
	cmd  *exec.Cmd
	name string

	mu    sync.Mutex
	alive bool
	done  chan struct{}
}

// NewProcessWorker wraps an unstarted *exec.Cmd (its Path/Args/Env
// already populated by the caller — normally the pipeline builder)
// for the named node.
func NewProcessWorker(name string, cmd *exec.Cmd) *ProcessWorker {
	return &ProcessWorker{name: name, cmd: cmd, done: make(chan struct{})}
}

func (w *ProcessWorker) Start() error {
	if err := w.cmd.Start(); err != nil {
		return err
	}
	w.mu.Lock()
	w.alive = true
	w.mu.Unlock()

	go func() {
		defer close(w.done)
		err := w.cmd.Wait()
		w.mu.Lock()
		w.alive = false
		w.mu.Unlock()
		logger := log.WithNode(w.name)
		if err != nil {
			logger.Warn().Err(err).Msg("node process exited with error")
		} else {
			logger.Debug().Msg("node process exited")
		}
	}()
	return nil
}

func (w *ProcessWorker) Join() {
	<-w.done
}

func (w *ProcessWorker) Alive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.alive
}

// Kill forcibly terminates the child process — used by Pipeline.Wait
// to stop the liveness monitor's child, which never exits on its own.
func (w *ProcessWorker) Kill() error {
	if w.cmd.Process == nil {
		return nil
	}
	return w.cmd.Process.Kill()
}
