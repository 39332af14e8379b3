// Package liveness implements the last-resort watchdog for a stalled
// supervisor: a PROCESS-isolated node that reads the supervisor's
// heartbeat key and kills the root process if it goes stale past a
// configured threshold (spec.md §4.H). Grounded on pkg/reconciler's
// heartbeat-staleness detection (reconcileNodes' "no heartbeat in 30s"
// check) and pkg/health's check-then-decide Checker shape.
package liveness

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/log"
	"github.com/cuemby/flowrunner/pkg/memory"
	"github.com/cuemby/flowrunner/pkg/supervisor"
	"github.com/rs/zerolog"
)

// Profile names a staleness threshold, mirroring spec.md §4.H's
// "120s or 600s depending on profile."
type Profile string

const (
	ContainerProfile Profile = "container"
	VMProfile        Profile = "vm"
)

// Threshold returns the named profile's staleness limit, defaulting to
// the container profile for any unrecognized name.
func (p Profile) Threshold() time.Duration {
	switch p {
	case VMProfile:
		return 600 * time.Second
	default:
		return 120 * time.Second
	}
}

// killer abstracts the root-process kill so tests can observe the
// decision without sending a real signal.
type killer func(pid int) error

func defaultKiller(pid int) error {
	return syscall.Kill(pid, syscall.SIGTERM)
}

// Monitor is the Processor driving the liveness node. It carries no
// input or output ports; PID is the target to signal when the
// supervisor's heartbeat goes stale — normally os.Getppid(), captured
// at construction time in the child process spawned for this node.
type Monitor struct {
	shared    memory.Shared
	threshold time.Duration
	pid       int
	kill      killer

	logger zerolog.Logger
}

// New constructs a Monitor targeting pid (normally os.Getppid(), since
// this node always runs PROCESS-isolated as a child of the pipeline
// root) with the named profile's staleness threshold.
func New(shared memory.Shared, profile Profile, pid int) *Monitor {
	return &Monitor{
		shared:    shared,
		threshold: profile.Threshold(),
		pid:       pid,
		kill:      defaultKiller,
		logger:    log.WithComponent("liveness"),
	}
}

// Process implements spec.md §4.H: read the heartbeat, compare its age
// against the threshold, kill the root process if stale. Returns an
// error only when the heartbeat read fails, and nil, nil otherwise
// (this node never completes on its own; its child process is killed
// when the pipeline run ends, or by an external shutdown).
func (m *Monitor) Process(ctx context.Context, _ *batch.Batch) (*batch.Batch, error) {
	v, ok, err := m.shared.Get(ctx, supervisor.HeartbeatKey)
	if err != nil {
		return nil, fmt.Errorf("liveness: heartbeat read failed: %w", err)
	}
	if !ok {
		// No heartbeat has ever been written yet — give the supervisor
		// time to start rather than killing on a cold start race.
		return nil, nil
	}

	unixSeconds, ok := v.(int64)
	if !ok {
		return nil, nil
	}

	age := time.Since(time.Unix(unixSeconds, 0))
	if age <= m.threshold {
		return nil, nil
	}

	m.logger.Error().
		Dur("age", age).
		Dur("threshold", m.threshold).
		Int("pid", m.pid).
		Msg("supervisor heartbeat stale, killing root process")
	if err := m.kill(m.pid); err != nil {
		m.logger.Error().Err(err).Msg("failed to signal root process")
	}
	return nil, nil
}

// ParentPID is a small convenience wrapper so cmd/flowctl's __liveness
// does not need to import os directly just to pass it to New.
func ParentPID() int { return os.Getppid() }
