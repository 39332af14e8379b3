// Package supervisor implements the Watchdog node: a heartbeat writer
// and global-shutdown decision-maker, itself a node.Node subject to
// the same lifecycle as every other node in the pipeline (spec.md
// §4.G). Grounded on pkg/reconciler's fixed-interval reconciliation
// loop (there: 10s cluster reconciliation; here: ~1s heartbeat) and
// pkg/health's check-then-decide shape.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/log"
	"github.com/cuemby/flowrunner/pkg/memory"
	"github.com/cuemby/flowrunner/pkg/node"
	"github.com/rs/zerolog"
)

// HeartbeatKey is the well-known SharedMemory key the Watchdog writes
// the current wall time under on every iteration (spec.md §6).
const HeartbeatKey = "time"

// Watchdog is the Processor driving the supervisor node: it has no
// input or output ports, so every Process call receives a nil input
// and is invoked purely on its timeout tick.
type Watchdog struct {
	shared  memory.Shared
	managed []*node.Node
	logger  zerolog.Logger
}

func NewWatchdog(shared memory.Shared, managed []*node.Node) *Watchdog {
	return &Watchdog{
		shared:  shared,
		managed: managed,
		logger:  log.WithComponent("supervisor"),
	}
}

// Process implements spec.md §4.G's four-step decision, run once per
// ~1s iteration by the node loop that owns this Processor.
func (w *Watchdog) Process(ctx context.Context, _ *batch.Batch) (*batch.Batch, error) {
	if err := w.shared.Set(ctx, HeartbeatKey, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("supervisor: heartbeat write failed: %w", err)
	}

	allCompleted := true
	anyTerminated := false
	for _, n := range w.managed {
		switch n.Status() {
		case node.Completed:
		case node.Terminated:
			anyTerminated = true
			allCompleted = false
		default:
			allCompleted = false
		}
	}

	if allCompleted {
		w.logger.Info().Msg("all nodes completed, supervisor shutting down")
		return batch.LastBatch(), nil
	}

	if anyTerminated {
		w.logger.Warn().Msg("a node terminated, draining pipeline")
		for _, n := range w.managed {
			w.logger.Info().Str("node", n.Name()).Msg("draining node")
			n.Drain()
		}
		return batch.LastBatch(), nil
	}

	return nil, nil
}
