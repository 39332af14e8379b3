package pipeline

import (
	"fmt"

	"github.com/cuemby/flowrunner/pkg/node"
	"github.com/cuemby/flowrunner/pkg/perr"
	"github.com/cuemby/flowrunner/pkg/queue"
)

// portRefs tracks, for one port name, who reads and who writes it, and
// whether any referencing endpoint is PROCESS-isolated — the flavor
// decision of spec.md §4.F step 2 ("a single port used by mixed-
// isolation endpoints is INTER").
type portRefs struct {
	producers []*node.Node
	consumers []*node.Node
	anyProc   bool
}

func (p *portRefs) flavor() queue.Flavor {
	if p.anyProc {
		return queue.INTER
	}
	return queue.INTRA
}

// collectPorts implements spec.md §4.F steps 1-2: gather every
// referenced port name and its flavor.
func collectPorts(nodes []*node.Node) map[string]*portRefs {
	ports := make(map[string]*portRefs)

	ref := func(name string) *portRefs {
		p, ok := ports[name]
		if !ok {
			p = &portRefs{}
			ports[name] = p
		}
		return p
	}

	for _, n := range nodes {
		isProc := n.Isolation() == node.Process
		for _, name := range n.Outputs() {
			p := ref(name)
			p.producers = append(p.producers, n)
			p.anyProc = p.anyProc || isProc
		}
		for _, name := range n.Inputs() {
			p := ref(name)
			p.consumers = append(p.consumers, n)
			p.anyProc = p.anyProc || isProc
		}
	}
	return ports
}

// validatePorts implements spec.md §4.F's failure mode: a port
// declared but never usable on the other end is an invalid spec — a
// queue nobody writes to, or nobody reads from, can only deadlock or
// silently discard data.
func validatePorts(ports map[string]*portRefs) error {
	for name, p := range ports {
		if len(p.producers) == 0 {
			return fmt.Errorf("%w: port %q has a consumer but no producer", perr.ErrInvalidPipelineSpec, name)
		}
		if len(p.consumers) == 0 {
			return fmt.Errorf("%w: port %q has a producer but no consumer", perr.ErrInvalidPipelineSpec, name)
		}
	}
	return nil
}
