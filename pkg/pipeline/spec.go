// Package pipeline implements the builder: it turns an ordered list of
// hydrated nodes (or, via FromConfig, a YAML configuration document)
// into a running pipeline — queues allocated and wired, nodes started
// in declared order, the supervisor and liveness monitor attached.
// Launching the optional metrics web server is left to the caller
// (see pkg/metricsapi). Grounded on
// pkg/manager/manager.go's NewManager wiring sequence: construct
// collaborators in dependency order, fail fast on the first one that
// cannot be built.
package pipeline

import (
	"fmt"
	"os"

	"github.com/cuemby/flowrunner/pkg/liveness"
	"github.com/cuemby/flowrunner/pkg/registry"
	"gopkg.in/yaml.v3"
)

// Spec is the top-level YAML document describing a pipeline run
// (spec.md §6's "configuration record" list, plus the ambient options
// this runtime needs beyond the distilled spec: queue capacity and an
// optional liveness profile).
type Spec struct {
	Nodes          []registry.Record `yaml:"nodes"`
	QueueCapacity  int               `yaml:"queue_capacity"`
	MetricsAddr    string            `yaml:"metrics_addr"`
	LivenessProfile string           `yaml:"liveness_profile"`
}

// LoadSpec reads and parses a pipeline YAML document from path.
func LoadSpec(path string) (*Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: reading config: %w", err)
	}
	var s Spec
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("pipeline: parsing config: %w", err)
	}
	return &s, nil
}

// livenessProfile resolves the spec's configured profile name, empty
// meaning "no liveness monitor."
func (s *Spec) livenessProfile() (liveness.Profile, bool) {
	switch s.LivenessProfile {
	case "":
		return "", false
	case string(liveness.VMProfile):
		return liveness.VMProfile, true
	default:
		return liveness.ContainerProfile, true
	}
}
