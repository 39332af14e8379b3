// Package registry maps configuration-record class names to node
// constructors, so a pipeline can be described entirely in data
// (YAML) rather than Go source. Grounded on
// original_source/pipez/core/registry.py's decoration-based registry
// (`@Registry.add`), re-architected per spec.md §9's design note as an
// explicitly-constructed collaborator instead of a class-level
// singleton.
package registry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/flowrunner/pkg/memory"
	"github.com/cuemby/flowrunner/pkg/node"
	"github.com/cuemby/flowrunner/pkg/perr"
)

// Args is a hydration record's constructor arguments: every key of the
// configuration record besides cls/type/input/output.
type Args map[string]any

// String returns args[key] as a string, or def if absent/wrong type.
func (a Args) String(key, def string) string {
	if v, ok := a[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Int returns args[key] as an int, or def if absent/wrong type.
func (a Args) Int(key string, def int) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Strings returns args[key] as a []string, accepting a single string, a
// []string, or a []any of strings — the same shapes canonicalize
// handles for port declarations, reused here for node arguments that
// name a list of record keys (e.g. nodes/common's Get/Ungroup).
func (a Args) Strings(key string) []string {
	return canonicalize(a[key])
}

// Duration returns args[key] parsed as a Go duration string, or def.
func (a Args) Duration(key string, def time.Duration) time.Duration {
	s, ok := a[key].(string)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Constructor builds a Processor from a hydration record's arguments.
type Constructor func(args Args) (node.Processor, error)

// Registry is the process-wide class-name to constructor map. Callers
// normally hold one instance for the lifetime of a pipeline run,
// constructed once at startup rather than reached through a global.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register associates name with a Constructor. A second Register call
// for the same name overwrites the first, matching the Python
// decorator's "last definition wins" behavior.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

// Lookup resolves name to its Constructor. Returns perr.ErrUnknownClass
// if name was never registered.
func (r *Registry) Lookup(name string) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", perr.ErrUnknownClass, name)
	}
	return ctor, nil
}

// Record is one configuration-record entry in a pipeline definition
// (spec.md §6's "configuration record" external interface).
type Record struct {
	Name    string `yaml:"name"`
	Class   string `yaml:"cls"`
	Type    string `yaml:"type"`
	Input   any    `yaml:"input"`
	Output  any    `yaml:"output"`
	Timeout string `yaml:"timeout"`
	Retries int    `yaml:"max_retries"`
	Restart int    `yaml:"max_restarts"`
	Collect string `yaml:"collector_key"`
	Args    map[string]any `yaml:",inline"`
}

// Hydrate consumes a Record and produces a Node configured and bound
// to a freshly constructed Processor, per spec.md §4.I. Queues are not
// attached here — that is the pipeline builder's job, once every
// node's ports are known.
func Hydrate(r *Registry, rec Record, shared memory.Shared) (*node.Node, error) {
	if rec.Class == "" {
		return nil, fmt.Errorf("%w: record missing cls", perr.ErrInvalidPipelineSpec)
	}
	ctor, err := r.Lookup(rec.Class)
	if err != nil {
		return nil, err
	}

	isolation, err := parseIsolation(rec.Type)
	if err != nil {
		return nil, err
	}

	proc, err := ctor(rec.Args)
	if err != nil {
		return nil, fmt.Errorf("constructing %q: %w", rec.Class, err)
	}

	name := rec.Name
	if name == "" {
		name = rec.Class
	}

	var timeout time.Duration
	if rec.Timeout != "" {
		timeout, err = time.ParseDuration(rec.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timeout %q", perr.ErrInvalidPipelineSpec, rec.Timeout)
		}
	}

	cfg := node.Config{
		Name:         name,
		Isolation:    isolation,
		Inputs:       canonicalize(rec.Input),
		Outputs:      canonicalize(rec.Output),
		Timeout:      timeout,
		MaxRetries:   rec.Retries,
		MaxRestarts:  rec.Restart,
		CollectorKey: rec.Collect,
	}
	return node.New(cfg, proc, shared), nil
}

func parseIsolation(t string) (node.Isolation, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", "thread", "task":
		return node.Task, nil
	case "process":
		return node.Process, nil
	default:
		return 0, fmt.Errorf("%w: unknown isolation type %q", perr.ErrInvalidPipelineSpec, t)
	}
}

// canonicalize normalizes spec.md §6's "absent | string | list of
// strings" port declaration to a []string.
func canonicalize(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
