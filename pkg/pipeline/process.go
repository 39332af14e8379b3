package pipeline

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/cuemby/flowrunner/pkg/registry"
)

// selfBinary resolves the path to the currently running executable —
// the child process for a PROCESS-isolated node is always a re-exec of
// the same flowctl binary (spec.md §9's worker-as-interface note: a
// PROCESS node is not a different program, only a different address
// space).
func selfBinary() (string, error) {
	p, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("pipeline: resolving self binary: %w", err)
	}
	return p, nil
}

// encodeRecord serializes a hydration record to a single
// command-line-safe argument, so the child process can re-hydrate
// itself without sharing a config file path with the parent.
func encodeRecord(rec registry.Record) (string, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("pipeline: encoding record for %q: %w", rec.Name, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeRecord reverses encodeRecord; used by cmd/flowctl's __noderun
// subcommand.
func DecodeRecord(encoded string) (registry.Record, error) {
	var rec registry.Record
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return rec, fmt.Errorf("pipeline: decoding record: %w", err)
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("pipeline: unmarshaling record: %w", err)
	}
	return rec, nil
}

// nodeCmd builds the unstarted *exec.Cmd that launches one
// PROCESS-isolated node's child: `flowctl __noderun --addr <home> --record <b64>`.
func nodeCmd(binary, addr string, rec registry.Record) (*exec.Cmd, error) {
	encoded, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(binary, "__noderun", "--addr", addr, "--record", encoded)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	return cmd, nil
}

// livenessCmd builds the unstarted *exec.Cmd for the liveness monitor,
// which is always PROCESS-isolated (spec.md §4.H) and is not a
// registry-hydrated user node, so it gets its own hidden subcommand
// rather than going through __noderun.
func livenessCmd(binary, addr, profile string) *exec.Cmd {
	cmd := exec.Command(binary, "__liveness", "--addr", addr, "--profile", profile)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	return cmd
}
