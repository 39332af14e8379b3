package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryHasCommonClasses(t *testing.T) {
	r := newRegistry()
	for _, class := range []string{"Get", "Group", "Ungroup", "LiteralSource", "LogSink"} {
		_, err := r.Lookup(class)
		assert.NoError(t, err, class)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestValidateCmdAcceptsLinearPipeline(t *testing.T) {
	path := writeConfig(t, `
nodes:
  - name: src
    cls: LiteralSource
    type: TASK
    output: out
    count: 2
  - name: sink
    cls: LogSink
    type: TASK
    input: out
`)
	require.NoError(t, validateCmd.Flags().Set("config", path))
	err := validateCmd.RunE(validateCmd, nil)
	assert.NoError(t, err)
}

func TestValidateCmdRejectsUnknownClass(t *testing.T) {
	path := writeConfig(t, `
nodes:
  - name: mystery
    cls: DoesNotExist
    type: TASK
`)
	require.NoError(t, validateCmd.Flags().Set("config", path))
	err := validateCmd.RunE(validateCmd, nil)
	assert.Error(t, err)
}

func TestValidateCmdRejectsDanglingPort(t *testing.T) {
	path := writeConfig(t, `
nodes:
  - name: src
    cls: LiteralSource
    type: TASK
    output: out
    count: 1
`)
	require.NoError(t, validateCmd.Flags().Set("config", path))
	err := validateCmd.RunE(validateCmd, nil)
	assert.Error(t, err)
}
