package registry

import (
	"context"
	"testing"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopProcessor struct{}

func (noopProcessor) Process(context.Context, *batch.Batch) (*batch.Batch, error) { return nil, nil }

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	r.Register("Echo", func(Args) (node.Processor, error) { return noopProcessor{}, nil })

	ctor, err := r.Lookup("Echo")
	require.NoError(t, err)
	proc, err := ctor(nil)
	require.NoError(t, err)
	assert.IsType(t, noopProcessor{}, proc)
}

func TestLookupUnknownClass(t *testing.T) {
	r := New()
	_, err := r.Lookup("DoesNotExist")
	assert.ErrorContains(t, err, "unknown class")
}

func TestHydrateRoundTrip(t *testing.T) {
	r := New()
	r.Register("Echo", func(Args) (node.Processor, error) { return noopProcessor{}, nil })

	rec := Record{
		Class:  "Echo",
		Type:   "process",
		Input:  "in",
		Output: []any{"out1", "out2"},
	}
	n, err := Hydrate(r, rec, nil)
	require.NoError(t, err)

	assert.Equal(t, node.Process, n.Isolation())
	assert.Equal(t, []string{"in"}, n.Inputs())
	assert.Equal(t, []string{"out1", "out2"}, n.Outputs())
}

func TestHydrateMissingClassFails(t *testing.T) {
	r := New()
	_, err := Hydrate(r, Record{}, nil)
	assert.ErrorContains(t, err, "invalid pipeline spec")
}

func TestArgsStrings(t *testing.T) {
	a := Args{"one": "x", "many": []any{"a", "b"}}
	assert.Equal(t, []string{"x"}, a.Strings("one"))
	assert.Equal(t, []string{"a", "b"}, a.Strings("many"))
	assert.Nil(t, a.Strings("missing"))
}

func TestHydrateUnknownIsolationFails(t *testing.T) {
	r := New()
	r.Register("Echo", func(Args) (node.Processor, error) { return noopProcessor{}, nil })
	_, err := Hydrate(r, Record{Class: "Echo", Type: "bogus"}, nil)
	assert.ErrorContains(t, err, "invalid pipeline spec")
}
