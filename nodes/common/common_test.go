package common

import (
	"context"
	"testing"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/cuemby/flowrunner/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectsKeys(t *testing.T) {
	p, err := NewGet(registry.Args{"keys": []any{"a", "c"}})
	require.NoError(t, err)

	in := batch.New(batch.OK, []batch.Record{{"a": 1, "b": 2, "c": 3}}, nil)
	out, err := p.Process(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, batch.Record{"a": 1, "c": 3}, out.At(0))
}

func TestUngroupThenGroupRoundTrips(t *testing.T) {
	ug, err := NewUngroup(registry.Args{"keys": []any{"detections"}, "main_key": "det"})
	require.NoError(t, err)

	in := batch.New(batch.OK, []batch.Record{
		{"detections": []any{"x", "y"}},
		{"detections": []any{"z"}},
	}, nil)
	ungrouped, err := ug.Process(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, 3, ungrouped.Len())
	assert.Equal(t, []int{0, 0, 1}, ungrouped.Meta()["idxs"])
	assert.Equal(t, 2, ungrouped.Meta()["batch_size"])

	g, err := NewGroup(registry.Args{"class_name": "dets"})
	require.NoError(t, err)
	grouped, err := g.Process(context.Background(), ungrouped)
	require.NoError(t, err)
	require.Equal(t, 2, grouped.Len())
	assert.Equal(t, []batch.Record{{"det": "x"}, {"det": "y"}}, grouped.At(0)["dets"])
	assert.Equal(t, []batch.Record{{"det": "z"}}, grouped.At(1)["dets"])
	_, hasIdxs := grouped.Meta()["idxs"]
	assert.False(t, hasIdxs)
}

func TestGroupFailsWithoutIdxsMetadata(t *testing.T) {
	g, err := NewGroup(registry.Args{"class_name": "dets"})
	require.NoError(t, err)
	in := batch.New(batch.OK, []batch.Record{{"x": 1}}, nil)
	_, err = g.Process(context.Background(), in)
	assert.Error(t, err)
}

func TestLiteralSourceThenLast(t *testing.T) {
	p, err := NewLiteralSource(registry.Args{"count": 3})
	require.NoError(t, err)

	first, err := p.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Len())

	second, err := p.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, second.IsLast())
}

func TestLogSinkIgnoresNonOK(t *testing.T) {
	p, err := NewLogSink(registry.Args{})
	require.NoError(t, err)
	out, err := p.Process(context.Background(), batch.ErrorBatch("boom"))
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRegisterAddsAllClasses(t *testing.T) {
	r := registry.New()
	Register(r)
	for _, class := range []string{"Get", "Group", "Ungroup", "LiteralSource", "LogSink"} {
		_, err := r.Lookup(class)
		assert.NoError(t, err, class)
	}
}
