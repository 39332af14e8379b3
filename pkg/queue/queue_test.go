package queue

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/flowrunner/pkg/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntraPutGetFIFO(t *testing.T) {
	q := NewIntra("a", 4)
	ctx := context.Background()

	b1 := batch.OKBatch(batch.Record{"x": 1})
	b2 := batch.OKBatch(batch.Record{"x": 2})
	require.NoError(t, q.Put(ctx, b1))
	require.NoError(t, q.Put(ctx, b2))
	assert.Equal(t, 2, q.Len())

	got1, err := q.Get(ctx)
	require.NoError(t, err)
	got2, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, b1, got1)
	assert.Same(t, b2, got2)
	assert.True(t, q.Empty())
}

func TestIntraPendingCountBounded(t *testing.T) {
	const capacity = 3
	q := NewIntra("bounded", capacity)
	ctx := context.Background()
	for i := 0; i < capacity; i++ {
		require.NoError(t, q.Put(ctx, batch.OKBatch()))
		assert.GreaterOrEqual(t, q.Len(), 0)
		assert.LessOrEqual(t, q.Len(), capacity)
	}

	done := make(chan struct{})
	go func() {
		_ = q.Put(ctx, batch.OKBatch())
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Put on a full queue should block")
	case <-time.After(20 * time.Millisecond):
	}
	_, err := q.Get(ctx)
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Put should unblock once space frees")
	}
}

func TestIntraCloseUnblocksGet(t *testing.T) {
	q := NewIntra("c", 1)
	errc := make(chan error, 1)
	go func() {
		_, err := q.Get(context.Background())
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case err := <-errc:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Get did not unblock after Close")
	}
}

func TestIntraCloseIsIdempotent(t *testing.T) {
	q := NewIntra("d", 1)
	assert.NotPanics(t, func() {
		q.Close()
		q.Close()
	})
}
