package node

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskWorkerLifecycle(t *testing.T) {
	ran := make(chan struct{})
	w := NewTaskWorker(func() {
		close(ran)
	})
	require.NoError(t, w.Start())

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task worker function did not run")
	}
	w.Join()
	assert.False(t, w.Alive())
}

func TestProcessWorkerLifecycle(t *testing.T) {
	cmd := exec.Command("true")
	w := NewProcessWorker("test-proc", cmd)
	require.NoError(t, w.Start())
	w.Join()
	assert.False(t, w.Alive())
}
