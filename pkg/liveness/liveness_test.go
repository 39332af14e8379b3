package liveness

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/flowrunner/pkg/ipc"
	"github.com/cuemby/flowrunner/pkg/memory"
	"github.com/cuemby/flowrunner/pkg/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileThresholds(t *testing.T) {
	assert.Equal(t, 120*time.Second, ContainerProfile.Threshold())
	assert.Equal(t, 600*time.Second, VMProfile.Threshold())
	assert.Equal(t, 120*time.Second, Profile("bogus").Threshold())
}

func TestMonitorDoesNothingBeforeFirstHeartbeat(t *testing.T) {
	shared := memory.NewSharedInProcess(ipc.NewKVHome())
	m := New(shared, ContainerProfile, 1)

	killed := false
	m.kill = func(int) error { killed = true; return nil }

	_, err := m.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, killed)
}

func TestMonitorSparesFreshHeartbeat(t *testing.T) {
	shared := memory.NewSharedInProcess(ipc.NewKVHome())
	require.NoError(t, shared.Set(context.Background(), supervisor.HeartbeatKey, time.Now().Unix()))

	m := New(shared, ContainerProfile, 1)
	killed := false
	m.kill = func(int) error { killed = true; return nil }

	_, err := m.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, killed)
}

func TestMonitorKillsOnStaleHeartbeat(t *testing.T) {
	shared := memory.NewSharedInProcess(ipc.NewKVHome())
	stale := time.Now().Add(-200 * time.Second).Unix()
	require.NoError(t, shared.Set(context.Background(), supervisor.HeartbeatKey, stale))

	m := New(shared, ContainerProfile, 4242)
	var gotPID int
	m.kill = func(pid int) error { gotPID = pid; return nil }

	_, err := m.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 4242, gotPID)
}
