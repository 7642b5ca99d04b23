package devnode

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/confidential-voting/voting-deployer/internal/network"
)

type fakeEngine struct {
	imagePresent bool
	container    *ContainerState
	calls        []string
	created      []ContainerSpec
	copiedTo     []string
	stateOut     []byte
}

func (e *fakeEngine) ImageExists(context.Context, string) (bool, error) {
	e.calls = append(e.calls, "image-exists")
	return e.imagePresent, nil
}

func (e *fakeEngine) PullImage(context.Context, string) error {
	e.calls = append(e.calls, "pull")
	e.imagePresent = true
	return nil
}

func (e *fakeEngine) InspectContainer(context.Context, string) (ContainerState, bool, error) {
	if e.container == nil {
		return ContainerState{}, false, nil
	}
	return *e.container, true, nil
}

func (e *fakeEngine) CreateContainer(_ context.Context, spec ContainerSpec) (string, error) {
	e.calls = append(e.calls, "create")
	e.created = append(e.created, spec)
	e.container = &ContainerState{ID: "c1", Status: "created"}
	return "c1", nil
}

func (e *fakeEngine) StartContainer(context.Context, string) error {
	e.calls = append(e.calls, "start")
	e.container.Running = true
	e.container.Status = "running"
	return nil
}

func (e *fakeEngine) StopContainer(context.Context, string, time.Duration) error {
	e.calls = append(e.calls, "stop")
	e.container.Running = false
	e.container.Status = "exited"
	return nil
}

func (e *fakeEngine) RemoveContainer(context.Context, string) error {
	e.calls = append(e.calls, "remove")
	e.container = nil
	return nil
}

func (e *fakeEngine) CopyFileTo(_ context.Context, _, hostPath, containerDir string) error {
	e.calls = append(e.calls, "copy-to")
	e.copiedTo = append(e.copiedTo, hostPath+"->"+containerDir)
	return nil
}

func (e *fakeEngine) CopyFileFrom(_ context.Context, _, containerPath, hostDir string) (bool, error) {
	e.calls = append(e.calls, "copy-from")
	if e.stateOut == nil {
		return false, nil
	}
	return true, os.WriteFile(filepath.Join(hostDir, filepath.Base(containerPath)), e.stateOut, 0o644)
}

// readyAfter fails the first n probes.
type readyAfter struct {
	n      int
	probes int
}

func (p *readyAfter) Probe(_ context.Context, endpoint network.Endpoint) (*network.Session, error) {
	p.probes++
	if p.probes <= p.n {
		return nil, errors.New("connection refused")
	}
	return &network.Session{Endpoint: endpoint, ChainID: new(big.Int).SetUint64(endpoint.ExpectedChainID), BlockNumber: 7}, nil
}

func devNodeConfig(t *testing.T) configs.DevNode {
	t.Helper()
	return configs.DevNode{
		Image:         "ghcr.io/foundry-rs/foundry:stable",
		ContainerName: "voting-devnode-test",
		Port:          18545,
		ChainID:       31337,
		StateDir:      t.TempDir(),
	}
}

func newTestService(engine *fakeEngine, prober prober) *Service {
	service := NewService(engine, prober)
	service.pollInterval = time.Millisecond
	service.readyTimeout = time.Second
	return service
}

func TestStartPullsCreatesAndWaitsForRPC(t *testing.T) {
	cfg := devNodeConfig(t)
	engine := &fakeEngine{}
	prober := &readyAfter{n: 2}

	status, err := newTestService(engine, prober).Start(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"image-exists", "pull", "create", "start"}, engine.calls)
	require.Len(t, engine.created, 1)
	spec := engine.created[0]
	assert.Equal(t, cfg.ContainerName, spec.Name)
	assert.Equal(t, 8545, spec.ContainerPort)
	assert.Equal(t, 18545, spec.HostPort)
	assert.Equal(t, "127.0.0.1", spec.HostIP)
	assert.Equal(t, []string{"anvil --host 0.0.0.0 --port 8545 --chain-id 31337 --state /tmp/anvil-state.json"}, spec.Cmd)

	assert.Equal(t, 3, prober.probes)
	assert.True(t, status.Healthy)
	assert.True(t, status.Running)
	assert.Equal(t, "http://127.0.0.1:18545", status.RPCURL)
	assert.Equal(t, int64(31337), status.ChainID.Int64())
	assert.Equal(t, uint64(7), status.BlockNumber)
}

func TestStartRestoresSavedState(t *testing.T) {
	cfg := devNodeConfig(t)
	statePath := filepath.Join(cfg.StateDir, "anvil-state.json")
	require.NoError(t, os.WriteFile(statePath, []byte(`{"block":{}}`), 0o644))
	engine := &fakeEngine{imagePresent: true}

	_, err := newTestService(engine, &readyAfter{}).Start(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"image-exists", "create", "copy-to", "start"}, engine.calls)
	assert.Equal(t, []string{statePath + "->/tmp"}, engine.copiedTo)
}

func TestStartLeavesRunningNodeAlone(t *testing.T) {
	cfg := devNodeConfig(t)
	engine := &fakeEngine{container: &ContainerState{ID: "c0", Status: "running", Running: true}}

	status, err := newTestService(engine, &readyAfter{}).Start(context.Background(), cfg)
	require.NoError(t, err)

	assert.Empty(t, engine.calls)
	assert.Equal(t, "c0", status.ContainerID)
}

func TestStartReplacesStoppedNode(t *testing.T) {
	cfg := devNodeConfig(t)
	cfg.StateDir = ""
	engine := &fakeEngine{imagePresent: true, container: &ContainerState{ID: "c0", Status: "exited"}}

	_, err := newTestService(engine, &readyAfter{}).Start(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"remove", "image-exists", "create", "start"}, engine.calls)
	assert.Equal(t, []string{"anvil --host 0.0.0.0 --port 8545 --chain-id 31337"}, engine.created[0].Cmd)
}

func TestStartTimesOutWhenRPCNeverAnswers(t *testing.T) {
	cfg := devNodeConfig(t)
	service := newTestService(&fakeEngine{imagePresent: true}, &readyAfter{n: 1 << 30})
	service.readyTimeout = 20 * time.Millisecond

	_, err := service.Start(context.Background(), cfg)
	require.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	engine := &fakeEngine{}

	_, err := newTestService(engine, &readyAfter{}).Start(context.Background(), configs.DevNode{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "devnode.image is required")
	assert.Empty(t, engine.calls)
}

func TestStopSavesStateAndRemoves(t *testing.T) {
	cfg := devNodeConfig(t)
	engine := &fakeEngine{
		container: &ContainerState{ID: "c1", Status: "running", Running: true},
		stateOut:  []byte(`{"saved":true}`),
	}

	removed, err := newTestService(engine, &readyAfter{}).Stop(context.Background(), cfg)
	require.NoError(t, err)

	assert.True(t, removed)
	assert.Equal(t, []string{"stop", "copy-from", "remove"}, engine.calls)
	saved, err := os.ReadFile(filepath.Join(cfg.StateDir, "anvil-state.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"saved":true}`, string(saved))
}

func TestStopAbsentContainerIsNotAnError(t *testing.T) {
	engine := &fakeEngine{}

	removed, err := newTestService(engine, &readyAfter{}).Stop(context.Background(), devNodeConfig(t))
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Empty(t, engine.calls)
}

func TestStatus(t *testing.T) {
	cfg := devNodeConfig(t)

	t.Run("absent", func(t *testing.T) {
		status, err := newTestService(&fakeEngine{}, &readyAfter{}).Status(context.Background(), cfg)
		require.NoError(t, err)
		assert.False(t, status.Running)
		assert.Equal(t, "absent", status.State)
	})

	t.Run("running and healthy", func(t *testing.T) {
		engine := &fakeEngine{container: &ContainerState{ID: "c1", Status: "running", Running: true}}
		status, err := newTestService(engine, &readyAfter{}).Status(context.Background(), cfg)
		require.NoError(t, err)
		assert.True(t, status.Healthy)

		var out bytes.Buffer
		require.NoError(t, PrintStatus(&out, status))
		assert.Contains(t, out.String(), "ok (chain id 31337, block 7)")
	})

	t.Run("running but unreachable", func(t *testing.T) {
		engine := &fakeEngine{container: &ContainerState{ID: "c1", Status: "running", Running: true}}
		status, err := newTestService(engine, &readyAfter{n: 1}).Status(context.Background(), cfg)
		require.NoError(t, err)
		assert.False(t, status.Healthy)
		require.Error(t, status.Err)

		var out bytes.Buffer
		require.NoError(t, PrintStatus(&out, status))
		assert.Contains(t, out.String(), "unreachable: connection refused")
	})
}
