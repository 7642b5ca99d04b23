package devnode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/confidential-voting/voting-deployer/internal/logger"
	"github.com/confidential-voting/voting-deployer/internal/network"
)

const (
	anvilPort      = 8545
	stateDir       = "/tmp"
	stateFile      = "anvil-state.json"
	managedLabel   = "voting-deployer.devnode"
	stopTimeout    = 10 * time.Second
	DefaultReady   = 30 * time.Second
	defaultPolling = time.Second
)

var ErrNotReady = errors.New("dev node did not become ready")

type (
	engine interface {
		ImageExists(ctx context.Context, imageName string) (bool, error)
		PullImage(ctx context.Context, imageName string) error
		InspectContainer(ctx context.Context, nameOrID string) (ContainerState, bool, error)
		CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
		StartContainer(ctx context.Context, id string) error
		StopContainer(ctx context.Context, id string, timeout time.Duration) error
		RemoveContainer(ctx context.Context, id string) error
		CopyFileTo(ctx context.Context, id, hostPath, containerDir string) error
		CopyFileFrom(ctx context.Context, id, containerPath, hostDir string) (bool, error)
	}

	prober interface {
		Probe(ctx context.Context, endpoint network.Endpoint) (*network.Session, error)
	}

	// Status describes the dev node container and whether its RPC answers.
	Status struct {
		Name        string
		ContainerID string
		State       string
		Running     bool
		RPCURL      string
		ChainID     *big.Int
		BlockNumber uint64
		Healthy     bool
		Err         error
	}
)

// Service manages a local anvil node in a docker container.
type Service struct {
	engine       engine
	prober       prober
	readyTimeout time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

func NewService(engine engine, prober prober) *Service {
	return &Service{
		engine:       engine,
		prober:       prober,
		readyTimeout: DefaultReady,
		pollInterval: defaultPolling,
		logger:       logger.Named("devnode_service"),
	}
}

// RPCURL is the host-side address of the dev node.
func RPCURL(cfg configs.DevNode) string {
	return fmt.Sprintf("http://127.0.0.1:%d", cfg.Port)
}

// AnvilCommand is the shell command run by the foundry image entrypoint.
func AnvilCommand(cfg configs.DevNode) string {
	args := []string{
		"anvil",
		"--host", "0.0.0.0",
		"--port", fmt.Sprint(anvilPort),
		"--chain-id", fmt.Sprint(cfg.ChainID),
	}
	if cfg.StateDir != "" {
		args = append(args, "--state", stateDir+"/"+stateFile)
	}
	return strings.Join(args, " ")
}

// Start brings the dev node up and waits for its RPC. A node that is already
// running is left alone; a stopped one is replaced.
func (s *Service) Start(ctx context.Context, cfg configs.DevNode) (*Status, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := s.logger.With("container", cfg.ContainerName).With("image", cfg.Image)

	existing, found, err := s.engine.InspectContainer(ctx, cfg.ContainerName)
	if err != nil {
		return nil, err
	}
	if found && existing.Running {
		log.Info("dev node already running")
		return s.waitReady(ctx, cfg, existing)
	}
	if found {
		log.With("state", existing.Status).Info("removing stopped dev node")
		if err := s.engine.RemoveContainer(ctx, existing.ID); err != nil {
			return nil, err
		}
	}

	if err := s.ensureImage(ctx, cfg.Image); err != nil {
		return nil, err
	}

	id, err := s.engine.CreateContainer(ctx, ContainerSpec{
		Name:          cfg.ContainerName,
		Image:         cfg.Image,
		Cmd:           []string{AnvilCommand(cfg)},
		ContainerPort: anvilPort,
		HostIP:        "127.0.0.1",
		HostPort:      cfg.Port,
		Labels:        map[string]string{managedLabel: "true"},
	})
	if err != nil {
		return nil, err
	}

	if err := s.restoreState(ctx, cfg, id); err != nil {
		return nil, err
	}

	if err := s.engine.StartContainer(ctx, id); err != nil {
		return nil, err
	}
	log.With("rpc", RPCURL(cfg)).Info("dev node started, waiting for RPC")

	return s.waitReady(ctx, cfg, ContainerState{ID: id, Status: "running", Running: true})
}

// Stop stops and removes the dev node, saving its chain state first when a
// state dir is configured. It reports whether a container existed.
func (s *Service) Stop(ctx context.Context, cfg configs.DevNode) (bool, error) {
	existing, found, err := s.engine.InspectContainer(ctx, cfg.ContainerName)
	if err != nil {
		return false, err
	}
	if !found {
		s.logger.With("container", cfg.ContainerName).Info("dev node is not present")
		return false, nil
	}

	if existing.Running {
		if err := s.engine.StopContainer(ctx, existing.ID, stopTimeout); err != nil {
			return true, err
		}
	}

	if err := s.saveState(ctx, cfg, existing.ID); err != nil {
		s.logger.With("err", err.Error()).Warn("failed to save dev node state")
	}

	if err := s.engine.RemoveContainer(ctx, existing.ID); err != nil {
		return true, err
	}

	s.logger.With("container", cfg.ContainerName).Info("dev node removed")
	return true, nil
}

// Status inspects the container and, when it runs, probes its RPC once.
func (s *Service) Status(ctx context.Context, cfg configs.DevNode) (*Status, error) {
	status := &Status{Name: cfg.ContainerName, RPCURL: RPCURL(cfg)}

	existing, found, err := s.engine.InspectContainer(ctx, cfg.ContainerName)
	if err != nil {
		return nil, err
	}
	if !found {
		status.State = "absent"
		return status, nil
	}

	status.ContainerID = existing.ID
	status.State = existing.Status
	status.Running = existing.Running
	if !existing.Running {
		return status, nil
	}

	session, err := s.prober.Probe(ctx, endpointOf(cfg))
	if err != nil {
		status.Err = err
		return status, nil
	}
	defer session.Close()

	status.Healthy = true
	status.ChainID = session.ChainID
	status.BlockNumber = session.BlockNumber
	return status, nil
}

func (s *Service) ensureImage(ctx context.Context, imageName string) error {
	exists, err := s.engine.ImageExists(ctx, imageName)
	if err != nil {
		return fmt.Errorf("failed to check image %s: %w", imageName, err)
	}
	if exists {
		return nil
	}
	return s.engine.PullImage(ctx, imageName)
}

func (s *Service) restoreState(ctx context.Context, cfg configs.DevNode, id string) error {
	if cfg.StateDir == "" {
		return nil
	}

	path := filepath.Join(cfg.StateDir, stateFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	s.logger.With("path", path).Info("restoring dev node state")
	return s.engine.CopyFileTo(ctx, id, path, stateDir)
}

func (s *Service) saveState(ctx context.Context, cfg configs.DevNode, id string) error {
	if cfg.StateDir == "" {
		return nil
	}
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", cfg.StateDir, err)
	}

	found, err := s.engine.CopyFileFrom(ctx, id, stateDir+"/"+stateFile, cfg.StateDir)
	if err != nil {
		return err
	}
	if found {
		s.logger.With("dir", cfg.StateDir).Info("dev node state saved")
	}
	return nil
}

// waitReady polls the RPC until it answers with the configured chain id.
func (s *Service) waitReady(ctx context.Context, cfg configs.DevNode, state ContainerState) (*Status, error) {
	ctx, cancel := context.WithTimeout(ctx, s.readyTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	endpoint := endpointOf(cfg)
	var lastErr error
	for {
		session, err := s.prober.Probe(ctx, endpoint)
		if err == nil {
			defer session.Close()
			return &Status{
				Name:        cfg.ContainerName,
				ContainerID: state.ID,
				State:       state.Status,
				Running:     true,
				RPCURL:      endpoint.URL,
				ChainID:     session.ChainID,
				BlockNumber: session.BlockNumber,
				Healthy:     true,
			}, nil
		}
		lastErr = err
		s.logger.With("err", err.Error()).Debug("dev node RPC not ready yet")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w at %s: %w", ErrNotReady, endpoint.URL, errors.Join(ctx.Err(), lastErr))
		case <-ticker.C:
		}
	}
}

func endpointOf(cfg configs.DevNode) network.Endpoint {
	return network.Endpoint{
		Name:            cfg.ContainerName,
		URL:             RPCURL(cfg),
		ExpectedChainID: uint64(cfg.ChainID),
	}
}
