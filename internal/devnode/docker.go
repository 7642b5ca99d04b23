package devnode

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/confidential-voting/voting-deployer/internal/logger"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/moby/go-archive"
)

type (
	// ContainerSpec describes the single-port container the dev node runs in.
	ContainerSpec struct {
		Name          string
		Image         string
		Cmd           []string
		ContainerPort int
		HostIP        string
		HostPort      int
		Labels        map[string]string
	}

	ContainerState struct {
		ID      string
		Status  string
		Running bool
	}
)

type Client struct {
	cli    *client.Client
	logger *slog.Logger
}

// NewClient creates a Docker client from the environment.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Client{cli: cli, logger: logger.Named("docker_client")}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// ImageExists checks if a Docker image exists locally.
func (c *Client) ImageExists(ctx context.Context, imageName string) (bool, error) {
	_, err := c.cli.ImageInspect(ctx, imageName)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// PullImage pulls an image and fails when the progress stream reports an error.
func (c *Client) PullImage(ctx context.Context, imageName string) error {
	c.logger.With("image", imageName).Info("pulling docker image")

	resp, err := c.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer resp.Close()

	scanner := bufio.NewScanner(resp)
	var pullError error
	for scanner.Scan() {
		line := scanner.Text()
		c.logger.Debug(line)

		var msg struct {
			Error       string `json:"error"`
			ErrorDetail struct {
				Message string `json:"message"`
			} `json:"errorDetail"`
		}
		if err := json.Unmarshal([]byte(line), &msg); err == nil && msg.Error != "" {
			pullError = fmt.Errorf("pull failed: %s", msg.Error)
			c.logger.With("err", msg.Error).Error("docker pull error")
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading pull output: %w", err)
	}
	if pullError != nil {
		return pullError
	}

	c.logger.With("image", imageName).Info("docker image pulled successfully")
	return nil
}

// InspectContainer looks a container up by name or id. The bool is false when
// no such container exists.
func (c *Client) InspectContainer(ctx context.Context, nameOrID string) (ContainerState, bool, error) {
	resp, err := c.cli.ContainerInspect(ctx, nameOrID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return ContainerState{}, false, nil
		}
		return ContainerState{}, false, fmt.Errorf("failed to inspect container %s: %w", nameOrID, err)
	}

	state := ContainerState{ID: resp.ID}
	if resp.State != nil {
		state.Status = resp.State.Status
		state.Running = resp.State.Running
	}
	return state, true, nil
}

func (c *Client) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	port, err := nat.NewPort("tcp", strconv.Itoa(spec.ContainerPort))
	if err != nil {
		return "", fmt.Errorf("invalid container port %d: %w", spec.ContainerPort, err)
	}

	config := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Cmd,
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels:       spec.Labels,
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: spec.HostIP, HostPort: strconv.Itoa(spec.HostPort)}},
		},
	}

	resp, err := c.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container %s: %w", spec.Name, err)
	}
	for _, warning := range resp.Warnings {
		c.logger.With("container", spec.Name).With("warning", warning).Warn("docker create warning")
	}

	return resp.ID, nil
}

func (c *Client) StartContainer(ctx context.Context, id string) error {
	if err := c.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", id, err)
	}
	return nil
}

// StopContainer sends SIGTERM and waits up to timeout before killing.
func (c *Client) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if err := c.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds}); err != nil {
		return fmt.Errorf("failed to stop container %s: %w", id, err)
	}
	return nil
}

func (c *Client) RemoveContainer(ctx context.Context, id string) error {
	err := c.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", id, err)
	}
	return nil
}

// CopyFileTo copies one host file into containerDir, owned by the container user.
func (c *Client) CopyFileTo(ctx context.Context, id, hostPath, containerDir string) error {
	content, err := archive.TarWithOptions(filepath.Dir(hostPath), &archive.TarOptions{
		IncludeFiles: []string{filepath.Base(hostPath)},
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", hostPath, err)
	}
	defer content.Close()

	err = c.cli.CopyToContainer(ctx, id, containerDir, content, container.CopyToContainerOptions{CopyUIDGID: true})
	if err != nil {
		return fmt.Errorf("failed to copy %s into container %s: %w", hostPath, id, err)
	}
	return nil
}

// CopyFileFrom extracts containerPath into hostDir. A missing source path
// reports found=false.
func (c *Client) CopyFileFrom(ctx context.Context, id, containerPath, hostDir string) (bool, error) {
	content, _, err := c.cli.CopyFromContainer(ctx, id, containerPath)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to copy %s out of container %s: %w", containerPath, id, err)
	}
	defer content.Close()

	if err := archive.Untar(content, hostDir, &archive.TarOptions{NoLchown: true}); err != nil {
		return false, fmt.Errorf("failed to extract %s into %s: %w", containerPath, hostDir, err)
	}
	return true, nil
}
