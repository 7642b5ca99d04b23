package devnode

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/confidential-voting/voting-deployer/internal/network"
)

func init() {
	CMD.AddCommand(startCmd)
	CMD.AddCommand(stopCmd)
	CMD.AddCommand(statusCmd)
}

var CMD = &cobra.Command{
	Use:   "devnode",
	Short: "Run a local anvil node in docker",
	Long: `Devnode manages a single anvil container for local deployments.

Modes:
  - start:  pull the image when missing, start the container and wait for RPC
  - stop:   stop and remove the container, keeping its chain state in devnode.state-dir
  - status: report the container state and RPC health

Examples:
  voting-deployer devnode start
  voting-deployer deploy --network local
  voting-deployer devnode stop
`,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the dev node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(service *Service) error {
			status, err := service.Start(cmd.Context(), configs.Values.DevNode)
			if err != nil {
				return fmt.Errorf("failed to start dev node: %w", err)
			}
			return PrintStatus(cmd.OutOrStdout(), status)
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop and remove the dev node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(service *Service) error {
			removed, err := service.Stop(cmd.Context(), configs.Values.DevNode)
			if err != nil {
				return fmt.Errorf("failed to stop dev node: %w", err)
			}
			if !removed {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Dev node %s is not running\n", configs.Values.DevNode.ContainerName)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Dev node %s removed\n", configs.Values.DevNode.ContainerName)
			return err
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the dev node state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(service *Service) error {
			status, err := service.Status(cmd.Context(), configs.Values.DevNode)
			if err != nil {
				return err
			}
			return PrintStatus(cmd.OutOrStdout(), status)
		})
	},
}

func withService(run func(*Service) error) error {
	docker, err := NewClient()
	if err != nil {
		return err
	}
	defer docker.Close()

	prober := network.NewProber(nil, configs.Values.Probe.Timeout, 0)
	return run(NewService(docker, prober))
}

func PrintStatus(w io.Writer, status *Status) error {
	health := "down"
	switch {
	case status.Healthy:
		health = fmt.Sprintf("ok (chain id %s, block %d)", status.ChainID, status.BlockNumber)
	case status.Err != nil:
		health = "unreachable: " + status.Err.Error()
	}

	_, err := fmt.Fprintf(w, "Container: %s\nState:     %s\nRunning:   %t\nRPC URL:   %s\nRPC:       %s\n",
		status.Name, status.State, status.Running, status.RPCURL, health)
	return err
}
