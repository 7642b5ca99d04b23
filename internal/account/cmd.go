package account

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/confidential-voting/voting-deployer/internal/network"
)

var CMD = &cobra.Command{
	Use:   "account",
	Short: "Show the deployer address and its balance on the selected network",
	Long: `Account derives the deployer address from the configured private key and
queries its balance through each endpoint of the selected network, stopping
at the first endpoint that reports a positive balance.

Examples:
  voting-deployer account
  voting-deployer account --network sepolia
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := configs.Values.Wallet.Validate(); err != nil {
			return err
		}
		if err := configs.Values.Probe.Validate(); err != nil {
			return err
		}

		prober := network.NewProber(nil, configs.Values.Probe.Timeout, configs.Values.Probe.Deadline)
		service := NewService(NewChecker(prober))
		if err := service.Run(cmd.Context(), configs.Values, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("account check failed: %w", err)
		}

		return nil
	},
}
