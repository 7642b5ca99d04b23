package deploy

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/confidential-voting/voting-deployer/internal/flags"
	"github.com/confidential-voting/voting-deployer/internal/network"
	"github.com/confidential-voting/voting-deployer/internal/output"
)

var (
	stringFlags = []flags.Def[string]{
		{Name: "artifact", ViperKey: "deploy.artifact", Description: "Path to the compiled contract artifact (Hardhat or Foundry JSON)"},
		{Name: "retry-strategy", ViperKey: "deploy.retry-strategy", Description: "Delay between attempts: 'fixed' or 'backoff'"},
		{Name: "output", ViperKey: "output.file", Description: "Deployment record file (.yaml or .json)"},
	}

	intFlags = []flags.Def[int]{
		{Name: "max-retries", ViperKey: "deploy.max-retries", Description: "Maximum number of deployment attempts"},
	}

	uint64Flags = []flags.Def[uint64]{
		{Name: "gas-limit", ViperKey: "deploy.gas-limit", Description: "Gas limit of the deployment transaction"},
	}

	float64Flags = []flags.Def[float64]{
		{Name: "gas-price-gwei", ViperKey: "deploy.gas-price-gwei", Description: "Gas price in gwei"},
	}

	durationFlags = []flags.Def[time.Duration]{
		{Name: "retry-delay", ViperKey: "deploy.retry-delay", Description: "Delay between attempts"},
		{Name: "confirmation-timeout", ViperKey: "deploy.confirmation-timeout", Description: "How long to wait for each transaction to be mined"},
	}
)

func init() {
	v, fs := viper.GetViper(), CMD.Flags()
	flags.MustDeclare(v, fs, stringFlags)
	flags.MustDeclare(v, fs, intFlags)
	flags.MustDeclare(v, fs, uint64Flags)
	flags.MustDeclare(v, fs, float64Flags)
	flags.MustDeclare(v, fs, durationFlags)
}

var CMD = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the voting contract through the first working endpoint",
	Long: `Deploy probes the endpoints of the selected network in order, connects to
the first one that answers, checks the deployer balance and submits the
deployment transaction, retrying failed attempts with the same nonce.

Examples:
  voting-deployer deploy
  voting-deployer deploy --network localhost --max-retries 5
  voting-deployer deploy --retry-strategy backoff --output deployment.json
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := configs.Values.Probe.Validate(); err != nil {
			return err
		}

		prober := network.NewProber(nil, configs.Values.Probe.Timeout, configs.Values.Probe.Deadline)
		record, err := NewService(prober).Deploy(cmd.Context(), configs.Values)
		if err != nil {
			printHints(cmd, err)
			return fmt.Errorf("deployment failed: %w", err)
		}

		if err := output.Print(cmd.OutOrStdout(), record); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Copy this address into the frontend: %s\n", record.Address)
		return err
	},
}

func printHints(cmd *cobra.Command, err error) {
	var faucetURL string
	if selected, selErr := configs.Values.SelectedNetwork(); selErr == nil {
		faucetURL = selected.FaucetURL
	}

	w := cmd.ErrOrStderr()
	_, _ = fmt.Fprintln(w, "Troubleshooting:")
	for i, hint := range Hints(err, faucetURL) {
		_, _ = fmt.Fprintf(w, "  %d. %s\n", i+1, hint)
	}
}
