package inspect

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/confidential-voting/voting-deployer/internal/network"
)

func init() {
	inspectCmd.Flags().String("record", "", "Deployment record to read the address from (defaults to output.file)")
	CMD.AddCommand(inspectCmd)
}

var CMD = &cobra.Command{
	Use:   "contract",
	Short: "Read-only commands against a deployed voting contract",
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [address]",
	Short: "Read owner, voting status and voter count of a deployed contract",
	Long: `Inspect calls the read-only methods of the voting contract. The address is
taken from the argument, or from the deployment record written by deploy.

Examples:
  voting-deployer contract inspect 0x5FbDB2315678afecb367f032d93F642f64180aa3
  voting-deployer contract inspect --record deployment.yaml
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recordPath, _ := cmd.Flags().GetString("record")
		if recordPath == "" {
			recordPath = configs.Values.Output.File
		}

		var arg string
		if len(args) > 0 {
			arg = args[0]
		}

		address, err := ResolveAddress(arg, recordPath)
		if err != nil {
			return err
		}

		prober := network.NewProber(nil, configs.Values.Probe.Timeout, configs.Values.Probe.Deadline)
		report, err := NewService(prober).Inspect(cmd.Context(), configs.Values, address)
		if err != nil {
			return fmt.Errorf("inspect failed: %w", err)
		}

		return Render(cmd.OutOrStdout(), report)
	},
}
