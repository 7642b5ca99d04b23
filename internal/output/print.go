package output

import (
	"fmt"
	"io"
	"time"
)

// Print writes a human readable summary of record.
func Print(w io.Writer, record *Record) error {
	lines := []string{
		"Contract deployed",
		fmt.Sprintf("  contract:  %s", record.Contract),
		fmt.Sprintf("  address:   %s", record.Address),
		fmt.Sprintf("  deployer:  %s", record.DeployerAddress),
		fmt.Sprintf("  network:   %s (chain id %d)", record.Network, record.ChainID),
		fmt.Sprintf("  rpc:       %s", record.RPCURL),
	}
	if record.TxHash != "" {
		lines = append(lines, fmt.Sprintf("  tx:        %s (block %d)", record.TxHash, record.BlockNumber))
	}
	if record.Attempts > 0 {
		lines = append(lines, fmt.Sprintf("  attempts:  %d", record.Attempts))
	}
	if record.ExplorerURL != "" {
		lines = append(lines, fmt.Sprintf("  explorer:  %s", record.ExplorerURL))
	}
	lines = append(lines, fmt.Sprintf("  timestamp: %s", record.Timestamp.UTC().Format(time.RFC3339)))

	if v := record.Verification; v != nil {
		lines = append(lines, "Verification")
		if v.Owner != "" {
			lines = append(lines, fmt.Sprintf("  owner:         %s", v.Owner))
		}
		if v.VotingActive != nil {
			lines = append(lines, fmt.Sprintf("  voting active: %t", *v.VotingActive))
		}
		if v.TotalVoters != "" {
			lines = append(lines, fmt.Sprintf("  total voters:  %s", v.TotalVoters))
		}
		for _, warning := range v.Warnings {
			lines = append(lines, fmt.Sprintf("  warning:       %s", warning))
		}
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to print record: %w", err)
		}
	}
	return nil
}
