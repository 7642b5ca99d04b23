package network

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/confidential-voting/voting-deployer/configs"
)

func init() {
	CMD.AddCommand(probeCmd)
	CMD.AddCommand(checkCmd)
	CMD.AddCommand(dnsCmd)
}

var CMD = &cobra.Command{
	Use:   "network",
	Short: "Diagnose RPC connectivity of the selected network",
	Long: `Network inspects the endpoints configured for the selected network.

Modes:
  - probe: walk the endpoints in order and report the first live one
  - check: probe every endpoint and report chain id, head block, gas price and latency
  - dns:   resolve the host of every endpoint

Examples:
  voting-deployer network probe
  voting-deployer network check --network sepolia
  voting-deployer network dns
`,
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Find the first endpoint that answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoints, err := selectedEndpoints()
		if err != nil {
			return err
		}

		session, err := newProber().FindWorkingEndpoint(cmd.Context(), endpoints)
		if err != nil {
			return fmt.Errorf("probe failed: %w", err)
		}
		defer session.Close()

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Using %s: chain id %s, block %d\n", session.Endpoint.String(), session.ChainID, session.BlockNumber)
		return err
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe every endpoint and report its health",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoints, err := selectedEndpoints()
		if err != nil {
			return err
		}

		results := NewDiagnoser(newProber()).CheckAll(cmd.Context(), endpoints)

		out := cmd.OutOrStdout()
		if err := RenderChecks(out, results); err != nil {
			return fmt.Errorf("failed to render results: %w", err)
		}

		healthy, ok := FirstHealthy(results)
		if !ok {
			return errors.New("no endpoint is healthy, check the network connection or try a VPN")
		}

		_, err = fmt.Fprintf(out, "Suggested endpoint: %s\n", healthy.Endpoint.URL)
		return err
	},
}

var dnsCmd = &cobra.Command{
	Use:   "dns",
	Short: "Resolve the host of every endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoints, err := selectedEndpoints()
		if err != nil {
			return err
		}

		results := CheckDNS(cmd.Context(), nil, endpoints)
		if err := RenderDNS(cmd.OutOrStdout(), results); err != nil {
			return fmt.Errorf("failed to render results: %w", err)
		}

		for _, result := range results {
			if result.Err != nil {
				return errors.New("some endpoint hosts did not resolve, check the DNS settings")
			}
		}
		return nil
	},
}

func selectedEndpoints() ([]Endpoint, error) {
	selected, err := configs.Values.SelectedNetwork()
	if err != nil {
		return nil, err
	}
	if err := selected.Validate(); err != nil {
		return nil, err
	}
	return EndpointsFromConfig(selected), nil
}

func newProber() *Prober {
	return NewProber(nil, configs.Values.Probe.Timeout, configs.Values.Probe.Deadline)
}
