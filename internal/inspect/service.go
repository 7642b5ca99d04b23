package inspect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/confidential-voting/voting-deployer/internal/contracts"
	"github.com/confidential-voting/voting-deployer/internal/logger"
	"github.com/confidential-voting/voting-deployer/internal/network"
	"github.com/confidential-voting/voting-deployer/internal/output"
)

type (
	endpointFinder interface {
		FindWorkingEndpoint(ctx context.Context, endpoints []network.Endpoint) (*network.Session, error)
	}

	// Service reads the state of a deployed voting contract.
	Service struct {
		finder       endpointFinder
		loadArtifact func(path string) (*contracts.Artifact, error)
		logger       *slog.Logger
	}

	Report struct {
		Address  common.Address
		Endpoint network.Endpoint
		ChainID  uint64
		State    *contracts.VotingState
		ReadErr  error
	}
)

func NewService(finder endpointFinder) *Service {
	return &Service{
		finder:       finder,
		loadArtifact: contracts.LoadArtifact,
		logger:       logger.Named("inspect_service"),
	}
}

// ResolveAddress takes the address argument when given, otherwise the
// address stored in the deployment record at recordPath.
func ResolveAddress(arg, recordPath string) (common.Address, error) {
	if arg != "" {
		if !common.IsHexAddress(arg) {
			return common.Address{}, fmt.Errorf("'%s' is not a valid address", arg)
		}
		return common.HexToAddress(arg), nil
	}

	if recordPath == "" {
		return common.Address{}, errors.New("no address given and no deployment record configured")
	}

	record, err := output.Load(recordPath)
	if err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(record.Address) {
		return common.Address{}, fmt.Errorf("record '%s' holds an invalid address '%s'", recordPath, record.Address)
	}
	return common.HexToAddress(record.Address), nil
}

// Inspect connects through the first working endpoint and reads address.
// Read failures are reported in Report.ReadErr; only a missing contract or
// an unreachable network fails the call.
func (s *Service) Inspect(ctx context.Context, cfg configs.Config, address common.Address) (*Report, error) {
	selected, err := cfg.SelectedNetwork()
	if err != nil {
		return nil, err
	}
	if err := selected.Validate(); err != nil {
		return nil, err
	}

	artifact, err := s.loadArtifact(cfg.Deploy.Artifact)
	if err != nil {
		return nil, err
	}

	session, err := s.finder.FindWorkingEndpoint(ctx, network.EndpointsFromConfig(selected))
	if err != nil {
		return nil, err
	}
	defer session.Close()

	s.logger.With("address", address.Hex()).With("endpoint", session.Endpoint.String()).Info("reading contract state")

	state, readErr := contracts.NewVotingReader(address, artifact.ABI, session.Client).Read(ctx)
	if errors.Is(readErr, contracts.ErrNoCode) {
		return nil, readErr
	}

	return &Report{
		Address:  address,
		Endpoint: session.Endpoint,
		ChainID:  session.ChainID.Uint64(),
		State:    state,
		ReadErr:  readErr,
	}, nil
}

// Render prints the report.
func Render(w io.Writer, report *Report) error {
	lines := []string{
		fmt.Sprintf("Contract %s on chain %d via %s", report.Address.Hex(), report.ChainID, report.Endpoint.String()),
	}

	verification := output.NewVerification(report.State, report.ReadErr)
	if verification != nil {
		if verification.Owner != "" {
			lines = append(lines, "  owner:         "+verification.Owner)
		}
		if verification.VotingActive != nil {
			lines = append(lines, fmt.Sprintf("  voting active: %t", *verification.VotingActive))
		}
		if verification.TotalVoters != "" {
			lines = append(lines, "  total voters:  "+verification.TotalVoters)
		}
	}

	if state := report.State; state != nil {
		if state.OptionsCount != nil {
			lines = append(lines, "  vote options:  "+state.OptionsCount.String())
		}
		if status := state.Status; status != nil && status.Active {
			lines = append(lines,
				"  voting starts: "+formatUnix(status.StartTime.Int64()),
				"  voting ends:   "+formatUnix(status.EndTime.Int64()),
			)
		}
	}

	if verification != nil {
		for _, warning := range verification.Warnings {
			lines = append(lines, "  warning:       "+warning)
		}
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatUnix(seconds int64) string {
	return time.Unix(seconds, 0).UTC().Format(time.RFC3339)
}
