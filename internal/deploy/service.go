package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/confidential-voting/voting-deployer/internal/account"
	"github.com/confidential-voting/voting-deployer/internal/contracts"
	"github.com/confidential-voting/voting-deployer/internal/logger"
	"github.com/confidential-voting/voting-deployer/internal/network"
	"github.com/confidential-voting/voting-deployer/internal/output"
	"github.com/confidential-voting/voting-deployer/internal/wallet"
)

type (
	endpointFinder interface {
		FindWorkingEndpoint(ctx context.Context, endpoints []network.Endpoint) (*network.Session, error)
	}

	// Service runs the whole deployment: probe, pre-flight, retried
	// submission, verification reads and the deployment record.
	Service struct {
		finder       endpointFinder
		loadArtifact func(path string) (*contracts.Artifact, error)
		now          func() time.Time
		timer        retry.Timer
		logger       *slog.Logger
	}
)

// NewService creates a new deploy service
func NewService(finder endpointFinder) *Service {
	return &Service{
		finder:       finder,
		loadArtifact: contracts.LoadArtifact,
		now:          time.Now,
		logger:       logger.Named("deploy_service"),
	}
}

// Deploy deploys the configured artifact to the selected network and
// returns the record, which is also saved to cfg.Output.File when set.
func (s *Service) Deploy(ctx context.Context, cfg configs.Config) (*output.Record, error) {
	runID := uuid.NewString()
	log := s.logger.With("run_id", runID).With("network", cfg.Network)

	selected, err := s.validate(cfg)
	if err != nil {
		return nil, err
	}

	log.With("artifact", cfg.Deploy.Artifact).Info("loading contract artifact")
	artifact, err := s.loadArtifact(cfg.Deploy.Artifact)
	if err != nil {
		return nil, err
	}

	key, err := wallet.ParsePrivateKey(cfg.Wallet.PrivateKey)
	if err != nil {
		return nil, err
	}
	log = log.With("deployer", key.Address.Hex())

	log.With("endpoints", len(selected.Endpoints)).Info("looking for a working endpoint")
	session, err := s.finder.FindWorkingEndpoint(ctx, network.EndpointsFromConfig(selected))
	if err != nil {
		return nil, err
	}
	defer session.Close()
	log = log.With("endpoint", session.Endpoint.String())
	log.With("chain_id", session.ChainID).With("block", session.BlockNumber).Info("connected")

	gas := GasSettings{GasLimit: cfg.Deploy.GasLimit, GasPrice: cfg.Deploy.GasPriceWei()}
	factory := NewContractFactory(session, artifact, key, gas, cfg.Deploy.ConfirmationTimeout)

	if err := s.preflight(ctx, log, session, key, factory, cfg.Deploy.LowBalanceETH, selected.FaucetURL); err != nil {
		return nil, err
	}

	policy := PolicyFromConfig(cfg.Deploy)
	policy.timer = s.timer
	deployment, err := DeployWithRetry(ctx, factory, policy)
	if err != nil {
		return nil, err
	}
	log = log.With("address", deployment.Address.Hex())
	log.With("attempts", deployment.Attempts).With("late_mined", deployment.LateMined).Info("contract deployed")

	state, readErr := contracts.NewVotingReader(deployment.Address, artifact.ABI, session.Client).Read(ctx)
	if readErr != nil {
		log.With("err", readErr.Error()).Warn("contract deployed but verification reads failed")
	}

	record := &output.Record{
		Contract:        artifact.Name,
		Address:         deployment.Address.Hex(),
		DeployerAddress: deployment.Deployer.Hex(),
		Network:         string(cfg.Network),
		ChainID:         session.ChainID.Uint64(),
		RPCURL:          session.Endpoint.URL,
		BlockNumber:     deployment.BlockNumber,
		Attempts:        deployment.Attempts,
		ExplorerURL:     output.ExplorerAddressURL(selected.ExplorerURL, deployment.Address.Hex()),
		RunID:           runID,
		Timestamp:       s.now().UTC(),
		Verification:    output.NewVerification(state, readErr),
		ABI:             output.CompactABI(artifact.RawABI),
	}
	if deployment.TxHash != (common.Hash{}) {
		record.TxHash = deployment.TxHash.Hex()
	}

	if cfg.Output.File != "" {
		if err := output.Save(cfg.Output.File, record); err != nil {
			log.With("err", err.Error()).Error("failed to save deployment record")
		} else {
			log.With("file", cfg.Output.File).Info("deployment record saved")
		}
	}

	return record, nil
}

func (s *Service) validate(cfg configs.Config) (configs.Network, error) {
	selected, err := cfg.SelectedNetwork()
	if err != nil {
		return configs.Network{}, err
	}

	if err := errors.Join(selected.Validate(), cfg.Wallet.Validate(), cfg.Deploy.Validate()); err != nil {
		return configs.Network{}, err
	}

	return selected, nil
}

// preflight fails fast when the signer cannot pay for one submission and
// warns when the balance is under the low-balance threshold.
func (s *Service) preflight(
	ctx context.Context,
	log *slog.Logger,
	session *network.Session,
	key *wallet.Key,
	factory *ContractFactory,
	lowBalanceETH float64,
	faucetURL string) error {
	balance, err := session.Balance(ctx, key.Address)
	if err != nil {
		return err
	}
	log.With("balance", account.FormatETH(balance)).Info("deployer balance")

	required := factory.RequiredBalance()
	if balance.Cmp(required) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, key.Address.Hex(), account.FormatETH(balance), account.FormatETH(required))
	}

	if account.IsLow(balance, lowBalanceETH) {
		log.Warn(account.LowBalanceHint(lowBalanceETH, faucetURL))
	}

	return nil
}
