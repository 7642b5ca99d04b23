package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/confidential-voting/voting-deployer/internal/contracts"
	"github.com/confidential-voting/voting-deployer/internal/logger"
	"github.com/confidential-voting/voting-deployer/internal/network"
	"github.com/confidential-voting/voting-deployer/internal/wallet"
)

const DefaultConfirmationTimeout = 2 * time.Minute

type (
	// GasSettings are the fixed gas parameters of every submission.
	GasSettings struct {
		GasLimit uint64
		GasPrice *big.Int
	}

	// ContractFactory deploys one artifact from one signer over one session.
	// It is not safe for concurrent use.
	ContractFactory struct {
		session             *network.Session
		artifact            *contracts.Artifact
		key                 *wallet.Key
		gas                 GasSettings
		confirmationTimeout time.Duration
		args                []any
		nonces              *nonceGuard
		logger              *slog.Logger
	}
)

// NewContractFactory binds artifact to session and key. args are passed to
// the constructor.
func NewContractFactory(
	session *network.Session,
	artifact *contracts.Artifact,
	key *wallet.Key,
	gas GasSettings,
	confirmationTimeout time.Duration,
	args ...any) *ContractFactory {
	if confirmationTimeout <= 0 {
		confirmationTimeout = DefaultConfirmationTimeout
	}

	log := logger.Named("contract_factory").With("contract", artifact.Name)
	return &ContractFactory{
		session:             session,
		artifact:            artifact,
		key:                 key,
		gas:                 gas,
		confirmationTimeout: confirmationTimeout,
		args:                args,
		nonces:              newNonceGuard(session.Client, key.Address, log),
		logger:              log,
	}
}

// RequiredBalance is the most a single submission can cost.
func (f *ContractFactory) RequiredBalance() *big.Int {
	if f.gas.GasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(f.gas.GasLimit), f.gas.GasPrice)
}

// Deploy submits the deployment transaction and waits for its receipt.
// Retries reuse the nonce pinned by the first attempt, see nonceGuard.
func (f *ContractFactory) Deploy(ctx context.Context, attempt uint) (*Deployment, error) {
	log := f.logger.With("attempt", attempt)

	plan, err := f.nonces.reconcile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile nonce: %w", err)
	}
	if plan.mined {
		return f.lateMined(plan), nil
	}

	opts, err := bind.NewKeyedTransactorWithChainID(f.key.Private, f.session.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(plan.nonce)
	opts.GasLimit = f.gas.GasLimit
	opts.GasPrice = f.gas.GasPrice
	opts.NoSend = true

	_, tx, _, err := bind.DeployContract(opts, f.artifact.ABI, f.artifact.Bytecode, f.session.Client, f.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to sign deployment transaction: %w", err)
	}

	// recorded before sending: the node may accept a transaction whose
	// response never arrives
	f.nonces.sent(tx)

	log.With("nonce", plan.nonce).With("tx", tx.Hash().Hex()).With("gas_limit", f.gas.GasLimit).With("gas_price", f.gas.GasPrice).Info("broadcasting deployment transaction")

	err = f.session.Client.SendTransaction(ctx, tx)
	switch {
	case err == nil:
	case isAlreadyKnown(err):
		log.With("tx", tx.Hash().Hex()).Info("transaction already in the pool, waiting for it")
	case isNonceTooLow(err) && plan.fresh:
		return nil, fmt.Errorf("%w: nonce %d: %w", ErrNonceConflict, plan.nonce, err)
	default:
		return nil, fmt.Errorf("failed to submit deployment transaction: %w", err)
	}

	log.With("tx", tx.Hash().Hex()).With("address", plan.address.Hex()).Info("waiting for confirmation")

	receipt, err := f.waitMined(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm deployment transaction %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: tx %s in block %d", ErrDeploymentReverted, tx.Hash().Hex(), receipt.BlockNumber.Uint64())
	}

	return &Deployment{
		Address:     crypto.CreateAddress(f.key.Address, tx.Nonce()),
		Deployer:    f.key.Address,
		TxHash:      tx.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

func (f *ContractFactory) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, f.confirmationTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, f.session.Client, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("not mined within %s: %w", f.confirmationTimeout, err)
		}
		return nil, err
	}
	return receipt, nil
}

func (f *ContractFactory) lateMined(plan noncePlan) *Deployment {
	deployment := &Deployment{
		Address:   plan.address,
		Deployer:  f.key.Address,
		LateMined: true,
	}
	if plan.receipt != nil {
		deployment.TxHash = plan.receipt.TxHash
		deployment.BlockNumber = plan.receipt.BlockNumber.Uint64()
		deployment.GasUsed = plan.receipt.GasUsed
	}
	return deployment
}
