package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type (
	nonceSource interface {
		PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
		NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
		CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
		TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	}

	// nonceGuard pins the deployment nonce across attempts so that a
	// transaction broadcast by a failed attempt can never be doubled.
	nonceGuard struct {
		source nonceSource
		signer common.Address
		pinned *uint64
		lastTx *types.Transaction
		logger *slog.Logger
	}

	// noncePlan is what the next attempt should do.
	noncePlan struct {
		nonce uint64
		// fresh is set when nonce was read from the node during this attempt.
		fresh bool
		// mined is set when an earlier transaction already created the
		// contract. receipt is its receipt when it could be fetched.
		mined   bool
		receipt *types.Receipt
		address common.Address
	}
)

func newNonceGuard(source nonceSource, signer common.Address, log *slog.Logger) *nonceGuard {
	return &nonceGuard{source: source, signer: signer, logger: log}
}

// reconcile decides the nonce for the next submission:
//   - first call: pin the pending nonce
//   - contract code at the pinned creation address: the previous
//     transaction mined late, report it
//   - pinned nonce not yet consumed: reuse it
//   - consumed by something else: pin the new pending nonce
func (g *nonceGuard) reconcile(ctx context.Context) (noncePlan, error) {
	if g.pinned == nil {
		return g.pin(ctx)
	}

	nonce := *g.pinned
	address := crypto.CreateAddress(g.signer, nonce)

	code, err := g.source.CodeAt(ctx, address, nil)
	if err != nil {
		return noncePlan{}, fmt.Errorf("failed to check code at %s: %w", address.Hex(), err)
	}
	if len(code) > 0 {
		receipt, err := g.lastReceipt(ctx)
		if err != nil {
			g.logger.With("err", err.Error()).Warn("contract found but its receipt is unavailable")
		}
		g.logger.With("address", address.Hex()).With("nonce", nonce).Info("previous deployment transaction was mined late")
		return noncePlan{nonce: nonce, address: address, mined: true, receipt: receipt}, nil
	}

	latest, err := g.source.NonceAt(ctx, g.signer, nil)
	if err != nil {
		return noncePlan{}, fmt.Errorf("failed to get nonce of %s: %w", g.signer.Hex(), err)
	}
	if latest <= nonce {
		g.logger.With("nonce", nonce).Debug("reusing pinned nonce")
		return noncePlan{nonce: nonce, address: address}, nil
	}

	// the nonce is consumed but holds no contract: either our transaction
	// reverted or another transaction from the same key took the slot
	receipt, err := g.lastReceipt(ctx)
	if err != nil && !errors.Is(err, ethereum.NotFound) {
		return noncePlan{}, err
	}
	if receipt != nil && receipt.Status != types.ReceiptStatusSuccessful {
		return noncePlan{}, fmt.Errorf("%w: tx %s", ErrDeploymentReverted, receipt.TxHash.Hex())
	}

	g.logger.With("nonce", nonce).With("latest", latest).Warn("pinned nonce was used by another transaction, re-pinning")
	return g.pin(ctx)
}

func (g *nonceGuard) pin(ctx context.Context) (noncePlan, error) {
	pending, err := g.source.PendingNonceAt(ctx, g.signer)
	if err != nil {
		return noncePlan{}, fmt.Errorf("failed to get pending nonce of %s: %w", g.signer.Hex(), err)
	}

	g.pinned = &pending
	g.lastTx = nil
	return noncePlan{nonce: pending, fresh: true, address: crypto.CreateAddress(g.signer, pending)}, nil
}

// sent records the transaction signed with the pinned nonce, before it is
// broadcast.
func (g *nonceGuard) sent(tx *types.Transaction) {
	g.lastTx = tx
}

// lastReceipt returns the receipt of the last broadcast, or nil when nothing
// was broadcast with the pinned nonce.
func (g *nonceGuard) lastReceipt(ctx context.Context) (*types.Receipt, error) {
	if g.lastTx == nil {
		return nil, nil
	}

	receipt, err := g.source.TransactionReceipt(ctx, g.lastTx.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt of %s: %w", g.lastTx.Hash().Hex(), err)
	}
	return receipt, nil
}
