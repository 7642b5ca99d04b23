package network

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

type (
	// Client is the subset of ethclient.Client the tool relies on: chain
	// queries, contract calls and deployment, receipts, and balances.
	Client interface {
		bind.ContractBackend
		bind.DeployBackend
		ethereum.ChainIDReader
		ethereum.BlockNumberReader
		BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
		NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
		Close()
	}

	// Dialer opens a Client for an RPC URL.
	Dialer func(ctx context.Context, rawURL string) (Client, error)
)

// DialEthClient is the production Dialer backed by go-ethereum's ethclient.
func DialEthClient(ctx context.Context, rawURL string) (Client, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}
