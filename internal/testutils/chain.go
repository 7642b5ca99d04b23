package testutils

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/eth/ethconfig"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"
)

// ReturnOneBytecode deploys runtime code that answers every call with the
// 32 byte word 1.
const ReturnOneBytecode = "0x600a600c600039600a6000f3600160005260206000f3"

// SimulatedChainID is the default chain id of go-ethereum's simulated backend.
const SimulatedChainID = 1337

type (
	// Chain is an in-process chain with one funded account.
	Chain struct {
		Backend *simulated.Backend
		Key     *ecdsa.PrivateKey
		Address common.Address
		ChainID *big.Int

		autoMine atomic.Bool
	}

	chainOptions struct {
		chainID int64
	}

	ChainOption func(*chainOptions)
)

// WithChainID overrides the simulated chain id.
func WithChainID(chainID int64) ChainOption {
	return func(o *chainOptions) {
		o.chainID = chainID
	}
}

// NewChain starts a simulated backend funding a fresh key with 100 ETH.
// Sent transactions are mined immediately until SetAutoMine(false).
func NewChain(t testing.TB, opts ...ChainOption) *Chain {
	t.Helper()

	options := chainOptions{chainID: SimulatedChainID}
	for _, opt := range opts {
		opt(&options)
	}

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey)

	balance := new(big.Int).Mul(big.NewInt(100), big.NewInt(params.Ether))
	chainID := big.NewInt(options.chainID)
	backend := simulated.NewBackend(
		types.GenesisAlloc{address: {Balance: balance}},
		func(_ *node.Config, ethConf *ethconfig.Config) {
			// the genesis config is shared with params, copy before editing
			chainConfig := *ethConf.Genesis.Config
			chainConfig.ChainID = chainID
			ethConf.Genesis.Config = &chainConfig
		},
	)
	t.Cleanup(func() { _ = backend.Close() })

	chain := &Chain{Backend: backend, Key: key, Address: address, ChainID: chainID}
	chain.autoMine.Store(true)
	return chain
}

// PrivateKeyHex returns the funded key hex encoded with the 0x prefix.
func (c *Chain) PrivateKeyHex() string {
	return "0x" + common.Bytes2Hex(crypto.FromECDSA(c.Key))
}

// SetAutoMine toggles committing a block after every sent transaction.
func (c *Chain) SetAutoMine(enabled bool) {
	c.autoMine.Store(enabled)
}

// Commit mines the pending transactions into a new block.
func (c *Chain) Commit() {
	c.Backend.Commit()
}

// Client returns a client that can be closed any number of times without
// shutting down the backend.
func (c *Chain) Client() *Client {
	return &Client{Client: c.Backend.Client(), chain: c}
}

// Client wraps the simulated client with a no-op Close and optional
// mining on send.
type Client struct {
	simulated.Client
	chain *Chain

	sent atomic.Int32
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	c.sent.Add(1)
	if c.chain.autoMine.Load() {
		c.chain.Commit()
	}
	return nil
}

// Sent counts transactions accepted through this client.
func (c *Client) Sent() int {
	return int(c.sent.Load())
}

func (c *Client) Close() {}
