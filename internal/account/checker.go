package account

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"

	"github.com/confidential-voting/voting-deployer/internal/logger"
	"github.com/confidential-voting/voting-deployer/internal/network"
)

type (
	prober interface {
		Probe(ctx context.Context, endpoint network.Endpoint) (*network.Session, error)
	}

	// Checker reads the signer balance through each endpoint.
	Checker struct {
		prober prober
		logger *slog.Logger
	}

	// BalanceInfo is the result for one endpoint. Err covers both probe and
	// balance failures.
	BalanceInfo struct {
		Endpoint network.Endpoint
		ChainID  *big.Int
		Address  common.Address
		Balance  *big.Int
		Err      error
	}
)

// NewChecker creates a new balance checker
func NewChecker(prober prober) *Checker {
	return &Checker{
		prober: prober,
		logger: logger.Named("balance_checker"),
	}
}

// GetETHBalance gets ETH balance for an address over an open session
func (c *Checker) GetETHBalance(ctx context.Context, session *network.Session, address common.Address) (*big.Int, error) {
	return session.Balance(ctx, address)
}

// CheckEndpoints walks endpoints in order and stops at the first one that
// reports a positive balance. Unreachable endpoints are recorded, not fatal.
func (c *Checker) CheckEndpoints(ctx context.Context, endpoints []network.Endpoint, address common.Address) []BalanceInfo {
	results := make([]BalanceInfo, 0, len(endpoints))

	for _, endpoint := range endpoints {
		info := c.check(ctx, endpoint, address)
		results = append(results, info)

		log := c.logger.With("endpoint", endpoint.String())
		if info.Err != nil {
			log.With("err", info.Err.Error()).Warn("balance query failed")
			continue
		}
		log.With("balance", FormatETH(info.Balance)).Info("balance fetched")

		if info.Balance.Sign() > 0 {
			break
		}
	}

	return results
}

func (c *Checker) check(ctx context.Context, endpoint network.Endpoint, address common.Address) BalanceInfo {
	info := BalanceInfo{Endpoint: endpoint, Address: address}

	session, err := c.prober.Probe(ctx, endpoint)
	if err != nil {
		info.Err = err
		return info
	}
	defer session.Close()

	info.ChainID = session.ChainID
	info.Balance, info.Err = c.GetETHBalance(ctx, session, address)
	return info
}

// IsLow reports whether balance is below the threshold given in ETH. A
// non-positive threshold disables the check.
func IsLow(balance *big.Int, thresholdETH float64) bool {
	if thresholdETH <= 0 || balance == nil {
		return false
	}
	return balance.Cmp(ETHToWei(thresholdETH)) < 0
}

// ETHToWei converts an ETH amount to wei.
func ETHToWei(eth float64) *big.Int {
	wei, _ := new(big.Float).Mul(big.NewFloat(eth), big.NewFloat(params.Ether)).Int(nil)
	return wei
}

// FormatETH renders wei as ETH with four decimals.
func FormatETH(balance *big.Int) string {
	if balance == nil {
		return "-"
	}
	eth := new(big.Float).Quo(
		new(big.Float).SetInt(balance),
		new(big.Float).SetInt(big.NewInt(params.Ether)),
	)
	return fmt.Sprintf("%.4f ETH", eth)
}

// FormatETHBalance is the one-line summary printed under the balance table.
func FormatETHBalance(label string, address common.Address, balance *big.Int, err error) string {
	if err != nil {
		return fmt.Sprintf("%s: balance query failed (%v)", label, err)
	}

	return fmt.Sprintf("%s: %s balance %s (%s wei)", label, address.Hex(), FormatETH(balance), balance.String())
}
