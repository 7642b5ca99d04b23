package deploy

import (
	"context"
	"errors"

	"github.com/confidential-voting/voting-deployer/internal/network"
	"github.com/confidential-voting/voting-deployer/internal/wallet"
)

// Hints returns troubleshooting suggestions for a failed deployment.
func Hints(err error, faucetURL string) []string {
	var hints []string

	switch {
	case errors.Is(err, network.ErrNoEndpointAvailable):
		hints = append(hints,
			"Check your network connection, the endpoints may be blocked on this network",
			"Try again through a VPN",
			"Run 'voting-deployer network check' and 'voting-deployer network dns' to see why each endpoint failed",
		)
	case errors.Is(err, wallet.ErrMissingPrivateKey):
		hints = append(hints, "Set PRIVATE_KEY in the environment or in the .env file")
	case errors.Is(err, ErrInsufficientBalance):
		hints = append(hints, "Fund the deployer account, 'voting-deployer account' shows its balance")
	case errors.Is(err, ErrDeploymentReverted):
		hints = append(hints, "The constructor reverted, check the artifact and the gas limit")
	case errors.Is(err, ErrNonceConflict):
		hints = append(hints, "Another transaction from the same key is in flight, wait for it and retry")
	case errors.Is(err, context.DeadlineExceeded):
		hints = append(hints, "The transaction was not mined in time, raise deploy.confirmation-timeout or deploy.gas-price-gwei")
	default:
		hints = append(hints,
			"Check your network connection",
			"Make sure the .env file is set up correctly",
		)
	}

	if faucetURL != "" {
		hints = append(hints, "Get test ETH from the faucet: "+faucetURL)
	}
	return hints
}
