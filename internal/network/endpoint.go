package network

import (
	"context"
	"fmt"
	"math/big"
	"net/url"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/ethereum/go-ethereum/common"
)

type (
	// Endpoint is a statically configured JSON-RPC address. ExpectedChainID
	// of zero accepts any chain.
	Endpoint struct {
		Name            string
		URL             string
		ExpectedChainID uint64
	}

	// Session is a live connection bound to the endpoint that answered the
	// liveness check. The owner closes it.
	Session struct {
		Endpoint    Endpoint
		ChainID     *big.Int
		BlockNumber uint64
		Client      Client
	}
)

// EndpointsFromConfig keeps the configured order.
func EndpointsFromConfig(network configs.Network) []Endpoint {
	endpoints := make([]Endpoint, 0, len(network.Endpoints))
	for _, endpoint := range network.Endpoints {
		name := endpoint.Name
		if name == "" {
			name = endpoint.URL
		}
		endpoints = append(endpoints, Endpoint{
			Name:            name,
			URL:             endpoint.URL,
			ExpectedChainID: uint64(network.ExpectedChainID(endpoint)),
		})
	}
	return endpoints
}

func (e Endpoint) String() string {
	if e.Name == "" || e.Name == e.URL {
		return e.URL
	}
	return fmt.Sprintf("%s (%s)", e.Name, e.URL)
}

// Host returns the hostname of the endpoint URL, or "" when it does not parse.
func (e Endpoint) Host() string {
	parsed, err := url.Parse(e.URL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

func (s *Session) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := s.Client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance of %s: %w", account.Hex(), err)
	}
	return balance, nil
}

func (s *Session) Close() {
	if s != nil && s.Client != nil {
		s.Client.Close()
	}
}
