package network

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/confidential-voting/voting-deployer/internal/logger"
)

const (
	DefaultProbeTimeout  = 10 * time.Second
	DefaultProbeDeadline = 60 * time.Second
)

// Prober walks an ordered endpoint list one endpoint at a time and hands
// back a Session for the first one that answers.
type Prober struct {
	dial     Dialer
	timeout  time.Duration
	deadline time.Duration
	logger   *slog.Logger
}

// NewProber creates a prober. timeout bounds each endpoint; deadline bounds
// the whole walk and is disabled when zero.
func NewProber(dial Dialer, timeout, deadline time.Duration) *Prober {
	if dial == nil {
		dial = DialEthClient
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	return &Prober{
		dial:     dial,
		timeout:  timeout,
		deadline: deadline,
		logger:   logger.Named("endpoint_prober"),
	}
}

// FindWorkingEndpoint returns a Session bound to the first endpoint whose
// chain id and block number queries both succeed. Later endpoints are not
// dialed. When every endpoint fails the error is a *NoEndpointAvailableError
// with one failure per endpoint.
func (p *Prober) FindWorkingEndpoint(ctx context.Context, endpoints []Endpoint) (*Session, error) {
	if p.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.deadline)
		defer cancel()
	}

	p.logger.With("endpoints", len(endpoints)).Info("looking for a working RPC endpoint")

	failures := make([]*EndpointUnreachableError, 0, len(endpoints))
	for _, endpoint := range endpoints {
		if err := ctx.Err(); err != nil {
			failures = append(failures, &EndpointUnreachableError{Endpoint: endpoint, Err: fmt.Errorf("not probed: %w", err)})
			continue
		}

		session, err := p.Probe(ctx, endpoint)
		if err != nil {
			p.logger.
				With("endpoint", endpoint.Name).
				With("url", endpoint.URL).
				With("err", err.Error()).
				Warn("endpoint probe failed")
			failures = append(failures, &EndpointUnreachableError{Endpoint: endpoint, Err: err})
			continue
		}

		p.logger.
			With("endpoint", endpoint.Name).
			With("url", endpoint.URL).
			With("chain_id", session.ChainID).
			With("block", session.BlockNumber).
			Info("endpoint is live")

		return session, nil
	}

	return nil, &NoEndpointAvailableError{Failures: failures}
}

// Probe runs the liveness check against a single endpoint. The returned
// Session owns the client; on failure the client is already closed.
func (p *Prober) Probe(ctx context.Context, endpoint Endpoint) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	client, err := p.dial(ctx, endpoint.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	blockNumber, err := client.BlockNumber(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}

	if endpoint.ExpectedChainID != 0 && (!chainID.IsUint64() || chainID.Uint64() != endpoint.ExpectedChainID) {
		client.Close()
		return nil, fmt.Errorf("%w: expected %d, got %s", ErrChainIDMismatch, endpoint.ExpectedChainID, chainID)
	}

	return &Session{
		Endpoint:    endpoint,
		ChainID:     chainID,
		BlockNumber: blockNumber,
		Client:      client,
	}, nil
}
