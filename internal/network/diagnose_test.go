package network

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassNone},
		{"dns", fmt.Errorf("dial: %w", &net.DNSError{Err: "no such host", Name: "sepolia.zama.ai", IsNotFound: true}), ErrorClassDNS},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ErrorClassRefused},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), ErrorClassReset},
		{"unreachable", fmt.Errorf("dial: %w", syscall.ENETUNREACH), ErrorClassUnreachable},
		{"deadline", fmt.Errorf("failed to get chain ID: %w", context.DeadlineExceeded), ErrorClassTimeout},
		{"http status", fmt.Errorf("failed to get chain ID: %w", rpc.HTTPError{StatusCode: 502, Status: "502 Bad Gateway"}), ErrorClassHTTP},
		{"mismatch", fmt.Errorf("%w: expected 8009, got 1", ErrChainIDMismatch), ErrorClassChainIDMismatch},
		{"other", errors.New("couldn't parse request"), ErrorClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestCheckAllProbesEveryEndpoint(t *testing.T) {
	first := newRPCServer(t, 8009, 7)
	down := closedServerURL(t)
	second := newRPCServer(t, 8009, 9)

	diagnoser := NewDiagnoser(NewProber(DialEthClient, 5*time.Second, 0))
	results := diagnoser.CheckAll(context.Background(), []Endpoint{
		{Name: "first", URL: first.URL},
		{Name: "down", URL: down},
		{Name: "second", URL: second.URL},
	})
	require.Len(t, results, 3)

	assert.True(t, results[0].Healthy())
	assert.Equal(t, "10.00", FormatGwei(results[0].GasPrice))
	assert.Equal(t, uint64(7), results[0].BlockNumber)

	assert.False(t, results[1].Healthy())
	assert.Equal(t, ErrorClassRefused, results[1].Class)

	assert.True(t, results[2].Healthy(), "a failure must not stop later checks")

	healthy, ok := FirstHealthy(results)
	require.True(t, ok)
	assert.Equal(t, "first", healthy.Endpoint.Name)

	var buf bytes.Buffer
	require.NoError(t, RenderChecks(&buf, results))
	assert.Contains(t, buf.String(), "8009")
	assert.Contains(t, buf.String(), string(ErrorClassRefused))
}

type fakeResolver map[string][]net.IP

func (r fakeResolver) LookupIP(_ context.Context, _, host string) ([]net.IP, error) {
	ips, ok := r[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return ips, nil
}

func TestCheckDNS(t *testing.T) {
	resolver := fakeResolver{"devnet.zama.ai": {net.ParseIP("10.0.0.1")}}

	results := CheckDNS(context.Background(), resolver, []Endpoint{
		{URL: "https://devnet.zama.ai"},
		{URL: "https://devnet.zama.ai/rpc"},
		{URL: "https://sepolia.zama.ai"},
		{URL: "::bad"},
	})
	require.Len(t, results, 3, "duplicate hosts are resolved once")

	assert.Equal(t, "devnet.zama.ai", results[0].Host)
	assert.Equal(t, []string{"10.0.0.1"}, results[0].Addresses)
	assert.Equal(t, ErrorClassDNS, ClassifyError(results[1].Err))
	assert.Error(t, results[2].Err)

	var buf bytes.Buffer
	require.NoError(t, RenderDNS(&buf, results))
	assert.Contains(t, buf.String(), "10.0.0.1")
}

func TestEndpointHelpers(t *testing.T) {
	assert.Equal(t, "rpc.sepolia.zama.ai", Endpoint{URL: "https://rpc.sepolia.zama.ai:443/x"}.Host())
	assert.Equal(t, "https://a", Endpoint{URL: "https://a"}.String())
	assert.Equal(t, "drpc (https://a)", Endpoint{Name: "drpc", URL: "https://a"}.String())

	endpoints := EndpointsFromConfig(configs.Network{
		ChainID: 8009,
		Endpoints: []configs.Endpoint{
			{Name: "devnet", URL: "https://devnet.zama.ai"},
			{URL: "https://other", ChainID: 1},
		},
	})
	require.Len(t, endpoints, 2)
	assert.Equal(t, Endpoint{Name: "devnet", URL: "https://devnet.zama.ai", ExpectedChainID: 8009}, endpoints[0])
	assert.Equal(t, Endpoint{Name: "https://other", URL: "https://other", ExpectedChainID: 1}, endpoints[1])
}
