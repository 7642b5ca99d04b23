package deploy

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/confidential-voting/voting-deployer/internal/contracts"
	"github.com/confidential-voting/voting-deployer/internal/network"
	"github.com/confidential-voting/voting-deployer/internal/testutils"
	"github.com/confidential-voting/voting-deployer/internal/wallet"
)

var artifactPath = filepath.Join("..", "contracts", "testdata", "ConfidentialVoting.json")

// countingTimer fires immediately and records every requested delay.
type countingTimer struct {
	mu      sync.Mutex
	delays  []time.Duration
	onAfter func(call int)
}

func (t *countingTimer) After(d time.Duration) <-chan time.Time {
	t.mu.Lock()
	t.delays = append(t.delays, d)
	call := len(t.delays)
	t.mu.Unlock()

	if t.onAfter != nil {
		t.onAfter(call)
	}

	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (t *countingTimer) recorded() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.delays...)
}

// scriptedFactory fails with errs[n-1] on attempt n and succeeds once the
// script is exhausted.
type scriptedFactory struct {
	errs     []error
	attempts []uint
}

func (f *scriptedFactory) Deploy(_ context.Context, attempt uint) (*Deployment, error) {
	f.attempts = append(f.attempts, attempt)
	if int(attempt) <= len(f.errs) {
		return nil, f.errs[attempt-1]
	}
	return &Deployment{Address: common.HexToAddress("0xc0ffee")}, nil
}

func loadArtifact(t *testing.T) *contracts.Artifact {
	t.Helper()
	artifact, err := contracts.LoadArtifact(artifactPath)
	require.NoError(t, err)
	return artifact
}

func chainKey(t *testing.T, chain *testutils.Chain) *wallet.Key {
	t.Helper()
	key, err := wallet.ParsePrivateKey(chain.PrivateKeyHex())
	require.NoError(t, err)
	return key
}

func chainSession(chain *testutils.Chain, client *testutils.Client) *network.Session {
	return &network.Session{
		Endpoint: network.Endpoint{Name: "simulated", URL: "http://simulated"},
		ChainID:  chain.ChainID,
		Client:   client,
	}
}
