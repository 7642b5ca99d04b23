package inspect

import (
	"bytes"
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confidential-voting/voting-deployer/configs"
	"github.com/confidential-voting/voting-deployer/internal/contracts"
	"github.com/confidential-voting/voting-deployer/internal/network"
	"github.com/confidential-voting/voting-deployer/internal/output"
	"github.com/confidential-voting/voting-deployer/internal/testutils"
)

var artifactPath = filepath.Join("..", "contracts", "testdata", "ConfidentialVoting.json")

func TestResolveAddress(t *testing.T) {
	address, err := ResolveAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3", "")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), address)

	_, err = ResolveAddress("0x123", "")
	require.Error(t, err)

	_, err = ResolveAddress("", "")
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "deployment.yaml")
	require.NoError(t, output.Save(path, &output.Record{Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3", Timestamp: time.Now().UTC()}))
	address, err = ResolveAddress("", path)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"), address)
}

func setup(t *testing.T) (*Service, configs.Config, *testutils.Chain, *testutils.Client) {
	t.Helper()

	chain := testutils.NewChain(t)
	client := chain.Client()
	dial := func(context.Context, string) (network.Client, error) { return client, nil }

	cfg := configs.Config{
		Network: "sim",
		Networks: map[configs.NetworkName]configs.Network{
			"sim": {Endpoints: []configs.Endpoint{{Name: "sim", URL: "http://sim"}}},
		},
		Deploy: configs.Deploy{Artifact: artifactPath},
	}
	return NewService(network.NewProber(dial, time.Second, 0)), cfg, chain, client
}

func TestInspect(t *testing.T) {
	service, cfg, chain, client := setup(t)

	artifact, err := contracts.LoadArtifact(artifactPath)
	require.NoError(t, err)
	opts, err := bind.NewKeyedTransactorWithChainID(chain.Key, chain.ChainID)
	require.NoError(t, err)
	address, _, _, err := bind.DeployContract(opts, artifact.ABI, artifact.Bytecode, client)
	require.NoError(t, err)

	report, err := service.Inspect(context.Background(), cfg, address)
	require.NoError(t, err)
	assert.Equal(t, address, report.Address)
	assert.Equal(t, uint64(testutils.SimulatedChainID), report.ChainID)
	require.NotNil(t, report.State)
	assert.Equal(t, big.NewInt(1), report.State.TotalVoters)
	assert.Error(t, report.ReadErr)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, report))
	assert.Contains(t, buf.String(), address.Hex())
	assert.Contains(t, buf.String(), "voting active: true")
	assert.Contains(t, buf.String(), "total voters:  1")
	assert.Contains(t, buf.String(), "warning:")
}

func TestInspectNoContract(t *testing.T) {
	service, cfg, _, _ := setup(t)

	_, err := service.Inspect(context.Background(), cfg, common.HexToAddress("0x1234"))
	require.ErrorIs(t, err, contracts.ErrNoCode)
}

func TestRenderVotingWindow(t *testing.T) {
	report := &Report{
		Address: common.HexToAddress("0x01"),
		ChainID: 8009,
		State: &contracts.VotingState{
			OptionsCount: big.NewInt(3),
			Status:       &contracts.VotingStatus{Active: true, StartTime: big.NewInt(0), EndTime: big.NewInt(86400)},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, report))
	assert.Contains(t, buf.String(), "vote options:  3")
	assert.Contains(t, buf.String(), "voting starts: 1970-01-01T00:00:00Z")
	assert.Contains(t, buf.String(), "voting ends:   1970-01-02T00:00:00Z")
	assert.Contains(t, buf.String(), "voting active: true")
}
