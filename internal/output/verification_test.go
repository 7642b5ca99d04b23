package output

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confidential-voting/voting-deployer/internal/contracts"
)

func TestNewVerification(t *testing.T) {
	owner := common.HexToAddress("0x01")
	active := false
	state := &contracts.VotingState{Owner: &owner, VotingActive: &active, TotalVoters: big.NewInt(7)}

	verification := NewVerification(state, errors.Join(errors.New("a"), errors.New("b")))
	require.NotNil(t, verification)
	assert.Equal(t, owner.Hex(), verification.Owner)
	require.NotNil(t, verification.VotingActive)
	assert.False(t, *verification.VotingActive)
	assert.Equal(t, "7", verification.TotalVoters)
	assert.Equal(t, []string{"a", "b"}, verification.Warnings)
}

func TestNewVerificationStatusFallback(t *testing.T) {
	state := &contracts.VotingState{Status: &contracts.VotingStatus{Active: true, StartTime: big.NewInt(1), EndTime: big.NewInt(2)}}

	verification := NewVerification(state, nil)
	require.NotNil(t, verification)
	require.NotNil(t, verification.VotingActive)
	assert.True(t, *verification.VotingActive)
	assert.Empty(t, verification.Warnings)
}

func TestNewVerificationSingleError(t *testing.T) {
	verification := NewVerification(nil, fmt.Errorf("no code: %w", contracts.ErrNoCode))
	require.NotNil(t, verification)
	assert.Len(t, verification.Warnings, 1)
}

func TestNewVerificationEmpty(t *testing.T) {
	assert.Nil(t, NewVerification(&contracts.VotingState{}, nil))
	assert.Nil(t, NewVerification(nil, nil))
}
