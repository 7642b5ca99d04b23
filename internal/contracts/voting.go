package contracts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/confidential-voting/voting-deployer/internal/logger"
)

const (
	methodOwner           = "owner"
	methodVotingActive    = "votingActive"
	methodTotalVoters     = "totalVoters"
	methodGetTotalVoters  = "getTotalVoters"
	methodGetVotingStatus = "getVotingStatus"
	methodGetOptionsCount = "getVoteOptionsCount"
)

// ErrNoCode is returned when the target address holds no contract.
var ErrNoCode = errors.New("no contract code at address")

type (
	// VotingReader performs read-only calls against a deployed voting contract.
	// Methods absent from the ABI are skipped.
	VotingReader struct {
		address  common.Address
		abi      abi.ABI
		caller   bind.ContractCaller
		contract *bind.BoundContract
		logger   *slog.Logger
	}

	VotingStatus struct {
		Active    bool
		StartTime *big.Int
		EndTime   *big.Int
	}

	// VotingState holds the values that could be read. Nil fields were
	// either not exposed by the ABI or failed to read.
	VotingState struct {
		Address      common.Address
		Owner        *common.Address
		VotingActive *bool
		TotalVoters  *big.Int
		OptionsCount *big.Int
		Status       *VotingStatus
	}
)

// NewVotingReader binds the ABI to address for calls through caller.
func NewVotingReader(address common.Address, parsed abi.ABI, caller bind.ContractCaller) *VotingReader {
	return &VotingReader{
		address:  address,
		abi:      parsed,
		caller:   caller,
		contract: bind.NewBoundContract(address, parsed, caller, nil, nil),
		logger:   logger.Named("voting_reader"),
	}
}

// Read returns whatever state could be read. The error joins every failed
// call; a non-nil state is returned unless there is no code at the address.
func (r *VotingReader) Read(ctx context.Context) (*VotingState, error) {
	code, err := r.caller.CodeAt(ctx, r.address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch code at %s: %w", r.address.Hex(), err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoCode, r.address.Hex())
	}

	state := &VotingState{Address: r.address}
	var errs []error

	if out, ok, err := r.call(ctx, methodOwner); err != nil {
		errs = append(errs, err)
	} else if ok {
		owner, castOK := out[0].(common.Address)
		if castOK {
			state.Owner = &owner
		} else {
			errs = append(errs, unexpectedType(methodOwner, out[0]))
		}
	}

	if out, ok, err := r.call(ctx, methodVotingActive); err != nil {
		errs = append(errs, err)
	} else if ok {
		active, castOK := out[0].(bool)
		if castOK {
			state.VotingActive = &active
		} else {
			errs = append(errs, unexpectedType(methodVotingActive, out[0]))
		}
	}

	votersMethod := methodTotalVoters
	if _, exists := r.abi.Methods[votersMethod]; !exists {
		votersMethod = methodGetTotalVoters
	}
	if out, ok, err := r.call(ctx, votersMethod); err != nil {
		errs = append(errs, err)
	} else if ok {
		if state.TotalVoters, err = asBigInt(votersMethod, out[0]); err != nil {
			errs = append(errs, err)
		}
	}

	if out, ok, err := r.call(ctx, methodGetOptionsCount); err != nil {
		errs = append(errs, err)
	} else if ok {
		if state.OptionsCount, err = asBigInt(methodGetOptionsCount, out[0]); err != nil {
			errs = append(errs, err)
		}
	}

	if out, ok, err := r.call(ctx, methodGetVotingStatus); err != nil {
		errs = append(errs, err)
	} else if ok {
		status, err := votingStatus(out)
		if err != nil {
			errs = append(errs, err)
		} else {
			state.Status = status
		}
	}

	return state, errors.Join(errs...)
}

// call reports ok=false without error when the ABI has no such method.
func (r *VotingReader) call(ctx context.Context, method string) ([]any, bool, error) {
	if _, exists := r.abi.Methods[method]; !exists {
		r.logger.With("method", method).Debug("method not in ABI, skipping")
		return nil, false, nil
	}

	var out []any
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return nil, false, fmt.Errorf("failed to call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, false, fmt.Errorf("%s returned no values", method)
	}

	return out, true, nil
}

func votingStatus(out []any) (*VotingStatus, error) {
	if len(out) < 3 {
		return nil, fmt.Errorf("%s returned %d values, expected 3", methodGetVotingStatus, len(out))
	}

	active, ok := out[0].(bool)
	if !ok {
		return nil, unexpectedType(methodGetVotingStatus, out[0])
	}
	start, err := asBigInt(methodGetVotingStatus, out[1])
	if err != nil {
		return nil, err
	}
	end, err := asBigInt(methodGetVotingStatus, out[2])
	if err != nil {
		return nil, err
	}

	return &VotingStatus{Active: active, StartTime: start, EndTime: end}, nil
}

func asBigInt(method string, value any) (*big.Int, error) {
	n, ok := value.(*big.Int)
	if !ok {
		return nil, unexpectedType(method, value)
	}
	return n, nil
}

func unexpectedType(method string, value any) error {
	return fmt.Errorf("%s returned unexpected type %T", method, value)
}
