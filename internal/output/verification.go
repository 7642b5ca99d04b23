package output

import (
	"errors"

	"github.com/confidential-voting/voting-deployer/internal/contracts"
)

// NewVerification converts the reads of a VotingReader. Each joined read
// error becomes a warning. It returns nil when nothing was read.
func NewVerification(state *contracts.VotingState, readErr error) *Verification {
	verification := &Verification{}

	if state != nil {
		if state.Owner != nil {
			verification.Owner = state.Owner.Hex()
		}
		verification.VotingActive = state.VotingActive
		if state.Status != nil && verification.VotingActive == nil {
			active := state.Status.Active
			verification.VotingActive = &active
		}
		if state.TotalVoters != nil {
			verification.TotalVoters = state.TotalVoters.String()
		}
	}

	if readErr != nil {
		var joined interface{ Unwrap() []error }
		if errors.As(readErr, &joined) {
			for _, err := range joined.Unwrap() {
				verification.Warnings = append(verification.Warnings, err.Error())
			}
		} else {
			verification.Warnings = append(verification.Warnings, readErr.Error())
		}
	}

	if verification.Owner == "" && verification.VotingActive == nil && verification.TotalVoters == "" && len(verification.Warnings) == 0 {
		return nil
	}
	return verification
}
