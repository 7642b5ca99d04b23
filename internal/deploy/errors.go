package deploy

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInsufficientBalance means the signer cannot pay for the deployment.
	ErrInsufficientBalance = errors.New("insufficient balance for deployment")
	// ErrDeploymentReverted means the deployment transaction was mined with a failed status.
	ErrDeploymentReverted = errors.New("deployment transaction reverted")
	// ErrNonceConflict means a freshly pinned nonce was already used.
	ErrNonceConflict = errors.New("nonce conflict")
)

// fatalFragments are node error messages that a retry cannot fix.
var fatalFragments = []string{
	"insufficient funds",
	"invalid sender",
	"invalid chain id",
	"chain id mismatch",
	"execution reverted",
	"intrinsic gas too low",
	"exceeds block gas limit",
	"abi:",
	"failed to parse private key",
}

// IsRetryable is the default retry classifier: transport failures, timeouts
// and pool rejections such as "underpriced" or "already known" are retried,
// everything the signer or contract has to fix is not.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrDeploymentReverted),
		errors.Is(err, ErrNonceConflict):
		return false
	}

	message := strings.ToLower(err.Error())
	for _, fragment := range fatalFragments {
		if strings.Contains(message, fragment) {
			return false
		}
	}

	return true
}

// RetryAll retries every error.
func RetryAll(error) bool {
	return true
}

func isAlreadyKnown(err error) bool {
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "already known") || strings.Contains(message, "known transaction")
}

func isNonceTooLow(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "nonce too low")
}
