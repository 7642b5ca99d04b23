package network

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoEndpointAvailable = errors.New("no RPC endpoint available")
	ErrChainIDMismatch     = errors.New("chain id mismatch")
)

type (
	// EndpointUnreachableError records why a single endpoint failed its probe.
	EndpointUnreachableError struct {
		Endpoint Endpoint
		Err      error
	}

	// NoEndpointAvailableError is returned when every endpoint failed. It
	// carries one failure per endpoint, in probe order.
	NoEndpointAvailableError struct {
		Failures []*EndpointUnreachableError
	}
)

func (e *EndpointUnreachableError) Error() string {
	return fmt.Sprintf("endpoint %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *EndpointUnreachableError) Unwrap() error {
	return e.Err
}

func (e *NoEndpointAvailableError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("%s: no endpoints configured", ErrNoEndpointAvailable)
	}

	reasons := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		reasons = append(reasons, failure.Error())
	}
	return fmt.Sprintf("%s: tried %d endpoints: %s", ErrNoEndpointAvailable, len(e.Failures), strings.Join(reasons, "; "))
}

func (e *NoEndpointAvailableError) Is(target error) bool {
	return target == ErrNoEndpointAvailable
}

func (e *NoEndpointAvailableError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, failure := range e.Failures {
		errs = append(errs, failure)
	}
	return errs
}
