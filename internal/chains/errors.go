package chains

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedChain reports a chain without a registered fetcher.
	ErrUnsupportedChain = errors.New("unsupported chain")

	// ErrInvalidAddress reports a malformed address. Callers can branch on it
	// to distinguish bad input from upstream failures.
	ErrInvalidAddress = errors.New("invalid address")
)

// ProviderError wraps an upstream balance provider failure. It is
// deliberately distinct from ErrInvalidAddress: a provider outage aborts one
// adapter call without implicating the address.
type ProviderError struct {
	Chain  Chain
	Status int
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s provider error (%d): %v", e.Chain, e.Status, e.Err)
	}
	return fmt.Sprintf("%s provider error: %v", e.Chain, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerErr(chain Chain, status int, err error) *ProviderError {
	return &ProviderError{Chain: chain, Status: status, Err: err}
}
