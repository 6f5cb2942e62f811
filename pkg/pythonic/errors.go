package pythonic

import (
	"errors"
	"fmt"
)

var (
	// ErrInputContract reports a caller error: a chunk that is not valid
	// UTF-8, a snapshot that does not extend the text seen so far, or input
	// submitted after Finish.
	ErrInputContract = errors.New("input contract violation")

	// ErrNestingTooDeep aborts a region whose nesting exceeds MaxDepth
	ErrNestingTooDeep = errors.New("nesting too deep")

	// ErrUnknownEngine is returned for an engine name that is not registered
	ErrUnknownEngine = errors.New("unknown engine")
)

// ContractError carries the reason for an input contract violation
type ContractError struct {
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInputContract, e.Reason)
}

// Unwrap lets errors.Is match ErrInputContract
func (e *ContractError) Unwrap() error {
	return ErrInputContract
}

func contractErr(format string, args ...any) error {
	return &ContractError{Reason: fmt.Sprintf(format, args...)}
}
