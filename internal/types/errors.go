package types

import "errors"

// Workflow error taxonomy. Services wrap these with fmt.Errorf("...: %w", err)
// so pkg/response can map them to HTTP codes with errors.Is.
var (
	// ErrNotFound means a referenced entity (product, user, trade request,
	// order, payment) does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidTransition means an operation was attempted on an entity whose
	// current status cannot support it.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrValidation means a malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrGateway means the external payment provider call failed.
	ErrGateway = errors.New("payment gateway error")

	// ErrConflict means a concurrent write won; the caller should re-read and
	// retry.
	ErrConflict = errors.New("conflicting update")
)
