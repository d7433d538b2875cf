package builder

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("builder: required parameter is nil")

	// ErrValidation indicates a malformed request, detected before any
	// network or selection work.
	ErrValidation = errors.New("builder: invalid request")

	// ErrNetwork indicates a unit source or fee market failure.
	ErrNetwork = errors.New("builder: network error")

	// ErrBroadcast indicates the network refused a signed transaction.
	ErrBroadcast = errors.New("builder: broadcast failed")
)
