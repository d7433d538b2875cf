package evm

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("evm: required parameter is nil")

	// ErrValidation indicates a malformed address, amount, key or fee option.
	ErrValidation = errors.New("evm: invalid request")

	// ErrNetwork indicates a nonce, fee market or gas estimation failure.
	ErrNetwork = errors.New("evm: network error")

	// ErrSigningFailed indicates a transaction could not be signed.
	ErrSigningFailed = errors.New("evm: signing failed")

	// ErrBroadcast indicates the node refused a signed transaction.
	ErrBroadcast = errors.New("evm: broadcast failed")
)
