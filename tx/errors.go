package tx

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("tx: required parameter is nil")

	// ErrSigningFailed indicates transaction signing failed.
	ErrSigningFailed = errors.New("tx: signing failed")

	// ErrScriptBuild indicates script construction failed.
	ErrScriptBuild = errors.New("tx: script build failed")

	// ErrInvalidAddress indicates a destination is not a valid P2PKH address.
	ErrInvalidAddress = errors.New("tx: invalid address")

	// ErrInvalidKey indicates a signing key is not a valid WIF string.
	ErrInvalidKey = errors.New("tx: invalid signing key")

	// ErrKeyMismatch indicates an input is not spendable by the signing key.
	ErrKeyMismatch = errors.New("tx: input not locked to signing key")

	// ErrDustOutput indicates a value-bearing output below the dust limit.
	ErrDustOutput = errors.New("tx: output below dust limit")

	// ErrUnbalanced indicates inputs do not equal outputs plus fee.
	ErrUnbalanced = errors.New("tx: plan is not balanced")

	// ErrInvalidTransition indicates a plan operation was attempted in the wrong state.
	ErrInvalidTransition = errors.New("tx: invalid plan state transition")

	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("tx: invalid parameters")
)
