package report

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("report: required parameter is nil")

	// ErrNotSigned indicates a result was requested for an unsigned plan.
	ErrNotSigned = errors.New("report: plan is not signed")

	// ErrNonceGap indicates a fee leg whose nonce does not follow the primary.
	ErrNonceGap = errors.New("report: fee transaction nonce gap")
)
