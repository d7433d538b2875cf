package fee

import "errors"

var (
	// ErrInvalidFeeConfig indicates the fee schedule cannot be used: the
	// percentage is outside [0,100], the flat fee is negative, or the
	// collector address is rejected by the destination validator.
	ErrInvalidFeeConfig = errors.New("fee: invalid fee configuration")

	// ErrNilValidator indicates no destination validator was supplied.
	ErrNilValidator = errors.New("fee: destination validator is nil")
)
