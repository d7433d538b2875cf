package paymail

import "errors"

var (
	// ErrInvalidHandle indicates a destination is not an alias@domain handle.
	ErrInvalidHandle = errors.New("paymail: invalid handle")

	// ErrDNSLookupFailed indicates an SRV lookup failed.
	ErrDNSLookupFailed = errors.New("paymail: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the upstream resolver did not
	// authenticate the answer.
	ErrDNSSECValidationFailed = errors.New("paymail: DNSSEC validation failed")

	// ErrDiscovery indicates .well-known/bsvalias could not be fetched or
	// parsed.
	ErrDiscovery = errors.New("paymail: capability discovery failed")

	// ErrResolution indicates the PKI endpoint returned no usable key.
	ErrResolution = errors.New("paymail: resolution failed")

	// ErrInvalidPubKey indicates a public key is not a valid compressed
	// secp256k1 key.
	ErrInvalidPubKey = errors.New("paymail: invalid compressed public key")
)
