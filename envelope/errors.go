package envelope

import "errors"

var (
	// ErrPayloadTooLarge indicates a payload exceeds the protocol maximum.
	ErrPayloadTooLarge = errors.New("envelope: payload too large")

	// ErrInvalidPayload indicates a required envelope field is empty or malformed.
	ErrInvalidPayload = errors.New("envelope: invalid payload")

	// ErrScriptBuild indicates the envelope script could not be assembled.
	ErrScriptBuild = errors.New("envelope: script build failed")

	// ErrNotEnvelope indicates a script does not carry the expected envelope.
	ErrNotEnvelope = errors.New("envelope: script is not an envelope")
)
