package tagstore

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("tagstore: required parameter is nil")

	// ErrNotFound indicates no tag exists for the outpoint.
	ErrNotFound = errors.New("tagstore: tag not found")
)
