package ai

import "errors"

var (
	// ErrClassification indicates the classification backend failed or
	// returned something that could not be interpreted.
	ErrClassification = errors.New("classification failed")

	// ErrUnknownLabel indicates a label outside the known sentiment set.
	ErrUnknownLabel = errors.New("unknown sentiment label")
)
