package sync

import "errors"

var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrEmptyBatch     = errors.New("empty batch")
	ErrMissingDevice  = errors.New("device id is required")
)
