package patient

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("empty identifier")
)
