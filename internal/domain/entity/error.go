package entity

import "errors"

var (
	ErrNotAnObject      = errors.New("fields are not a JSON object")
	ErrUnsupportedValue = errors.New("unsupported value for canonical JSON")
)
