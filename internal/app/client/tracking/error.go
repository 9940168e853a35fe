package tracking

import "errors"

var ErrEmptyEntityID = errors.New("empty entity id")
