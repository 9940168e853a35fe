package mapping

import "errors"

// ErrUndecodable запись не удалось разобрать ни в одну известную форму
var ErrUndecodable = errors.New("entity cannot be decoded into a known shape")
