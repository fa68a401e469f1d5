package shared

import "errors"

// ErrValidation indicates rejected input.
var ErrValidation = errors.New("validation failed")
