package dsp

import "errors"

// ErrInvalidArgument is wrapped by every input validation failure in the
// signal chain. Callers test for it with errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")
