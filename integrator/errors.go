package integrator

import "errors"

var (
	ErrInvalidParams  = errors.New("integrator: invalid estimator parameters")
	ErrLengthMismatch = errors.New("integrator: batch inputs have different lengths")
	ErrUnknownMode    = errors.New("integrator: unknown render mode")
)
