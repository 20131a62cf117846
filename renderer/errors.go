package renderer

import "errors"

var (
	ErrNoTracers       = errors.New("renderer: no tracers attached")
	ErrSceneNotDefined = errors.New("renderer: no scene defined")
	ErrInvalidFrame    = errors.New("renderer: frame does not match the configured dimensions")
	ErrInterrupted     = errors.New("renderer: interrupted while rendering")
)
