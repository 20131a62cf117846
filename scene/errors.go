package scene

import "errors"

var (
	ErrInvalidResolution  = errors.New("scene: resolution must be a power of two")
	ErrOutOfMemory        = errors.New("scene: volume exceeds the voxel budget")
	ErrOutOfBounds        = errors.New("scene: voxel coordinates out of bounds")
	ErrNotReady           = errors.New("scene: volume not updated; call Update first")
	ErrClosed             = errors.New("scene: volume closed")
	ErrDegenerateLight    = errors.New("scene: light direction must be non-zero and finite")
	ErrStaleTransmittance = errors.New("scene: transmittance field built for different light parameters")
	ErrDataSize           = errors.New("scene: density data size does not match resolution")
)
