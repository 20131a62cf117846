package texture

// The precision of the source image. Texture data is always stored as linear
// float32 RGBA regardless of the source format.
type Format uint32

const (
	Rgba8 Format = iota
	Rgba16
	Rgba32F
)

func (f Format) String() string {
	switch f {
	case Rgba8:
		return "rgba8"
	case Rgba16:
		return "rgba16"
	case Rgba32F:
		return "rgba32f"
	}
	return "unknown"
}
