package volume

import (
	"errors"
	"fmt"
	"math"

	"github.com/achilleasa/nimbus/types"
	"github.com/mrjoshuak/go-openexr/exr"
)

var ErrInvalidEnvironment = errors.New("volume: invalid environment image")

// An environment image in lat-long layout that provides the radiance
// arriving from outside the volume.
type Environment struct {
	width, height int

	// RGBA pixels, row-major.
	data []float32

	average types.Vec3
}

// Create an environment from RGBA float pixel data.
func NewEnvironment(width, height int, rgba []float32) (*Environment, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidEnvironment, width, height)
	}
	if len(rgba) != width*height*4 {
		return nil, fmt.Errorf("%w: expected %d values; got %d", ErrInvalidEnvironment, width*height*4, len(rgba))
	}

	env := &Environment{
		width:  width,
		height: height,
		data:   rgba,
	}

	var sum [3]float64
	for i := 0; i < len(rgba); i += 4 {
		sum[0] += float64(rgba[i])
		sum[1] += float64(rgba[i+1])
		sum[2] += float64(rgba[i+2])
	}
	n := float64(width * height)
	env.average = types.Vec3{float32(sum[0] / n), float32(sum[1] / n), float32(sum[2] / n)}

	return env, nil
}

// Create a single-color environment.
func UniformEnvironment(radiance types.Vec3) *Environment {
	env, _ := NewEnvironment(1, 1, []float32{radiance[0], radiance[1], radiance[2], 1})
	return env
}

// Get the image dimensions.
func (e *Environment) Size() (int, int) {
	return e.width, e.height
}

// Get the mean radiance over all pixels.
func (e *Environment) Average() types.Vec3 {
	return e.average
}

func (e *Environment) texel(x, y int) types.Vec3 {
	x = max(0, min(x, e.width-1))
	y = max(0, min(y, e.height-1))
	offset := (y*e.width + x) * 4
	return types.Vec3{e.data[offset], e.data[offset+1], e.data[offset+2]}
}

// Sample the image at uv with bilinear filtering and clamped edges.
func (e *Environment) Sample(uv types.Vec2) types.Vec3 {
	px := uv[0]*float32(e.width) - 0.5
	py := uv[1]*float32(e.height) - 0.5
	fx := float32(math.Floor(float64(px)))
	fy := float32(math.Floor(float64(py)))
	x, y := int(fx), int(fy)
	wx, wy := px-fx, py-fy

	top := e.texel(x, y).Lerp(e.texel(x+1, y), wx)
	bottom := e.texel(x, y+1).Lerp(e.texel(x+1, y+1), wx)
	return top.Lerp(bottom, wy)
}

// Get the radiance arriving from direction dir (pointing away from the
// volume). The lat-long mapping follows the OpenEXR environment map
// convention.
func (e *Environment) Lookup(dir types.Vec3) types.Vec3 {
	lat, lon := exr.LatLongFromDirection(exr.V3f{X: dir[0], Y: dir[1], Z: dir[2]})
	uv := types.Vec2{
		lon/(-2*math.Pi) + 0.5,
		lat/(-math.Pi) + 0.5,
	}
	return e.Sample(uv)
}
