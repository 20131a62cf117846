package renderer

import (
	"fmt"
	"strings"

	"github.com/achilleasa/nimbus/types"
)

// Tone mapping operators.
type ToneType uint8

const (
	ToneLinear ToneType = iota
	ToneReinhard
	ToneACES
	ToneUncharted
)

// Display gamma applied after tone mapping.
const displayGamma float32 = 2.2

func (t ToneType) String() string {
	switch t {
	case ToneLinear:
		return "linear"
	case ToneReinhard:
		return "reinhard"
	case ToneACES:
		return "aces"
	case ToneUncharted:
		return "uncharted"
	}
	return fmt.Sprintf("ToneType(%d)", uint8(t))
}

// Parse a tone mapping operator name.
func ParseToneType(name string) (ToneType, error) {
	for t := ToneLinear; t <= ToneUncharted; t++ {
		if strings.EqualFold(name, t.String()) {
			return t, nil
		}
	}
	return ToneLinear, fmt.Errorf("renderer: unknown tone mapping operator %q", name)
}

// Map a linear channel value to [0, 1].
func (t ToneType) apply(v float32) float32 {
	switch t {
	case ToneReinhard:
		v = v / (1 + v)
	case ToneACES:
		v = (v * (2.51*v + 0.03)) / (v*(2.43*v+0.59) + 0.14)
	case ToneUncharted:
		const whitePoint = 11.2
		v = uncharted(2*v) / uncharted(whitePoint)
	}
	return types.Clamp(v, 0, 1)
}

func uncharted(x float32) float32 {
	const (
		a = 0.15
		b = 0.50
		c = 0.10
		d = 0.20
		e = 0.02
		f = 0.30
	)
	return ((x*(a*x+c*b) + d*e) / (x*(a*x+b) + d*f)) - e/f
}

// Tone map an exposed linear color and pack it as RGBA8 with red in the
// lowest byte and an opaque alpha.
func (t ToneType) Pack(color types.Vec3, exposure float32) uint32 {
	packed := uint32(0xff) << 24
	for c := 0; c < 3; c++ {
		v := color[c] * exposure
		if !types.IsFinite(v) || v < 0 {
			v = 0
		}
		v = types.Pow(t.apply(v), 1/displayGamma)
		packed |= uint32(v*255+0.5) << (8 * c)
	}
	return packed
}
