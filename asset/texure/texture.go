package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	"github.com/achilleasa/nimbus/asset"
	"github.com/mrjoshuak/go-openexr/exr"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

var exrMagic = []byte{0x76, 0x2f, 0x31, 0x01}

// A texture image converted to linear float32 RGBA.
type Texture struct {
	Format Format

	Width  int
	Height int

	Data []float32
}

// Create a new texture from a Resource. OpenEXR images are loaded as-is;
// 8 and 16-bit images (png, jpeg, tiff, bmp) are assumed to be sRGB encoded
// and are linearized.
func New(res *asset.Resource) (*Texture, error) {
	data, err := io.ReadAll(res)
	if err != nil {
		return nil, fmt.Errorf("texture: could not read %s: %w", res.Path(), err)
	}

	var tex *Texture
	if bytes.HasPrefix(data, exrMagic) {
		tex, err = decodeEXR(data)
	} else {
		tex, err = decodeImage(data)
	}
	if err != nil {
		return nil, fmt.Errorf("texture: could not decode %s: %w", res.Path(), err)
	}
	if tex.Width == 0 || tex.Height == 0 {
		return nil, fmt.Errorf("texture: %s has zero size", res.Path())
	}
	return tex, nil
}

func decodeEXR(data []byte) (*Texture, error) {
	img, err := exr.Decode(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	tex := &Texture{
		Format: Rgba32F,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Data:   make([]float32, bounds.Dx()*bounds.Dy()*4),
	}
	wOffset := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.RGBA(x, y)
			tex.Data[wOffset] = r
			tex.Data[wOffset+1] = g
			tex.Data[wOffset+2] = b
			tex.Data[wOffset+3] = a
			wOffset += 4
		}
	}
	return tex, nil
}

func decodeImage(data []byte) (*Texture, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	texFmt := Rgba8
	switch img.ColorModel() {
	case color.RGBA64Model, color.NRGBA64Model, color.Gray16Model:
		texFmt = Rgba16
	}

	bounds := img.Bounds()
	tex := &Texture{
		Format: texFmt,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Data:   make([]float32, bounds.Dx()*bounds.Dy()*4),
	}
	wOffset := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			tex.Data[wOffset] = srgbToLinear(float32(c.R) / 0xffff)
			tex.Data[wOffset+1] = srgbToLinear(float32(c.G) / 0xffff)
			tex.Data[wOffset+2] = srgbToLinear(float32(c.B) / 0xffff)
			tex.Data[wOffset+3] = float32(c.A) / 0xffff
			wOffset += 4
		}
	}
	return tex, nil
}

func srgbToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return float32(math.Pow((float64(v)+0.055)/1.055, 2.4))
}
