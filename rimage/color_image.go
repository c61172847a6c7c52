package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// ColorImage is a packed RGB888 image, three bytes per pixel in row-major order.
type ColorImage struct {
	width, height int
	pix           []byte
}

// NewColorImage returns a black image of the given size.
func NewColorImage(width, height int) *ColorImage {
	return &ColorImage{width: width, height: height, pix: make([]byte, width*height*3)}
}

// NewColorImageFromRGB wraps an existing RGB888 buffer. The buffer is not copied.
func NewColorImageFromRGB(width, height int, pix []byte) (*ColorImage, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("bad width or height for color image %dx%d", width, height)
	}
	if len(pix) != width*height*3 {
		return nil, errors.Errorf("rgb buffer has %d bytes but %dx%d needs %d", len(pix), width, height, width*height*3)
	}
	return &ColorImage{width: width, height: height, pix: pix}, nil
}

// ConvertToColorImage copies any image into a ColorImage, dropping alpha.
func ConvertToColorImage(img image.Image) *ColorImage {
	if ci, ok := img.(*ColorImage); ok {
		return ci
	}
	bounds := img.Bounds()
	ci := NewColorImage(bounds.Dx(), bounds.Dy())
	for y := 0; y < ci.height; y++ {
		for x := 0; x < ci.width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			ci.SetRGB(x, y, uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
	}
	return ci
}

// Width returns the horizontal size of the image.
func (ci *ColorImage) Width() int {
	return ci.width
}

// Height returns the vertical size of the image.
func (ci *ColorImage) Height() int {
	return ci.height
}

// Pix returns the packed RGB buffer.
func (ci *ColorImage) Pix() []byte {
	return ci.pix
}

func (ci *ColorImage) offset(x, y int) int {
	return ((y * ci.width) + x) * 3
}

// RGB returns the components at (x, y).
func (ci *ColorImage) RGB(x, y int) (uint8, uint8, uint8) {
	i := ci.offset(x, y)
	return ci.pix[i], ci.pix[i+1], ci.pix[i+2]
}

// SetRGB sets the components at (x, y).
func (ci *ColorImage) SetRGB(x, y int, r, g, b uint8) {
	i := ci.offset(x, y)
	ci.pix[i], ci.pix[i+1], ci.pix[i+2] = r, g, b
}

// ColorModel is RGBA; alpha is always opaque.
func (ci *ColorImage) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds returns the rectangle dimensions of the image.
func (ci *ColorImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, ci.width, ci.height)
}

// At returns the pixel as an opaque color.RGBA.
func (ci *ColorImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= ci.width || y >= ci.height {
		return color.RGBA{}
	}
	r, g, b := ci.RGB(x, y)
	return color.RGBA{r, g, b, 255}
}
