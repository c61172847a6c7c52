package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Depth is the depth value of a single pixel, in the units of the stream's pixel format.
// Zero means no reading.
type Depth uint16

// MaxDepth is the largest representable depth value.
const MaxDepth = Depth(65535)

// DepthMap is a row-major grid of depth values. It implements image.Image as 16-bit gray.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns a zeroed DepthMap of the given size.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// NewDepthMapFromData wraps an existing row-major slice. The slice is not copied.
func NewDepthMapFromData(width, height int, data []Depth) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("bad width or height for depth map %dx%d", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("depth data has %d pixels but %dx%d needs %d", len(data), width, height, width*height)
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// Width returns the horizontal size of the depth map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical size of the depth map.
func (dm *DepthMap) Height() int {
	return dm.height
}

// HasData is true when the map has a non-empty buffer.
func (dm *DepthMap) HasData() bool {
	return dm.width > 0 && len(dm.data) > 0
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// Contains is true if the point is inside the map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// Get returns the depth at a point.
func (dm *DepthMap) Get(p image.Point) Depth {
	return dm.data[dm.kxy(p.X, p.Y)]
}

// GetDepth returns the depth at (x, y).
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[dm.kxy(x, y)]
}

// Set sets the depth at (x, y).
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[dm.kxy(x, y)] = val
}

// Data returns the underlying row-major buffer.
func (dm *DepthMap) Data() []Depth {
	return dm.data
}

// MinMax returns the smallest non-zero and the largest depth in the map.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	lowest, highest := MaxDepth, Depth(0)
	for _, d := range dm.data {
		if d == 0 {
			continue
		}
		if d < lowest {
			lowest = d
		}
		if d > highest {
			highest = d
		}
	}
	if highest == 0 {
		return 0, 0
	}
	return lowest, highest
}

// Clone returns a deep copy.
func (dm *DepthMap) Clone() *DepthMap {
	data := make([]Depth, len(dm.data))
	copy(data, dm.data)
	return &DepthMap{width: dm.width, height: dm.height, data: data}
}

// ColorModel is 16-bit gray.
func (dm *DepthMap) ColorModel() color.Model {
	return color.Gray16Model
}

// Bounds returns the rectangle dimensions of the map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// At returns the depth as a color.Gray16.
func (dm *DepthMap) At(x, y int) color.Color {
	if !dm.Contains(x, y) {
		return color.Gray16{}
	}
	return color.Gray16{uint16(dm.GetDepth(x, y))}
}

// ToGray16 copies the map into a standard library 16-bit gray image.
func (dm *DepthMap) ToGray16() *image.Gray16 {
	img := image.NewGray16(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			img.SetGray16(x, y, color.Gray16{uint16(dm.GetDepth(x, y))})
		}
	}
	return img
}

// ConvertImageToDepthMap builds a DepthMap from an image. Gray16 images keep their values;
// anything else goes through the gray16 color model.
func ConvertImageToDepthMap(img image.Image) (*DepthMap, error) {
	switch ii := img.(type) {
	case nil:
		return nil, errors.New("no image to convert to a depth map")
	case *DepthMap:
		return ii, nil
	case *image.Gray16:
		bounds := ii.Bounds()
		dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				dm.Set(x, y, Depth(ii.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
		return dm, nil
	default:
		bounds := img.Bounds()
		if bounds.Empty() {
			return nil, errors.New("cannot convert an empty image to a depth map")
		}
		dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				g, _ := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				dm.Set(x, y, Depth(g.Y))
			}
		}
		return dm, nil
	}
}
