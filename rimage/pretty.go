package rimage

import (
	"image"

	"github.com/lucasb-eyer/go-colorful"
)

// ToPrettyPicture renders a depth map for people: near pixels orange, far pixels blue, missing
// pixels black. Depths are clamped to [hardMin, hardMax] before scaling; zero bounds are ignored.
func (dm *DepthMap) ToPrettyPicture(hardMin, hardMax Depth) *image.RGBA {
	lowest, highest := dm.MinMax()
	if hardMin > 0 && lowest < hardMin {
		lowest = hardMin
	}
	if hardMax > 0 && highest > hardMax {
		highest = hardMax
	}

	img := image.NewRGBA(dm.Bounds())
	span := float64(highest) - float64(lowest)
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			z := dm.GetDepth(x, y)
			if z == 0 {
				continue
			}
			if z < lowest {
				z = lowest
			}
			if z > highest {
				z = highest
			}
			ratio := 0.0
			if span > 0 {
				ratio = float64(z-lowest) / span
			}
			img.Set(x, y, colorful.Hsv(30+200*ratio, 1, 1))
		}
	}
	return img
}
