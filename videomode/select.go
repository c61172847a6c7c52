package videomode

import (
	"math"

	"github.com/pkg/errors"
)

// Target is the resolution a caller wants both streams to produce, with the pixel format each
// stream should use.
type Target struct {
	Width       int
	Height      int
	DepthFormat PixelFormat
	ColorFormat PixelFormat
}

// BestFit returns the index of the catalog entry with desiredFormat whose resolution is closest,
// by Euclidean distance, to targetWidth x targetHeight. Ties go to the lowest index.
func BestFit(catalog Catalog, targetWidth, targetHeight int, desiredFormat PixelFormat) (int, error) {
	best := -1
	bestDist := math.Inf(1)
	for _, i := range catalog.Filter(desiredFormat) {
		m := catalog.modes[i]
		dist := math.Hypot(float64(m.Width-targetWidth), float64(m.Height-targetHeight))
		// strict comparison keeps the first of equally close entries
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return 0, errors.Wrapf(ErrNoMatchingMode, "%s among %d modes", desiredFormat, catalog.Len())
	}
	return best, nil
}
