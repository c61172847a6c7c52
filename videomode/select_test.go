package videomode

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func primeSenseDepthModes() Catalog {
	return NewCatalog(
		VideoMode{Width: 320, Height: 240, PixelFormat: Depth1MM, FrameRate: 30},
		VideoMode{Width: 320, Height: 240, PixelFormat: Depth100UM, FrameRate: 30},
		VideoMode{Width: 640, Height: 480, PixelFormat: Depth1MM, FrameRate: 30},
		VideoMode{Width: 640, Height: 480, PixelFormat: Depth100UM, FrameRate: 30},
		VideoMode{Width: 160, Height: 120, PixelFormat: Depth1MM, FrameRate: 30},
	)
}

func TestBestFitExactAndNearest(t *testing.T) {
	catalog := primeSenseDepthModes()

	idx, err := BestFit(catalog, 640, 480, Depth1MM)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idx, test.ShouldEqual, 2)

	idx, err = BestFit(catalog, 640, 480, Depth100UM)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idx, test.ShouldEqual, 3)

	idx, err = BestFit(catalog, 200, 150, Depth1MM)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idx, test.ShouldEqual, 4)

	idx, err = BestFit(catalog, 1920, 1080, Depth1MM)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idx, test.ShouldEqual, 2)
}

func TestBestFitTieGoesToFirst(t *testing.T) {
	catalog := NewCatalog(
		VideoMode{Width: 640, Height: 480, PixelFormat: RGB888},
		VideoMode{Width: 320, Height: 240, PixelFormat: RGB888, FrameRate: 60},
		VideoMode{Width: 320, Height: 240, PixelFormat: RGB888, FrameRate: 30},
		VideoMode{Width: 240, Height: 320, PixelFormat: RGB888},
	)
	idx, err := BestFit(catalog, 320, 240, RGB888)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idx, test.ShouldEqual, 1)

	// (280, 280) is equally far from 320x240 and 240x320.
	idx, err = BestFit(catalog, 280, 280, RGB888)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, idx, test.ShouldEqual, 1)
}

func TestBestFitNoMatchingMode(t *testing.T) {
	_, err := BestFit(primeSenseDepthModes(), 640, 480, RGB888)
	test.That(t, errors.Is(err, ErrNoMatchingMode), test.ShouldBeTrue)

	_, err = BestFit(NewCatalog(), 640, 480, Depth1MM)
	test.That(t, errors.Is(err, ErrNoMatchingMode), test.ShouldBeTrue)
}

func TestBestFitIsMinimalAndStable(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	formats := []PixelFormat{Depth1MM, RGB888, YUV422}
	sizes := []int{80, 160, 320, 640, 1280}

	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.Intn(12)
		modes := make([]VideoMode, n)
		for i := range modes {
			modes[i] = VideoMode{
				Width:       sizes[rng.Intn(len(sizes))],
				Height:      sizes[rng.Intn(len(sizes))],
				PixelFormat: formats[rng.Intn(len(formats))],
			}
		}
		catalog := NewCatalog(modes...)
		w, h := 1+rng.Intn(1500), 1+rng.Intn(1500)
		format := formats[rng.Intn(len(formats))]

		idx, err := BestFit(catalog, w, h, format)
		if len(catalog.Filter(format)) == 0 {
			test.That(t, errors.Is(err, ErrNoMatchingMode), test.ShouldBeTrue)
			continue
		}
		test.That(t, err, test.ShouldBeNil)
		test.That(t, modes[idx].PixelFormat, test.ShouldEqual, format)

		dist := func(m VideoMode) float64 {
			return math.Hypot(float64(m.Width-w), float64(m.Height-h))
		}
		chosen := dist(modes[idx])
		for j, m := range modes {
			if m.PixelFormat != format {
				continue
			}
			test.That(t, dist(m), test.ShouldBeGreaterThanOrEqualTo, chosen)
			if j < idx {
				test.That(t, dist(m), test.ShouldBeGreaterThan, chosen)
			}
		}
	}
}
