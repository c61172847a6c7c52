// Package videomode describes the configurations a sensor stream can be started with and picks
// the one closest to a requested resolution.
package videomode

import (
	"fmt"

	"github.com/pkg/errors"
)

// Auto asks a stream to start with the driver's default mode.
const Auto = -1

var (
	// ErrInvalidModeIndex is returned when a mode index is outside a catalog.
	ErrInvalidModeIndex = errors.New("invalid video mode index")
	// ErrNoMatchingMode is returned when no catalog entry has the requested pixel format.
	ErrNoMatchingMode = errors.New("no video mode matches the requested pixel format")
)

// NewInvalidModeIndexError is used when index is out of range for a catalog of size n.
func NewInvalidModeIndexError(index, n int) error {
	return errors.Wrapf(ErrInvalidModeIndex, "index %d not in [0, %d)", index, n)
}

// VideoMode is one resolution, pixel format and frame rate a stream supports.
type VideoMode struct {
	Width       int         `json:"width_px"`
	Height      int         `json:"height_px"`
	PixelFormat PixelFormat `json:"pixel_format"`
	// FrameRate is zero when the driver does not report one.
	FrameRate float32 `json:"frame_rate,omitempty"`
}

func (m VideoMode) String() string {
	if m.FrameRate > 0 {
		return fmt.Sprintf("%dx%d %s @%gfps", m.Width, m.Height, m.PixelFormat, m.FrameRate)
	}
	return fmt.Sprintf("%dx%d %s", m.Width, m.Height, m.PixelFormat)
}

// Validate checks that the mode is usable.
func (m VideoMode) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return errors.Errorf("video mode has non-positive size %dx%d", m.Width, m.Height)
	}
	if m.PixelFormat == FormatUnknown {
		return errors.New("video mode has no pixel format")
	}
	if m.FrameRate < 0 {
		return errors.Errorf("video mode has negative frame rate %v", m.FrameRate)
	}
	return nil
}

// Catalog is the ordered list of modes a stream reports. Indices are stable while the device is
// open and are how a mode is chosen when starting a stream.
type Catalog struct {
	modes []VideoMode
}

// NewCatalog copies modes into a catalog.
func NewCatalog(modes ...VideoMode) Catalog {
	cp := make([]VideoMode, len(modes))
	copy(cp, modes)
	return Catalog{modes: cp}
}

// List returns a copy of the modes in catalog order.
func (c Catalog) List() []VideoMode {
	cp := make([]VideoMode, len(c.modes))
	copy(cp, c.modes)
	return cp
}

// Len returns the number of modes.
func (c Catalog) Len() int {
	return len(c.modes)
}

// At returns the mode at index i.
func (c Catalog) At(i int) (VideoMode, error) {
	if i < 0 || i >= len(c.modes) {
		return VideoMode{}, NewInvalidModeIndexError(i, len(c.modes))
	}
	return c.modes[i], nil
}

// Filter returns the indices of modes with the given pixel format, in catalog order.
func (c Catalog) Filter(format PixelFormat) []int {
	var indices []int
	for i, m := range c.modes {
		if m.PixelFormat == format {
			indices = append(indices, i)
		}
	}
	return indices
}

// IndexOf returns the index of the first mode equal to m.
func (c Catalog) IndexOf(m VideoMode) (int, bool) {
	for i, candidate := range c.modes {
		if candidate == m {
			return i, true
		}
	}
	return Auto, false
}
