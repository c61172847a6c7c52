// Package driver defines the contract between rgbd and the sensor runtimes that enumerate
// devices, report their video modes and decode frames. Concrete drivers live in subpackages.
package driver

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/rgbd/videomode"
)

// StreamKind is the kind of data a stream produces.
type StreamKind int

const (
	// Depth streams produce range images.
	Depth StreamKind = iota
	// Color streams produce color images.
	Color
)

func (k StreamKind) String() string {
	switch k {
	case Depth:
		return "depth"
	case Color:
		return "color"
	default:
		return fmt.Sprintf("StreamKind(%d)", int(k))
	}
}

// Kinds lists every stream kind in the order sessions bring them up.
var Kinds = []StreamKind{Depth, Color}

var (
	// ErrNoDevice is returned when no device matches a uri.
	ErrNoDevice = errors.New("no matching device")
	// ErrEndOfStream is returned by reads once a recorded source is exhausted.
	ErrEndOfStream = errors.New("end of stream")
	// ErrReadTimeout is returned when a live source produces no frame in time.
	ErrReadTimeout = errors.New("timed out waiting for frame")
	// ErrSeekUnsupported is returned when seeking a source that cannot be repositioned.
	ErrSeekUnsupported = errors.New("source does not support seeking")
	// ErrUnsupportedStream is returned when a device has no stream of a kind.
	ErrUnsupportedStream = errors.New("device has no stream of this kind")
)

// DeviceInfo describes an enumerated device.
type DeviceInfo struct {
	// URI opens this device again through a Registry.
	URI    string
	Name   string
	Vendor string
	Driver string
	// Live is false for finite recorded sources.
	Live bool
}

// Driver enumerates and opens devices.
type Driver interface {
	// Name is the uri scheme this driver answers to.
	Name() string
	EnumerateDevices(ctx context.Context) ([]DeviceInfo, error)
	// OpenDevice opens the device at uri; an empty uri means any available device. The uri has
	// the driver scheme stripped. Returns an error wrapping ErrNoDevice if nothing matches.
	OpenDevice(ctx context.Context, uri string) (Device, error)
}

// Device is an opened device.
type Device interface {
	Info() DeviceInfo
	VideoModes(kind StreamKind) (videomode.Catalog, error)
	CreateStream(kind StreamKind) (Stream, error)
	// FieldOfView returns the horizontal and vertical field of view of a stream, in radians.
	FieldOfView(kind StreamKind) (horizontal, vertical float64, err error)
	Close() error
}

// Stream produces frames of one kind.
type Stream interface {
	// Start begins producing frames in mode, or the driver's default for a nil mode, and
	// returns the mode actually applied.
	Start(ctx context.Context, mode *videomode.VideoMode) (videomode.VideoMode, error)
	// ReadFrame blocks until the next frame. It must return promptly once ctx is done.
	ReadFrame(ctx context.Context) (*Frame, error)
	Stop() error
	Close() error
}

// FrameCounter is implemented by finite sources that know how many frames each stream holds.
type FrameCounter interface {
	FrameCount(kind StreamKind) (int, error)
}

// Seeker is implemented by sources that can reposition a stream.
type Seeker interface {
	Seek(kind StreamKind, frameIndex int) error
}

// RegistrationSetter is implemented by devices that can warp depth onto the color camera.
type RegistrationSetter interface {
	SetDepthColorRegistration(enabled bool) error
}
