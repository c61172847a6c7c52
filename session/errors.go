package session

import (
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/stream"
)

var (
	// ErrDeviceOpen matches every failure to open a device.
	ErrDeviceOpen = errors.New("failed to open device")
	// ErrAlreadyOpen is returned when opening a session or device uri that is already open.
	ErrAlreadyOpen = errors.New("device is already open")
	// ErrNoActiveMode is returned by Intrinsics while the depth stream is not started.
	ErrNoActiveMode = errors.New("depth stream has no active mode")
	// ErrInvalidFrameIndex is returned when seeking outside a recording.
	ErrInvalidFrameIndex = errors.New("invalid frame index")

	// ErrNotOpen is stream.ErrNotOpen.
	ErrNotOpen = stream.ErrNotOpen
	// ErrEndOfStream is driver.ErrEndOfStream.
	ErrEndOfStream = driver.ErrEndOfStream
)

// deviceOpenError wraps the cause of a failed open so that it matches both ErrDeviceOpen and
// the cause.
type deviceOpenError struct {
	uri string
	err error
}

func (e *deviceOpenError) Error() string {
	return fmt.Sprintf("failed to open device %q: %v", e.uri, e.err)
}

func (e *deviceOpenError) Unwrap() error {
	return e.err
}

func (e *deviceOpenError) Is(target error) bool {
	return target == ErrDeviceOpen
}

func newDeviceOpenError(uri string, err error) error {
	return &deviceOpenError{uri: uri, err: err}
}
