package stream

import (
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/rgbd/driver"
)

var (
	// ErrNotOpen is returned by operations on a handle that was never opened.
	ErrNotOpen = errors.New("stream is not open")
	// ErrNotStarted is returned when reading from a handle that is open but not started.
	ErrNotStarted = errors.New("stream is not started")
	// ErrStreamClosed is returned by operations on a closed handle, including reads that were in
	// flight when it closed.
	ErrStreamClosed = errors.New("stream is closed")
	// ErrStreamStart matches every *StartError.
	ErrStreamStart = errors.New("stream failed to start")

	// ErrEndOfStream is driver.ErrEndOfStream.
	ErrEndOfStream = driver.ErrEndOfStream
	// ErrReadTimeout is driver.ErrReadTimeout.
	ErrReadTimeout = driver.ErrReadTimeout
)

// StartError is returned when a driver refuses to start a stream.
type StartError struct {
	Kind driver.StreamKind
	// ModeIndex is the configured mode, or videomode.Auto.
	ModeIndex int
	Err       error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("failed to start %s stream in mode %d: %v", e.Kind, e.ModeIndex, e.Err)
}

// Unwrap returns the driver error.
func (e *StartError) Unwrap() error {
	return e.Err
}

// Is matches ErrStreamStart.
func (e *StartError) Is(target error) bool {
	return target == ErrStreamStart
}
