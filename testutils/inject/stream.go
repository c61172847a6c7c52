package inject

import (
	"context"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/videomode"
)

// Stream is an injected stream.
type Stream struct {
	driver.Stream
	StartFunc     func(ctx context.Context, mode *videomode.VideoMode) (videomode.VideoMode, error)
	ReadFrameFunc func(ctx context.Context) (*driver.Frame, error)
	StopFunc      func() error
	CloseFunc     func() error
}

// Start calls the injected Start or the real version.
func (s *Stream) Start(ctx context.Context, mode *videomode.VideoMode) (videomode.VideoMode, error) {
	if s.StartFunc == nil {
		return s.Stream.Start(ctx, mode)
	}
	return s.StartFunc(ctx, mode)
}

// ReadFrame calls the injected ReadFrame or the real version.
func (s *Stream) ReadFrame(ctx context.Context) (*driver.Frame, error) {
	if s.ReadFrameFunc == nil {
		return s.Stream.ReadFrame(ctx)
	}
	return s.ReadFrameFunc(ctx)
}

// Stop calls the injected Stop or the real version.
func (s *Stream) Stop() error {
	if s.StopFunc == nil {
		if s.Stream == nil {
			return nil
		}
		return s.Stream.Stop()
	}
	return s.StopFunc()
}

// Close calls the injected Close or the real version.
func (s *Stream) Close() error {
	if s.CloseFunc == nil {
		if s.Stream == nil {
			return nil
		}
		return s.Stream.Close()
	}
	return s.CloseFunc()
}
