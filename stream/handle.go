// Package stream manages the lifecycle of a single depth or color stream of an opened device.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/logging"
	"go.viam.com/rgbd/videomode"
)

// DefaultLiveReadTimeout bounds reads from live sources when no timeout is configured.
const DefaultLiveReadTimeout = 2 * time.Second

// Options tune a Handle.
type Options struct {
	// ReadTimeout bounds each Read. Zero blocks indefinitely on recorded sources and uses
	// DefaultLiveReadTimeout on live ones. Negative values always block.
	ReadTimeout time.Duration
}

// A Handle owns one driver stream. It is used by a single owner, except that Stop and Close
// may be called while a Read is in flight.
type Handle struct {
	kind   driver.StreamKind
	opts   Options
	logger logging.Logger

	mu         sync.Mutex
	state      State
	terminated bool
	dev        driver.Device
	live       bool
	stream     driver.Stream
	catalog    videomode.Catalog
	configured int

	activeIndex int
	activeMode  videomode.VideoMode

	runCtx    context.Context
	runCancel context.CancelFunc

	haveLast  bool
	lastIndex uint64
}

// NewHandle returns a closed handle for a stream kind.
func NewHandle(kind driver.StreamKind, logger logging.Logger, opts Options) *Handle {
	return &Handle{
		kind:       kind,
		opts:       opts,
		logger:     logger.Sublogger(kind.String()),
		configured: videomode.Auto,
	}
}

// Kind returns the stream kind.
func (h *Handle) Kind() driver.StreamKind {
	return h.kind
}

// State returns the current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// usableLocked fails unless the handle is open or started.
func (h *Handle) usableLocked() error {
	if h.terminated {
		return ErrStreamClosed
	}
	if h.state == Closed {
		return ErrNotOpen
	}
	return nil
}

// Open creates the driver stream on dev and loads its catalog.
func (h *Handle) Open(dev driver.Device) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.terminated {
		return ErrStreamClosed
	}
	if err := checkTransition(h.state, Open); err != nil {
		return err
	}
	catalog, err := dev.VideoModes(h.kind)
	if err != nil {
		return errors.Wrapf(err, "failed to list %s video modes", h.kind)
	}
	s, err := dev.CreateStream(h.kind)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s stream", h.kind)
	}
	h.dev = dev
	h.live = dev.Info().Live
	h.stream = s
	h.catalog = catalog
	h.configured = videomode.Auto
	h.state = Open
	h.logger.Debugw("stream opened", "modes", catalog.Len())
	return nil
}

// Catalog returns the video modes of the stream.
func (h *Handle) Catalog() (videomode.Catalog, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usableLocked(); err != nil {
		return videomode.Catalog{}, err
	}
	return h.catalog, nil
}

// Configure selects the mode used by the next Start. videomode.Auto selects the driver default.
func (h *Handle) Configure(modeIndex int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usableLocked(); err != nil {
		return err
	}
	if h.state != Open {
		return errors.Errorf("cannot configure %s stream while %s", h.kind, h.state)
	}
	if modeIndex != videomode.Auto {
		if _, err := h.catalog.At(modeIndex); err != nil {
			return err
		}
	}
	h.configured = modeIndex
	return nil
}

// Start begins producing frames in the configured mode. On failure the handle stays open and
// the returned error is a *StartError.
func (h *Handle) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usableLocked(); err != nil {
		return err
	}
	if err := checkTransition(h.state, Started); err != nil {
		return err
	}

	var requested *videomode.VideoMode
	if h.configured != videomode.Auto {
		mode, err := h.catalog.At(h.configured)
		if err != nil {
			return err
		}
		requested = &mode
	}
	used, err := h.stream.Start(ctx, requested)
	if err != nil {
		return &StartError{Kind: h.kind, ModeIndex: h.configured, Err: err}
	}

	h.activeIndex = h.configured
	if h.activeIndex == videomode.Auto {
		if idx, ok := h.catalog.IndexOf(used); ok {
			h.activeIndex = idx
		}
	}
	h.activeMode = used
	h.runCtx, h.runCancel = context.WithCancel(context.Background())
	h.haveLast = false
	h.state = Started
	h.logger.CDebugw(ctx, "stream started", "mode", used.String(), "index", h.activeIndex)
	return nil
}

// ActiveMode returns the mode and catalog index of a started stream. The index is
// videomode.Auto when the driver default is not part of the catalog.
func (h *Handle) ActiveMode() (videomode.VideoMode, int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Started {
		return videomode.VideoMode{}, videomode.Auto, false
	}
	return h.activeMode, h.activeIndex, true
}

func (h *Handle) readTimeout() time.Duration {
	switch {
	case h.opts.ReadTimeout != 0:
		return h.opts.ReadTimeout
	case h.live:
		return DefaultLiveReadTimeout
	default:
		return 0
	}
}

// Read blocks for the next frame. It fails with ErrReadTimeout when the timeout elapses,
// ErrEndOfStream once a recording is exhausted and ErrStreamClosed if the handle is closed
// while waiting.
func (h *Handle) Read(ctx context.Context) (*driver.Frame, error) {
	h.mu.Lock()
	if err := h.usableLocked(); err != nil {
		h.mu.Unlock()
		return nil, err
	}
	if h.state != Started {
		h.mu.Unlock()
		return nil, errors.Wrap(ErrNotStarted, h.kind.String())
	}
	s, runCtx, timeout := h.stream, h.runCtx, h.readTimeout()
	h.mu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatching := context.AfterFunc(runCtx, cancel)
	defer stopWatching()
	var timeoutCtx context.Context = readCtx
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		timeoutCtx, cancelTimeout = context.WithTimeout(readCtx, timeout)
		defer cancelTimeout()
	}

	frame, err := s.ReadFrame(timeoutCtx)
	if err != nil {
		return nil, h.readError(ctx, runCtx, timeoutCtx, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.haveLast && frame.Index <= h.lastIndex {
		h.logger.Warnw("frame index did not increase", "previous", h.lastIndex, "index", frame.Index)
	}
	h.haveLast = true
	h.lastIndex = frame.Index
	return frame, nil
}

func (h *Handle) readError(ctx, runCtx, timeoutCtx context.Context, err error) error {
	switch {
	case runCtx.Err() != nil:
		h.mu.Lock()
		terminated := h.terminated
		h.mu.Unlock()
		if terminated {
			return ErrStreamClosed
		}
		return errors.Wrapf(ErrNotStarted, "%s stream stopped during read", h.kind)
	case ctx.Err() != nil:
		return errors.Wrapf(ctx.Err(), "%s read", h.kind)
	case errors.Is(err, driver.ErrEndOfStream):
		return errors.Wrapf(driver.ErrEndOfStream, "%s", h.kind)
	case errors.Is(err, driver.ErrReadTimeout),
		errors.Is(err, context.DeadlineExceeded),
		timeoutCtx.Err() != nil:
		return errors.Wrapf(driver.ErrReadTimeout, "%s", h.kind)
	default:
		return errors.Wrapf(err, "failed to read %s frame", h.kind)
	}
}

// Seek repositions the stream so the next read returns frameIndex. Only sources implementing
// driver.Seeker support it.
func (h *Handle) Seek(frameIndex int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.usableLocked(); err != nil {
		return err
	}
	seeker, ok := h.dev.(driver.Seeker)
	if !ok {
		return driver.ErrSeekUnsupported
	}
	if err := seeker.Seek(h.kind, frameIndex); err != nil {
		return err
	}
	h.haveLast = false
	return nil
}

// Stop stops a started stream. Stopping a stream that is not started does nothing.
func (h *Handle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != Started {
		return nil
	}
	return h.stopLocked()
}

func (h *Handle) stopLocked() error {
	h.runCancel()
	h.state = Open
	h.activeIndex = videomode.Auto
	h.activeMode = videomode.VideoMode{}
	if err := h.stream.Stop(); err != nil {
		return errors.Wrapf(err, "failed to stop %s stream", h.kind)
	}
	h.logger.Debug("stream stopped")
	return nil
}

// Close stops and releases the driver stream. A closed handle cannot be reopened. Reads in
// flight fail with ErrStreamClosed.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.terminated {
		return nil
	}
	h.terminated = true
	if h.state == Closed {
		return nil
	}
	var err error
	if h.state == Started {
		err = h.stopLocked()
	}
	err = multierr.Combine(err, errors.Wrapf(h.stream.Close(), "failed to close %s stream", h.kind))
	h.state = Closed
	h.stream = nil
	h.dev = nil
	return err
}
