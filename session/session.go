// Package session opens a depth sensor and reads time-aligned depth and color frames from it.
//
// A Session owns a device and one stream.Handle per stream kind. It is driven by a single
// owner; Close may additionally be called from another goroutine to abort a blocked read.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/logging"
	"go.viam.com/rgbd/rimage/transform"
	"go.viam.com/rgbd/stream"
	"go.viam.com/rgbd/videomode"
)

// Unbounded is the length of a live session.
const Unbounded = -1

// State is the lifecycle state of a Session.
type State int

const (
	// Unopened sessions have never been bound to a device.
	Unopened State = iota
	// Opened sessions hold a device with both streams open.
	Opened
	// Started sessions are producing frames on both streams.
	Started
	// Closed sessions have released their device. They may be opened again.
	Closed
)

func (s State) String() string {
	switch s {
	case Unopened:
		return "UNOPENED"
	case Opened:
		return "OPENED"
	case Started:
		return "STARTED"
	case Closed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// openURIs tracks device uris held by any session in the process.
var (
	openURIsMu sync.Mutex
	openURIs   = map[string]struct{}{}
)

func claimURI(uri string) bool {
	openURIsMu.Lock()
	defer openURIsMu.Unlock()
	if _, ok := openURIs[uri]; ok {
		return false
	}
	openURIs[uri] = struct{}{}
	return true
}

func releaseURI(uri string) {
	openURIsMu.Lock()
	defer openURIsMu.Unlock()
	delete(openURIs, uri)
}

// A Session pairs the depth and color streams of one device.
type Session struct {
	id     uuid.UUID
	opts   options
	logger logging.Logger
	stats  *SyncStats

	mu    sync.Mutex
	state State
	uri   string
	dev   driver.Device
	depth *stream.Handle
	color *stream.Handle

	// heldDepth is a depth frame whose color read failed. The next pair or depth read
	// returns it instead of reading ahead. epoch changes on every start, stop, seek and close,
	// and a frame read in an older epoch is never held.
	heldDepth *driver.Frame
	epoch     uint64
}

// New returns an unopened session.
func New(logger logging.Logger, opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	id := uuid.New()
	return &Session{
		id:     id,
		opts:   o,
		logger: logger.WithFields("session", id.String()),
		stats:  NewSyncStats(o.statsWindow),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// URI returns the uri of the open device, or "" when no device is open.
func (s *Session) URI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return ""
	}
	return s.uri
}

// DeviceInfo describes the open device.
func (s *Session) DeviceInfo() (driver.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(); err != nil {
		return driver.DeviceInfo{}, err
	}
	return s.dev.Info(), nil
}

// StreamState returns the state of one of the session's streams.
func (s *Session) StreamState(kind driver.StreamKind) stream.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h := s.handleLocked(kind); h != nil {
		return h.State()
	}
	return stream.Closed
}

// checkStreamsLocked verifies that both streams agree with the session state.
func (s *Session) checkStreamsLocked() error {
	want := stream.Open
	if s.state == Started {
		want = stream.Started
	}
	for _, h := range []*stream.Handle{s.depth, s.color} {
		if got := h.State(); got != want {
			return errors.Errorf("session is %s but %s stream is %s", s.state, h.Kind(), got)
		}
	}
	return nil
}

// openLocked fails unless a device is bound.
func (s *Session) openLocked() error {
	switch s.state {
	case Opened, Started:
		return nil
	case Closed:
		return stream.ErrStreamClosed
	default:
		return stream.ErrNotOpen
	}
}

// Open binds the session to the device at uri. An empty uri opens the first available device
// of any registered driver. Both streams are opened and their catalogs loaded.
func (s *Session) Open(ctx context.Context, uri string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Opened || s.state == Started {
		return errors.Wrapf(ErrAlreadyOpen, "session already holds %q", s.uri)
	}

	dev, err := s.opts.registry.Open(ctx, uri)
	if err != nil {
		return newDeviceOpenError(uri, err)
	}
	info := dev.Info()
	if !claimURI(info.URI) {
		return multierr.Combine(
			errors.Wrapf(ErrAlreadyOpen, "%q is held by another session", info.URI),
			dev.Close(),
		)
	}
	defer func() {
		if err != nil {
			releaseURI(info.URI)
			err = multierr.Combine(err, dev.Close())
		}
	}()

	if rs, ok := dev.(driver.RegistrationSetter); ok {
		if err := rs.SetDepthColorRegistration(s.opts.registration); err != nil {
			s.logger.CWarnw(ctx, "failed to set depth to color registration", "enabled", s.opts.registration, "error", err)
		}
	}

	streamOpts := stream.Options{ReadTimeout: s.opts.readTimeout}
	depth := stream.NewHandle(driver.Depth, s.logger, streamOpts)
	if err := depth.Open(dev); err != nil {
		return newDeviceOpenError(info.URI, err)
	}
	color := stream.NewHandle(driver.Color, s.logger, streamOpts)
	if err := color.Open(dev); err != nil {
		return newDeviceOpenError(info.URI, multierr.Combine(err, depth.Close()))
	}

	s.dev, s.uri = dev, info.URI
	s.depth, s.color = depth, color
	s.state = Opened
	s.stats.Reset()
	s.logger.CInfow(ctx, "device opened", "uri", info.URI, "driver", info.Driver, "live", info.Live)
	return nil
}

// DepthCatalog returns the depth stream's video modes.
func (s *Session) DepthCatalog() (videomode.Catalog, error) {
	return s.catalog(driver.Depth)
}

// ColorCatalog returns the color stream's video modes.
func (s *Session) ColorCatalog() (videomode.Catalog, error) {
	return s.catalog(driver.Color)
}

func (s *Session) catalog(kind driver.StreamKind) (videomode.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(); err != nil {
		return videomode.Catalog{}, err
	}
	return s.handleLocked(kind).Catalog()
}

func (s *Session) handleLocked(kind driver.StreamKind) *stream.Handle {
	if kind == driver.Depth {
		return s.depth
	}
	return s.color
}

// Start starts depth in mode depthIdx and then color in mode colorIdx. Either index may be
// videomode.Auto. If color fails to start, depth is stopped again before the error is returned,
// so the session is left opened with neither stream running.
func (s *Session) Start(ctx context.Context, depthIdx, colorIdx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(); err != nil {
		return err
	}
	if s.state == Started {
		return errors.New("session is already started")
	}
	if err := s.depth.Configure(depthIdx); err != nil {
		return errors.Wrap(err, "depth")
	}
	if err := s.color.Configure(colorIdx); err != nil {
		return errors.Wrap(err, "color")
	}

	if err := s.depth.Start(ctx); err != nil {
		return err
	}
	if err := s.color.Start(ctx); err != nil {
		if stopErr := s.depth.Stop(); stopErr != nil {
			err = multierr.Combine(err, errors.Wrap(stopErr, "failed to roll back depth stream"))
		}
		s.logger.CWarnw(ctx, "color stream failed to start, depth stream stopped", "error", err)
		return multierr.Combine(err, s.checkStreamsLocked())
	}
	s.state = Started
	s.resetReadsLocked()
	return s.checkStreamsLocked()
}

// Stop stops both streams, leaving the session opened.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Started {
		return nil
	}
	s.state = Opened
	s.resetReadsLocked()
	return multierr.Combine(s.color.Stop(), s.depth.Stop(), s.checkStreamsLocked())
}

// resetReadsLocked forgets a held depth frame and the timing of earlier pairs.
func (s *Session) resetReadsLocked() {
	s.heldDepth = nil
	s.epoch++
	s.stats.Reset()
}

// startedLocked returns the handle of kind when the session is started.
func (s *Session) startedLocked(kind driver.StreamKind) (*stream.Handle, error) {
	switch s.state {
	case Started:
		return s.handleLocked(kind), nil
	case Opened:
		return nil, stream.ErrNotStarted
	default:
		return nil, s.openLocked()
	}
}

// ReadSynchronizedPair reads the next depth frame and then the next color frame. Frames are
// paired by read order. If either stream has ended, any frame already read is discarded and
// the error matches ErrEndOfStream. If the color read fails in any other way, such as
// ErrReadTimeout, the depth frame is kept and paired with the next color frame on the
// following call, so the streams do not drift apart.
func (s *Session) ReadSynchronizedPair(ctx context.Context) (depth, color *driver.Frame, err error) {
	s.mu.Lock()
	depthHandle, err := s.startedLocked(driver.Depth)
	if err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	colorHandle := s.color
	depth, s.heldDepth = s.heldDepth, nil
	epoch := s.epoch
	s.mu.Unlock()

	if depth == nil {
		depth, err = depthHandle.Read(ctx)
		if err != nil {
			return nil, nil, err
		}
	}
	color, err = colorHandle.Read(ctx)
	if err != nil {
		if !errors.Is(err, ErrEndOfStream) {
			s.holdDepth(epoch, depth)
		}
		return nil, nil, err
	}
	s.stats.Add(depth.Timestamp, color.Timestamp)
	s.logger.CDebugw(ctx, "read pair",
		"depth_index", depth.Index, "color_index", color.Index,
		"depth_ts", depth.Timestamp, "color_ts", color.Timestamp)
	return depth, color, nil
}

func (s *Session) holdDepth(epoch uint64, depth *driver.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch && s.state == Started {
		s.heldDepth = depth
	}
}

// ReadFrame reads the next frame of one stream on its own. Frames read this way are not
// paired and do not count towards SyncStats. A depth frame held back by ReadSynchronizedPair
// is returned first.
func (s *Session) ReadFrame(ctx context.Context, kind driver.StreamKind) (*driver.Frame, error) {
	s.mu.Lock()
	h, err := s.startedLocked(kind)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if kind == driver.Depth && s.heldDepth != nil {
		f := s.heldDepth
		s.heldDepth = nil
		s.mu.Unlock()
		return f, nil
	}
	s.mu.Unlock()
	return h.Read(ctx)
}

// Len is the number of pairs a recorded source holds, the shorter of its two streams, or
// Unbounded for live sources. It is 0 when no device is open.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openLocked() != nil {
		return 0
	}
	return s.lenLocked()
}

func (s *Session) lenLocked() int {
	counter, ok := s.dev.(driver.FrameCounter)
	if s.dev.Info().Live || !ok {
		return Unbounded
	}
	n := -1
	for _, kind := range driver.Kinds {
		count, err := counter.FrameCount(kind)
		if err != nil {
			s.logger.Warnw("failed to count frames", "stream", kind.String(), "error", err)
			return Unbounded
		}
		if n < 0 || count < n {
			n = count
		}
	}
	return n
}

// Seek repositions both streams of a recorded source so the next pair read is frameIndex.
func (s *Session) Seek(ctx context.Context, frameIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(); err != nil {
		return err
	}
	n := s.lenLocked()
	if n == Unbounded {
		return driver.ErrSeekUnsupported
	}
	if frameIndex < 0 || frameIndex >= n {
		return errors.Wrapf(ErrInvalidFrameIndex, "%d not in [0, %d)", frameIndex, n)
	}
	for _, h := range []*stream.Handle{s.depth, s.color} {
		if err := h.Seek(frameIndex); err != nil {
			return errors.Wrapf(err, "failed to seek %s stream", h.Kind())
		}
	}
	s.resetReadsLocked()
	s.logger.CDebugw(ctx, "seeked", "frame", frameIndex)
	return nil
}

// Intrinsics estimates the depth camera's pinhole parameters from the active depth mode and
// the device's depth field of view.
func (s *Session) Intrinsics(ctx context.Context) (*transform.PinholeCameraIntrinsics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Started {
		return nil, ErrNoActiveMode
	}
	mode, _, ok := s.depth.ActiveMode()
	if !ok {
		return nil, ErrNoActiveMode
	}
	hFov, vFov, err := s.dev.FieldOfView(driver.Depth)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get depth field of view")
	}
	return transform.EstimateFromFOV(mode, hFov, vFov)
}

// FieldOfView returns the horizontal and vertical field of view the device reports for a stream.
func (s *Session) FieldOfView(kind driver.StreamKind) (horizontal, vertical float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(); err != nil {
		return 0, 0, err
	}
	return s.dev.FieldOfView(kind)
}

// ActiveModes returns the modes both streams are running in.
func (s *Session) ActiveModes() (depth, color videomode.VideoMode, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Started {
		return depth, color, ErrNoActiveMode
	}
	depth, _, _ = s.depth.ActiveMode()
	color, _, _ = s.color.ActiveMode()
	return depth, color, nil
}

// SyncStats summarizes the timing of pairs read since the last start or seek.
func (s *Session) SyncStats() SyncSummary {
	return s.stats.Summary()
}

// Close stops and closes both streams and the device. It may be called while a read is
// blocked, which then fails with stream.ErrStreamClosed. Closing twice does nothing.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Opened && s.state != Started {
		return nil
	}
	err := multierr.Combine(
		s.color.Close(),
		s.depth.Close(),
		errors.Wrap(s.dev.Close(), "failed to close device"),
	)
	releaseURI(s.uri)
	s.heldDepth = nil
	s.epoch++
	s.dev = nil
	s.state = Closed
	s.logger.CInfow(ctx, "device closed", "uri", s.uri)
	return err
}
