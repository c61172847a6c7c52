// Package fake implements a synthetic structured-light sensor. A device is either a finite
// recording, which ends after a fixed number of frames, or a live source paced by a clock.
package fake

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/rimage"
	"go.viam.com/rgbd/videomode"
)

// Name is the uri scheme of the fake driver.
const Name = "fake"

// Field of view of a PrimeSense style sensor, in radians.
const (
	DefaultHorizontalFOV = 1.0225
	DefaultVerticalFOV   = 0.7959
)

// DefaultDepthModes are the depth modes a fake device reports unless configured otherwise.
func DefaultDepthModes() []videomode.VideoMode {
	return []videomode.VideoMode{
		{Width: 320, Height: 240, PixelFormat: videomode.Depth1MM, FrameRate: 30},
		{Width: 320, Height: 240, PixelFormat: videomode.Depth100UM, FrameRate: 30},
		{Width: 640, Height: 480, PixelFormat: videomode.Depth1MM, FrameRate: 30},
		{Width: 640, Height: 480, PixelFormat: videomode.Depth100UM, FrameRate: 30},
		{Width: 160, Height: 120, PixelFormat: videomode.Depth1MM, FrameRate: 60},
	}
}

// DefaultColorModes are the color modes a fake device reports unless configured otherwise.
func DefaultColorModes() []videomode.VideoMode {
	return []videomode.VideoMode{
		{Width: 320, Height: 240, PixelFormat: videomode.RGB888, FrameRate: 30},
		{Width: 640, Height: 480, PixelFormat: videomode.RGB888, FrameRate: 30},
		{Width: 1280, Height: 1024, PixelFormat: videomode.RGB888, FrameRate: 15},
		{Width: 640, Height: 480, PixelFormat: videomode.YUV422, FrameRate: 30},
	}
}

// Config describes one fake device.
type Config struct {
	Name string
	// DepthModes and ColorModes default to DefaultDepthModes and DefaultColorModes.
	DepthModes []videomode.VideoMode
	ColorModes []videomode.VideoMode
	// DefaultDepthMode and DefaultColorMode are the indices used when a stream starts without
	// an explicit mode.
	DefaultDepthMode int
	DefaultColorMode int
	// DepthFrames and ColorFrames bound a recording. They are ignored for live devices.
	DepthFrames int
	ColorFrames int
	Live        bool
	// Stalled live devices never produce a frame.
	Stalled bool
	// Clock paces live devices. Defaults to the wall clock.
	Clock clock.Clock
	// ColorTimestampOffset shifts color timestamps relative to depth, in microseconds.
	ColorTimestampOffset uint64
	HorizontalFOV        float64
	VerticalFOV          float64
}

// Recording returns the config of a finite device with frames frames on each stream.
func Recording(name string, frames int) Config {
	return Config{Name: name, DepthFrames: frames, ColorFrames: frames}
}

func (cfg Config) withDefaults() Config {
	if cfg.DepthModes == nil {
		cfg.DepthModes = DefaultDepthModes()
	}
	if cfg.ColorModes == nil {
		cfg.ColorModes = DefaultColorModes()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.HorizontalFOV == 0 {
		cfg.HorizontalFOV = DefaultHorizontalFOV
	}
	if cfg.VerticalFOV == 0 {
		cfg.VerticalFOV = DefaultVerticalFOV
	}
	return cfg
}

// Driver serves a fixed set of fake devices.
type Driver struct {
	configs []Config
}

// NewDriver returns a driver serving the given devices, in order.
func NewDriver(configs ...Config) *Driver {
	return &Driver{configs: configs}
}

// Name returns "fake".
func (d *Driver) Name() string {
	return Name
}

// EnumerateDevices lists the configured devices.
func (d *Driver) EnumerateDevices(ctx context.Context) ([]driver.DeviceInfo, error) {
	infos := make([]driver.DeviceInfo, 0, len(d.configs))
	for _, cfg := range d.configs {
		infos = append(infos, infoFor(cfg))
	}
	return infos, nil
}

func infoFor(cfg Config) driver.DeviceInfo {
	return driver.DeviceInfo{
		URI:    Name + "://" + cfg.Name,
		Name:   cfg.Name,
		Vendor: "rgbd",
		Driver: Name,
		Live:   cfg.Live,
	}
}

// OpenDevice opens the named device, or the first one for an empty uri.
func (d *Driver) OpenDevice(ctx context.Context, uri string) (driver.Device, error) {
	for _, cfg := range d.configs {
		if uri == "" || uri == cfg.Name {
			return NewDevice(cfg), nil
		}
	}
	return nil, errors.Wrapf(driver.ErrNoDevice, "fake device %q", uri)
}

// Device is an opened fake device.
type Device struct {
	cfg Config

	mu           sync.Mutex
	streams      map[driver.StreamKind]*Stream
	registration bool
	closed       bool
}

// NewDevice opens a fake device directly.
func NewDevice(cfg Config) *Device {
	return &Device{cfg: cfg.withDefaults(), streams: map[driver.StreamKind]*Stream{}}
}

// Info describes the device.
func (dev *Device) Info() driver.DeviceInfo {
	return infoFor(dev.cfg)
}

func (dev *Device) modes(kind driver.StreamKind) ([]videomode.VideoMode, error) {
	switch kind {
	case driver.Depth:
		return dev.cfg.DepthModes, nil
	case driver.Color:
		return dev.cfg.ColorModes, nil
	default:
		return nil, errors.Wrap(driver.ErrUnsupportedStream, kind.String())
	}
}

// VideoModes returns the configured catalog of a stream.
func (dev *Device) VideoModes(kind driver.StreamKind) (videomode.Catalog, error) {
	modes, err := dev.modes(kind)
	if err != nil {
		return videomode.Catalog{}, err
	}
	return videomode.NewCatalog(modes...), nil
}

// CreateStream makes the stream of a kind. Each kind can be created once.
func (dev *Device) CreateStream(kind driver.StreamKind) (driver.Stream, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.closed {
		return nil, errors.New("fake device is closed")
	}
	if _, err := dev.modes(kind); err != nil {
		return nil, err
	}
	if _, ok := dev.streams[kind]; ok {
		return nil, errors.Errorf("fake %s stream already created", kind)
	}
	s := &Stream{dev: dev, kind: kind}
	dev.streams[kind] = s
	return s, nil
}

// FieldOfView returns the configured field of view, the same for both streams.
func (dev *Device) FieldOfView(kind driver.StreamKind) (float64, float64, error) {
	return dev.cfg.HorizontalFOV, dev.cfg.VerticalFOV, nil
}

// FrameCount returns the length of a recording.
func (dev *Device) FrameCount(kind driver.StreamKind) (int, error) {
	if dev.cfg.Live {
		return 0, errors.New("live fake device has no frame count")
	}
	if kind == driver.Depth {
		return dev.cfg.DepthFrames, nil
	}
	return dev.cfg.ColorFrames, nil
}

// Seek repositions a recording so the next read returns frameIndex.
func (dev *Device) Seek(kind driver.StreamKind, frameIndex int) error {
	if dev.cfg.Live {
		return driver.ErrSeekUnsupported
	}
	count, err := dev.FrameCount(kind)
	if err != nil {
		return err
	}
	if frameIndex < 0 || frameIndex >= count {
		return errors.Errorf("cannot seek %s to frame %d of %d", kind, frameIndex, count)
	}
	dev.mu.Lock()
	s, ok := dev.streams[kind]
	dev.mu.Unlock()
	if !ok {
		return errors.Errorf("no %s stream to seek", kind)
	}
	s.mu.Lock()
	s.next = uint64(frameIndex)
	s.mu.Unlock()
	return nil
}

// SetDepthColorRegistration records the registration mode.
func (dev *Device) SetDepthColorRegistration(enabled bool) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.registration = enabled
	return nil
}

// Registration reports the last registration mode set.
func (dev *Device) Registration() bool {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.registration
}

// Close closes every stream of the device.
func (dev *Device) Close() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.closed = true
	for _, s := range dev.streams {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
	}
	return nil
}

// Stream is a fake stream.
type Stream struct {
	dev  *Device
	kind driver.StreamKind

	mu      sync.Mutex
	mode    videomode.VideoMode
	started bool
	next    uint64
}

// Start begins producing frames in mode, or the configured default mode for nil.
func (s *Stream) Start(ctx context.Context, mode *videomode.VideoMode) (videomode.VideoMode, error) {
	modes, err := s.dev.modes(s.kind)
	if err != nil {
		return videomode.VideoMode{}, err
	}
	if mode == nil {
		idx := s.dev.cfg.DefaultDepthMode
		if s.kind == driver.Color {
			idx = s.dev.cfg.DefaultColorMode
		}
		if idx < 0 || idx >= len(modes) {
			return videomode.VideoMode{}, errors.Errorf("fake %s default mode %d out of range", s.kind, idx)
		}
		mode = &modes[idx]
	} else if !containsMode(modes, *mode) {
		return videomode.VideoMode{}, errors.Errorf("fake %s stream does not support %s", s.kind, mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = *mode
	s.started = true
	return *mode, nil
}

func containsMode(modes []videomode.VideoMode, mode videomode.VideoMode) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

func (s *Stream) period() time.Duration {
	fps := s.mode.FrameRate
	if fps <= 0 {
		fps = 30
	}
	return time.Duration(float64(time.Second) / float64(fps))
}

func (s *Stream) limit() int {
	if s.kind == driver.Depth {
		return s.dev.cfg.DepthFrames
	}
	return s.dev.cfg.ColorFrames
}

// ReadFrame returns the next synthetic frame.
func (s *Stream) ReadFrame(ctx context.Context) (*driver.Frame, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, errors.Errorf("fake %s stream is not started", s.kind)
	}
	mode, period := s.mode, s.period()
	s.mu.Unlock()

	if s.dev.cfg.Live {
		if s.dev.cfg.Stalled {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		timer := s.dev.cfg.Clock.Timer(period)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, errors.Errorf("fake %s stream stopped while reading", s.kind)
	}
	idx := s.next
	if !s.dev.cfg.Live && idx >= uint64(s.limit()) {
		return nil, driver.ErrEndOfStream
	}
	s.next++

	ts := idx * uint64(period/time.Microsecond)
	if s.kind == driver.Color {
		ts += s.dev.cfg.ColorTimestampOffset
	}
	return &driver.Frame{
		Kind:      s.kind,
		Mode:      mode,
		Pixels:    s.render(mode, idx),
		Timestamp: ts,
		Index:     idx,
	}, nil
}

// render draws a pattern that changes with the frame index so frames can be told apart.
func (s *Stream) render(mode videomode.VideoMode, idx uint64) image.Image {
	if s.kind == driver.Depth {
		return DepthPattern(mode.Width, mode.Height, idx)
	}
	return ColorPattern(mode.Width, mode.Height, idx)
}

// DepthPattern is the depth image a fake stream produces for frame idx.
func DepthPattern(width, height int, idx uint64) *rimage.DepthMap {
	dm := rimage.NewEmptyDepthMap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dm.Set(x, y, rimage.Depth(500+(x+y+int(idx%4096)*7)%4000))
		}
	}
	return dm
}

// ColorPattern is the color image a fake stream produces for frame idx.
func ColorPattern(width, height int, idx uint64) *rimage.ColorImage {
	ci := rimage.NewColorImage(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			ci.SetRGB(x, y, uint8(x+int(idx%256)), uint8(y), uint8(idx))
		}
	}
	return ci
}

// Stop stops producing frames. The read position is kept.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

// Close stops the stream.
func (s *Stream) Close() error {
	return s.Stop()
}
