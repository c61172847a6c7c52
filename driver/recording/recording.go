// Package recording replays and writes rgbd recordings: sqlite files, conventionally named
// *.rgbd, holding LZF compressed depth and color frames with their device timestamps.
package recording

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/videomode"
)

// Name is the uri scheme of the recording driver.
const Name = "recording"

// Extension marks files the driver opens without a scheme.
const Extension = ".rgbd"

func init() {
	driver.Register(NewDriver())
}

// Driver opens recordings from the filesystem.
type Driver struct{}

// NewDriver returns a recording driver.
func NewDriver() *Driver {
	return &Driver{}
}

// Name returns "recording".
func (d *Driver) Name() string {
	return Name
}

// ClaimsURI is true for paths ending in .rgbd.
func (d *Driver) ClaimsURI(uri string) bool {
	return strings.EqualFold(filepath.Ext(uri), Extension)
}

// EnumerateDevices lists nothing; recordings are opened by path.
func (d *Driver) EnumerateDevices(ctx context.Context) ([]driver.DeviceInfo, error) {
	return nil, nil
}

// OpenDevice opens the recording at path. The empty uri matches nothing.
func (d *Driver) OpenDevice(ctx context.Context, path string) (driver.Device, error) {
	if path == "" {
		return nil, errors.Wrap(driver.ErrNoDevice, "recordings are opened by path")
	}
	return Open(ctx, path)
}

// Device is an opened recording.
type Device struct {
	path string
	db   *db
	meta Metadata

	mu      sync.Mutex
	modes   map[driver.StreamKind]videomode.VideoMode
	streams map[driver.StreamKind]*Stream
	closed  bool
}

// Open opens a recording file for replay.
func Open(ctx context.Context, path string) (*Device, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(driver.ErrNoDevice, "recording %q: %v", path, err)
	}
	rdb, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	dev := &Device{
		path:    path,
		db:      rdb,
		modes:   map[driver.StreamKind]videomode.VideoMode{},
		streams: map[driver.StreamKind]*Stream{},
	}
	if err := dev.load(ctx); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "recording %q", path), rdb.Close())
	}
	return dev, nil
}

func (dev *Device) load(ctx context.Context) error {
	meta, err := dev.db.readMetadata(ctx)
	if err != nil {
		return err
	}
	dev.meta = meta
	for _, kind := range driver.Kinds {
		mode, ok, err := dev.db.readMode(ctx, kind)
		if err != nil {
			return err
		}
		if ok {
			dev.modes[kind] = mode
		}
	}
	return nil
}

// Metadata describes the recording.
func (dev *Device) Metadata() Metadata {
	return dev.meta
}

// Info describes the recording as a device.
func (dev *Device) Info() driver.DeviceInfo {
	return driver.DeviceInfo{
		URI:    dev.path,
		Name:   dev.meta.DeviceName,
		Vendor: dev.meta.DeviceVendor,
		Driver: Name,
	}
}

// VideoModes returns the single mode a stream was recorded in, or an empty catalog.
func (dev *Device) VideoModes(kind driver.StreamKind) (videomode.Catalog, error) {
	mode, ok := dev.modes[kind]
	if !ok {
		return videomode.NewCatalog(), nil
	}
	return videomode.NewCatalog(mode), nil
}

// CreateStream makes the replay stream of a kind. Each kind can be created once.
func (dev *Device) CreateStream(kind driver.StreamKind) (driver.Stream, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.closed {
		return nil, errors.New("recording is closed")
	}
	if kind != driver.Depth && kind != driver.Color {
		return nil, errors.Wrap(driver.ErrUnsupportedStream, kind.String())
	}
	if _, ok := dev.streams[kind]; ok {
		return nil, errors.Errorf("%s stream already created", kind)
	}
	s := &Stream{dev: dev, kind: kind}
	dev.streams[kind] = s
	return s, nil
}

// FieldOfView returns the field of view of the recorded device.
func (dev *Device) FieldOfView(kind driver.StreamKind) (float64, float64, error) {
	return dev.meta.HorizontalFOV, dev.meta.VerticalFOV, nil
}

// FrameCount returns the number of frames recorded on a stream.
func (dev *Device) FrameCount(kind driver.StreamKind) (int, error) {
	return dev.db.frameCount(context.Background(), kind)
}

// Seek repositions a stream so its next read returns frameIndex.
func (dev *Device) Seek(kind driver.StreamKind, frameIndex int) error {
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
	s.next = frameIndex
	s.mu.Unlock()
	return nil
}

// Close releases the recording file.
func (dev *Device) Close() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.closed {
		return nil
	}
	dev.closed = true
	return dev.db.Close()
}

// Stream replays one stream of a recording.
type Stream struct {
	dev  *Device
	kind driver.StreamKind

	mu      sync.Mutex
	started bool
	next    int
}

// Start begins replay. The only mode a recorded stream supports is the one it was recorded in.
func (s *Stream) Start(ctx context.Context, mode *videomode.VideoMode) (videomode.VideoMode, error) {
	recorded, ok := s.dev.modes[s.kind]
	if !ok {
		return videomode.VideoMode{}, errors.Errorf("recording has no %s stream", s.kind)
	}
	if mode != nil && *mode != recorded {
		return videomode.VideoMode{}, errors.Errorf("%s stream was recorded as %s, not %s", s.kind, recorded, mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return recorded, nil
}

// ReadFrame decodes the next recorded frame.
func (s *Stream) ReadFrame(ctx context.Context) (*driver.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, errors.Errorf("%s stream is not started", s.kind)
	}
	stored, err := s.dev.db.readFrame(ctx, s.kind, s.next)
	if err != nil {
		return nil, err
	}
	raw, err := decodePixels(stored.compression, stored.rawSize, stored.data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s frame %d", s.kind, s.next)
	}
	mode := s.dev.modes[s.kind]
	img, err := pixelsToImage(s.kind, mode, raw)
	if err != nil {
		return nil, errors.Wrapf(err, "%s frame %d", s.kind, s.next)
	}
	f := &driver.Frame{
		Kind:      s.kind,
		Mode:      mode,
		Pixels:    img,
		Timestamp: stored.timestamp,
		Index:     uint64(s.next),
	}
	s.next++
	return f, nil
}

// Stop pauses replay. The read position is kept.
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
