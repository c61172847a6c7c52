// Package webcam pairs two video devices exposed through mediadevices, a color camera and a
// Z16 depth camera, into one live rgbd device.
package webcam

import (
	"context"
	"image"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	driverutils "github.com/pion/mediadevices/pkg/driver"
	mediadevicescamera "github.com/pion/mediadevices/pkg/driver/camera"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/rimage"
	"go.viam.com/rgbd/videomode"
)

// Name is the uri scheme of the webcam driver.
const Name = "webcam"

func init() {
	driver.Register(NewDriver(Config{}))
}

// Config selects the video devices that make up an rgbd device.
type Config struct {
	// ColorLabel is the mediadevices label of the color camera. Empty picks the uri, or else the
	// first camera without a depth format.
	ColorLabel string
	// DepthLabel is the mediadevices label of the depth camera. Empty picks the first camera
	// offering Z16.
	DepthLabel string
	// Fields of view in radians, applied to both streams.
	HorizontalFOV float64
	VerticalFOV   float64
}

// ErrNoFieldOfView is returned by FieldOfView when the config leaves it unset.
var ErrNoFieldOfView = errors.New("webcam field of view is not configured")

// Option changes how a Driver finds and times devices.
type Option func(*Driver)

// WithQuery replaces the mediadevices driver query.
func WithQuery(query func() []driverutils.Driver) Option {
	return func(d *Driver) {
		d.query = query
	}
}

// WithClock replaces the clock frame timestamps are taken from.
func WithClock(clk clock.Clock) Option {
	return func(d *Driver) {
		d.clock = clk
	}
}

// Driver opens webcam pairs.
type Driver struct {
	cfg   Config
	query func() []driverutils.Driver
	clock clock.Clock
}

// NewDriver returns a webcam driver.
func NewDriver(cfg Config, opts ...Option) *Driver {
	d := &Driver{cfg: cfg, query: queryVideoDrivers, clock: clock.New()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func queryVideoDrivers() []driverutils.Driver {
	mediadevicescamera.Initialize()
	return driverutils.GetManager().Query(driverutils.FilterVideoRecorder())
}

// Name returns "webcam".
func (d *Driver) Name() string {
	return Name
}

func label(vd driverutils.Driver) string {
	labels := strings.Split(vd.Info().Label, mediadevicescamera.LabelSeparator)
	return labels[0]
}

func matchesLabel(vd driverutils.Driver, want string) bool {
	for _, l := range strings.Split(vd.Info().Label, mediadevicescamera.LabelSeparator) {
		if l == want {
			return true
		}
	}
	return false
}

// properties returns what a video driver offers, opening it briefly if needed.
func properties(vd driverutils.Driver) (_ []prop.Media, err error) {
	if vd.Status() == driverutils.StateClosed {
		if err := vd.Open(); err != nil {
			return nil, err
		}
		defer func() {
			err = multierr.Combine(err, vd.Close())
		}()
	}
	return vd.Properties(), nil
}

func offersDepth(vd driverutils.Driver) bool {
	props, err := properties(vd)
	if err != nil {
		return false
	}
	for _, p := range props {
		if p.Video.FrameFormat == frame.FormatZ16 {
			return true
		}
	}
	return false
}

// EnumerateDevices lists every color camera as a device. Opening one still needs a depth camera.
func (d *Driver) EnumerateDevices(ctx context.Context) ([]driver.DeviceInfo, error) {
	var infos []driver.DeviceInfo
	for _, vd := range d.query() {
		if offersDepth(vd) {
			continue
		}
		infos = append(infos, driver.DeviceInfo{
			URI:    Name + "://" + label(vd),
			Name:   vd.Info().Name,
			Driver: Name,
			Live:   true,
		})
	}
	return infos, nil
}

// OpenDevice opens the color camera labelled uri together with a depth camera.
func (d *Driver) OpenDevice(ctx context.Context, uri string) (driver.Device, error) {
	colorLabel := uri
	if colorLabel == "" {
		colorLabel = d.cfg.ColorLabel
	}
	var colorDriver, depthDriver driverutils.Driver
	for _, vd := range d.query() {
		isDepth := offersDepth(vd)
		switch {
		case d.cfg.DepthLabel != "" && matchesLabel(vd, d.cfg.DepthLabel):
			depthDriver = vd
		case d.cfg.DepthLabel == "" && isDepth && depthDriver == nil:
			depthDriver = vd
		case colorDriver == nil && !isDepth && (colorLabel == "" || matchesLabel(vd, colorLabel)):
			colorDriver = vd
		}
	}
	if colorDriver == nil {
		return nil, errors.Wrapf(driver.ErrNoDevice, "no color camera labelled %q", colorLabel)
	}
	if depthDriver == nil {
		return nil, errors.Wrapf(driver.ErrNoDevice, "no depth camera to pair with %q", label(colorDriver))
	}

	if err := colorDriver.Open(); err != nil {
		return nil, errors.Wrapf(err, "failed to open color camera %q", label(colorDriver))
	}
	if err := depthDriver.Open(); err != nil {
		return nil, multierr.Combine(
			errors.Wrapf(err, "failed to open depth camera %q", label(depthDriver)),
			colorDriver.Close())
	}
	dev := &Device{
		cfg:     d.cfg,
		clock:   d.clock,
		uri:     Name + "://" + label(colorDriver),
		sources: map[driver.StreamKind]driverutils.Driver{driver.Depth: depthDriver, driver.Color: colorDriver},
		streams: map[driver.StreamKind]*Stream{},
	}
	return dev, nil
}

// Device is an opened webcam pair.
type Device struct {
	cfg     Config
	clock   clock.Clock
	uri     string
	sources map[driver.StreamKind]driverutils.Driver

	mu      sync.Mutex
	streams map[driver.StreamKind]*Stream
	closed  bool
}

// Info describes the color camera of the pair.
func (dev *Device) Info() driver.DeviceInfo {
	return driver.DeviceInfo{
		URI:    dev.uri,
		Name:   dev.sources[driver.Color].Info().Name,
		Driver: Name,
		Live:   true,
	}
}

// modes pairs each supported video mode with the mediadevices property that produces it.
func (dev *Device) modes(kind driver.StreamKind) ([]videomode.VideoMode, []prop.Media, error) {
	vd, ok := dev.sources[kind]
	if !ok {
		return nil, nil, errors.Wrap(driver.ErrUnsupportedStream, kind.String())
	}
	var modes []videomode.VideoMode
	var props []prop.Media
	seen := map[videomode.VideoMode]bool{}
	for _, p := range vd.Properties() {
		format := videomode.FromFrameFormat(p.Video.FrameFormat)
		if format == videomode.FormatUnknown || format.IsDepth() != (kind == driver.Depth) {
			continue
		}
		mode := videomode.VideoMode{
			Width:       p.Video.Width,
			Height:      p.Video.Height,
			PixelFormat: format,
			FrameRate:   p.Video.FrameRate,
		}
		if seen[mode] {
			continue
		}
		seen[mode] = true
		modes = append(modes, mode)
		props = append(props, p)
	}
	return modes, props, nil
}

// VideoModes lists the modes a camera reports, in the order it reports them.
func (dev *Device) VideoModes(kind driver.StreamKind) (videomode.Catalog, error) {
	modes, _, err := dev.modes(kind)
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
		return nil, errors.New("webcam is closed")
	}
	if _, ok := dev.sources[kind]; !ok {
		return nil, errors.Wrap(driver.ErrUnsupportedStream, kind.String())
	}
	if _, ok := dev.streams[kind]; ok {
		return nil, errors.Errorf("webcam %s stream already created", kind)
	}
	s := &Stream{dev: dev, kind: kind}
	dev.streams[kind] = s
	return s, nil
}

// FieldOfView returns the configured field of view.
func (dev *Device) FieldOfView(kind driver.StreamKind) (float64, float64, error) {
	if dev.cfg.HorizontalFOV <= 0 || dev.cfg.VerticalFOV <= 0 {
		return 0, 0, ErrNoFieldOfView
	}
	return dev.cfg.HorizontalFOV, dev.cfg.VerticalFOV, nil
}

// Close stops both streams and closes both cameras.
func (dev *Device) Close() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.closed {
		return nil
	}
	dev.closed = true
	var err error
	for _, s := range dev.streams {
		err = multierr.Combine(err, s.Stop())
	}
	for _, kind := range driver.Kinds {
		err = multierr.Combine(err, dev.sources[kind].Close())
	}
	return err
}

// Stream reads one camera of the pair.
type Stream struct {
	dev  *Device
	kind driver.StreamKind

	mu      sync.Mutex
	reader  video.Reader
	mode    videomode.VideoMode
	epoch   int64
	next    uint64
	// pending holds the result of the read in flight, if any.
	pending chan readResult
	reading sync.WaitGroup
}

// Start opens a video reader in mode, or the camera's first supported mode for nil.
func (s *Stream) Start(ctx context.Context, mode *videomode.VideoMode) (videomode.VideoMode, error) {
	modes, props, err := s.dev.modes(s.kind)
	if err != nil {
		return videomode.VideoMode{}, err
	}
	idx := -1
	if mode == nil && len(modes) > 0 {
		idx = 0
	}
	for i, m := range modes {
		if mode != nil && m == *mode {
			idx = i
			break
		}
	}
	if idx < 0 {
		if mode == nil {
			return videomode.VideoMode{}, errors.Errorf("webcam %s stream has no supported modes", s.kind)
		}
		return videomode.VideoMode{}, errors.Errorf("webcam %s stream does not support %s", s.kind, mode)
	}

	recorder, ok := s.dev.sources[s.kind].(driverutils.VideoRecorder)
	if !ok {
		return videomode.VideoMode{}, errors.Errorf("webcam %s source cannot record video", s.kind)
	}
	reader, err := recorder.VideoRecord(props[idx])
	if err != nil {
		return videomode.VideoMode{}, errors.Wrapf(err, "failed to start webcam %s stream", s.kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reader = reader
	s.mode = modes[idx]
	s.epoch = s.dev.clock.Now().UnixMicro()
	s.next = 0
	s.pending = nil
	return s.mode, nil
}

type readResult struct {
	img image.Image
	err error
}

// ReadFrame waits for the camera's next image. The reader is only ever read by one goroutine:
// a read abandoned through ctx keeps running and its image is returned by the next ReadFrame
// instead of starting another read. ReadFrame must not be called concurrently.
func (s *Stream) ReadFrame(ctx context.Context) (*driver.Frame, error) {
	s.mu.Lock()
	reader, mode := s.reader, s.mode
	if reader == nil {
		s.mu.Unlock()
		return nil, errors.Errorf("webcam %s stream is not started", s.kind)
	}
	result := s.pending
	if result == nil {
		result = make(chan readResult, 1)
		s.pending = result
		s.reading.Add(1)
		utils.PanicCapturingGo(func() {
			defer s.reading.Done()
			img, release, err := reader.Read()
			if err == nil {
				img, err = s.copyImage(img)
			}
			if release != nil {
				release()
			}
			result <- readResult{img: img, err: err}
		})
	}
	s.mu.Unlock()

	var res readResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-result:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == result {
		s.pending = nil
	}
	if res.err != nil {
		return nil, errors.Wrapf(res.err, "webcam %s read failed", s.kind)
	}
	if s.reader != reader {
		return nil, errors.Errorf("webcam %s stream stopped while reading", s.kind)
	}
	f := &driver.Frame{
		Kind:      s.kind,
		Mode:      mode,
		Pixels:    res.img,
		Timestamp: uint64(s.dev.clock.Now().UnixMicro() - s.epoch),
		Index:     s.next,
	}
	s.next++
	return f, nil
}

// copyImage takes the pixels out of a buffer the reader is about to reuse.
func (s *Stream) copyImage(img image.Image) (image.Image, error) {
	if s.kind == driver.Depth {
		dm, err := rimage.ConvertImageToDepthMap(img)
		if err != nil {
			return nil, err
		}
		if _, ok := img.(*rimage.DepthMap); ok {
			return dm.Clone(), nil
		}
		return dm, nil
	}
	if ci, ok := img.(*rimage.ColorImage); ok {
		return rimage.NewColorImageFromRGB(ci.Width(), ci.Height(), append([]byte(nil), ci.Pix()...))
	}
	return rimage.ConvertToColorImage(img), nil
}

// Stop closes the video reader. The camera stays open until the device closes.
func (s *Stream) Stop() error {
	s.mu.Lock()
	reader := s.reader
	s.reader = nil
	s.pending = nil
	s.mu.Unlock()
	if reader == nil {
		return nil
	}
	closer, ok := reader.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

// Close stops the stream and waits for reads still in flight.
func (s *Stream) Close() error {
	err := s.Stop()
	s.reading.Wait()
	return err
}
