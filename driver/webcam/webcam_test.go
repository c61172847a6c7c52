package webcam_test

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	driverutils "github.com/pion/mediadevices/pkg/driver"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/test"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/driver/webcam"
	"go.viam.com/rgbd/rimage"
	"go.viam.com/rgbd/videomode"
)

// mediaDriver stands in for a mediadevices camera.
type mediaDriver struct {
	label string
	props []prop.Media
	// frames feeds Read; closing it makes reads fail.
	frames chan image.Image

	mu     sync.Mutex
	state  driverutils.State
	opened int

	// reads counts Read calls in progress; overlapped is set if two ever ran at once.
	reads      atomic.Int32
	overlapped atomic.Bool
}

func newMediaDriver(label string, frames chan image.Image, props ...prop.Media) *mediaDriver {
	return &mediaDriver{label: label, props: props, frames: frames, state: driverutils.StateClosed}
}

func (md *mediaDriver) Open() error {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.state = driverutils.StateOpened
	md.opened++
	return nil
}

func (md *mediaDriver) Close() error {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.state = driverutils.StateClosed
	return nil
}

func (md *mediaDriver) Properties() []prop.Media {
	return md.props
}

func (md *mediaDriver) ID() string {
	return md.label
}

func (md *mediaDriver) Info() driverutils.Info {
	return driverutils.Info{Label: md.label, Name: md.label + " camera"}
}

func (md *mediaDriver) Status() driverutils.State {
	md.mu.Lock()
	defer md.mu.Unlock()
	return md.state
}

func (md *mediaDriver) VideoRecord(p prop.Media) (video.Reader, error) {
	return &mediaReader{md: md}, nil
}

type mediaReader struct {
	md *mediaDriver
}

func (r *mediaReader) Read() (image.Image, func(), error) {
	if r.md.reads.Inc() > 1 {
		r.md.overlapped.Store(true)
	}
	defer r.md.reads.Dec()
	img, ok := <-r.md.frames
	if !ok {
		return nil, nil, errors.New("camera unplugged")
	}
	return img, func() {}, nil
}

func media(w, h int, format frame.Format, fps float32) prop.Media {
	var p prop.Media
	p.Video.Width = w
	p.Video.Height = h
	p.Video.FrameFormat = format
	p.Video.FrameRate = fps
	return p
}

type rig struct {
	color, depth *mediaDriver
	clock        *clock.Mock
	driver       *webcam.Driver
}

func newRig(cfg webcam.Config) *rig {
	r := &rig{
		color: newMediaDriver("video0", make(chan image.Image, 4),
			media(640, 480, frame.FormatRGBA, 30),
			media(640, 480, frame.FormatMJPEG, 30),
			media(640, 480, frame.FormatRGBA, 30),
			media(320, 240, frame.FormatNV12, 30)),
		depth: newMediaDriver("video2", make(chan image.Image, 4),
			media(640, 480, frame.FormatZ16, 30)),
		clock: clock.NewMock(),
	}
	r.driver = webcam.NewDriver(cfg,
		webcam.WithQuery(func() []driverutils.Driver { return []driverutils.Driver{r.color, r.depth} }),
		webcam.WithClock(r.clock))
	return r
}

func TestEnumerateDevices(t *testing.T) {
	r := newRig(webcam.Config{})
	infos, err := r.driver.EnumerateDevices(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, infos, test.ShouldResemble, []driver.DeviceInfo{
		{URI: "webcam://video0", Name: "video0 camera", Driver: webcam.Name, Live: true},
	})
}

func TestOpenPairsDepthCamera(t *testing.T) {
	r := newRig(webcam.Config{HorizontalFOV: 1.2, VerticalFOV: 0.9})
	dev, err := r.driver.OpenDevice(context.Background(), "video0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.Info().URI, test.ShouldEqual, "webcam://video0")
	test.That(t, r.color.Status(), test.ShouldEqual, driverutils.StateOpened)
	test.That(t, r.depth.Status(), test.ShouldEqual, driverutils.StateOpened)

	colorModes, err := dev.VideoModes(driver.Color)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, colorModes.List(), test.ShouldResemble, []videomode.VideoMode{
		{Width: 640, Height: 480, PixelFormat: videomode.RGB888, FrameRate: 30},
		{Width: 640, Height: 480, PixelFormat: videomode.JPEG, FrameRate: 30},
	})
	depthModes, err := dev.VideoModes(driver.Depth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depthModes.List(), test.ShouldResemble, []videomode.VideoMode{
		{Width: 640, Height: 480, PixelFormat: videomode.Depth1MM, FrameRate: 30},
	})

	h, v, err := dev.FieldOfView(driver.Depth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h, test.ShouldEqual, 1.2)
	test.That(t, v, test.ShouldEqual, 0.9)

	test.That(t, dev.Close(), test.ShouldBeNil)
	test.That(t, r.color.Status(), test.ShouldEqual, driverutils.StateClosed)
	test.That(t, r.depth.Status(), test.ShouldEqual, driverutils.StateClosed)
}

func TestOpenErrors(t *testing.T) {
	r := newRig(webcam.Config{})
	_, err := r.driver.OpenDevice(context.Background(), "video9")
	test.That(t, errors.Is(err, driver.ErrNoDevice), test.ShouldBeTrue)

	r = newRig(webcam.Config{DepthLabel: "video7"})
	_, err = r.driver.OpenDevice(context.Background(), "")
	test.That(t, errors.Is(err, driver.ErrNoDevice), test.ShouldBeTrue)
	test.That(t, r.color.Status(), test.ShouldEqual, driverutils.StateClosed)

	r = newRig(webcam.Config{})
	dev, err := r.driver.OpenDevice(context.Background(), "")
	test.That(t, err, test.ShouldBeNil)
	_, _, err = dev.FieldOfView(driver.Color)
	test.That(t, errors.Is(err, webcam.ErrNoFieldOfView), test.ShouldBeTrue)
	test.That(t, dev.Close(), test.ShouldBeNil)
}

func TestReadFrames(t *testing.T) {
	r := newRig(webcam.Config{})
	dev, err := r.driver.OpenDevice(context.Background(), "")
	test.That(t, err, test.ShouldBeNil)
	defer func() { test.That(t, dev.Close(), test.ShouldBeNil) }()

	depth, err := dev.CreateStream(driver.Depth)
	test.That(t, err, test.ShouldBeNil)
	_, err = dev.CreateStream(driver.Depth)
	test.That(t, err, test.ShouldNotBeNil)
	color, err := dev.CreateStream(driver.Color)
	test.That(t, err, test.ShouldBeNil)

	_, err = depth.ReadFrame(context.Background())
	test.That(t, err, test.ShouldNotBeNil)

	unsupported := videomode.VideoMode{Width: 1, Height: 1, PixelFormat: videomode.Depth1MM}
	_, err = depth.Start(context.Background(), &unsupported)
	test.That(t, err, test.ShouldNotBeNil)
	mode, err := depth.Start(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode.PixelFormat, test.ShouldEqual, videomode.Depth1MM)
	_, err = color.Start(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)

	gray := image.NewGray16(image.Rect(0, 0, 2, 1))
	gray.SetGray16(1, 0, colorGray16(1500))
	r.depth.frames <- gray
	r.clock.Add(33 * time.Millisecond)
	f, err := depth.ReadFrame(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Index, test.ShouldEqual, uint64(0))
	test.That(t, f.Timestamp, test.ShouldEqual, uint64(33000))
	dm, err := f.DepthMap()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(1, 0), test.ShouldEqual, rimage.Depth(1500))

	rgba := image.NewRGBA(image.Rect(0, 0, 1, 1))
	rgba.Pix[0], rgba.Pix[1], rgba.Pix[2], rgba.Pix[3] = 10, 20, 30, 255
	r.color.frames <- rgba
	f, err = color.ReadFrame(context.Background())
	test.That(t, err, test.ShouldBeNil)
	ci, err := f.ColorImage()
	test.That(t, err, test.ShouldBeNil)
	red, green, blue := ci.RGB(0, 0)
	test.That(t, []uint8{red, green, blue}, test.ShouldResemble, []uint8{10, 20, 30})

	r.depth.frames <- gray
	f, err = depth.ReadFrame(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Index, test.ShouldEqual, uint64(1))
}

func TestReadHonorsContext(t *testing.T) {
	r := newRig(webcam.Config{})
	dev, err := r.driver.OpenDevice(context.Background(), "")
	test.That(t, err, test.ShouldBeNil)
	s, err := dev.CreateStream(driver.Color)
	test.That(t, err, test.ShouldBeNil)
	_, err = s.Start(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.ReadFrame(ctx)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)

	// the abandoned read ends once the camera goes away
	close(r.color.frames)
	test.That(t, s.Close(), test.ShouldBeNil)
	test.That(t, dev.Close(), test.ShouldBeNil)
}

func TestReadAfterTimeoutReusesPendingRead(t *testing.T) {
	r := newRig(webcam.Config{})
	dev, err := r.driver.OpenDevice(context.Background(), "")
	test.That(t, err, test.ShouldBeNil)
	defer func() { test.That(t, dev.Close(), test.ShouldBeNil) }()
	s, err := dev.CreateStream(driver.Color)
	test.That(t, err, test.ShouldBeNil)
	_, err = s.Start(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err = s.ReadFrame(ctx)
		cancel()
		test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
	}

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(1, 1, color.RGBA{R: 7, G: 8, B: 9, A: 255})
	r.color.frames <- img
	f, err := s.ReadFrame(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Index, test.ShouldEqual, uint64(0))
	ci, err := f.ColorImage()
	test.That(t, err, test.ShouldBeNil)
	rr, g, b := ci.RGB(1, 1)
	test.That(t, []uint8{rr, g, b}, test.ShouldResemble, []uint8{7, 8, 9})

	r.color.frames <- img
	f, err = s.ReadFrame(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Index, test.ShouldEqual, uint64(1))
	test.That(t, r.color.overlapped.Load(), test.ShouldBeFalse)

	close(r.color.frames)
	test.That(t, s.Close(), test.ShouldBeNil)
}

func colorGray16(v uint16) color.Gray16 {
	return color.Gray16{Y: v}
}
