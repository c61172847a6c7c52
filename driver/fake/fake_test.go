package fake

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/videomode"
)

func TestDriverOpen(t *testing.T) {
	d := NewDriver(Recording("first", 3), Recording("second", 5))
	test.That(t, d.Name(), test.ShouldEqual, "fake")

	infos, err := d.EnumerateDevices(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, infos, test.ShouldHaveLength, 2)
	test.That(t, infos[1].URI, test.ShouldEqual, "fake://second")
	test.That(t, infos[1].Live, test.ShouldBeFalse)

	dev, err := d.OpenDevice(context.Background(), "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.Info().Name, test.ShouldEqual, "first")

	dev, err = d.OpenDevice(context.Background(), "second")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.Info().Name, test.ShouldEqual, "second")

	_, err = d.OpenDevice(context.Background(), "third")
	test.That(t, errors.Is(err, driver.ErrNoDevice), test.ShouldBeTrue)
}

func TestRecordedStream(t *testing.T) {
	dev := NewDevice(Recording("rec", 3))
	catalog, err := dev.VideoModes(driver.Depth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, catalog.Len(), test.ShouldEqual, len(DefaultDepthModes()))

	s, err := dev.CreateStream(driver.Depth)
	test.That(t, err, test.ShouldBeNil)
	_, err = dev.CreateStream(driver.Depth)
	test.That(t, err, test.ShouldNotBeNil)

	mode, err := catalog.At(2)
	test.That(t, err, test.ShouldBeNil)
	used, err := s.Start(context.Background(), &mode)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, used, test.ShouldResemble, mode)

	for i := 0; i < 3; i++ {
		f, err := s.ReadFrame(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, f.Index, test.ShouldEqual, uint64(i))
		test.That(t, f.Mode, test.ShouldResemble, mode)
		dm, err := f.DepthMap()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, dm.Width(), test.ShouldEqual, 640)
		test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, DepthPattern(1, 1, uint64(i)).GetDepth(0, 0))
	}
	_, err = s.ReadFrame(context.Background())
	test.That(t, errors.Is(err, driver.ErrEndOfStream), test.ShouldBeTrue)

	test.That(t, dev.Seek(driver.Depth, 1), test.ShouldBeNil)
	f, err := s.ReadFrame(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Index, test.ShouldEqual, uint64(1))
	test.That(t, dev.Seek(driver.Depth, 3), test.ShouldNotBeNil)

	count, err := dev.FrameCount(driver.Color)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, count, test.ShouldEqual, 3)
}

func TestStartRejectsUnknownMode(t *testing.T) {
	dev := NewDevice(Recording("rec", 1))
	s, err := dev.CreateStream(driver.Color)
	test.That(t, err, test.ShouldBeNil)
	bogus := videomode.VideoMode{Width: 7, Height: 7, PixelFormat: videomode.RGB888}
	_, err = s.Start(context.Background(), &bogus)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = s.Start(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)
	f, err := s.ReadFrame(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Mode, test.ShouldResemble, DefaultColorModes()[0])
	_, err = f.ColorImage()
	test.That(t, err, test.ShouldBeNil)
}

func TestLiveStreamPacedByClock(t *testing.T) {
	mock := clock.NewMock()
	dev := NewDevice(Config{Name: "live", Live: true, Clock: mock, ColorTimestampOffset: 5})
	s, err := dev.CreateStream(driver.Color)
	test.That(t, err, test.ShouldBeNil)
	_, err = s.Start(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)

	_, err = dev.FrameCount(driver.Color)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, dev.Seek(driver.Color, 0), test.ShouldBeError, driver.ErrSeekUnsupported)

	got := make(chan *driver.Frame)
	go func() {
		for i := 0; i < 2; i++ {
			f, err := s.ReadFrame(context.Background())
			if err != nil {
				close(got)
				return
			}
			got <- f
		}
	}()

	var frames []*driver.Frame
	deadline := time.After(5 * time.Second)
	for len(frames) < 2 {
		mock.Add(time.Second / 30)
		select {
		case f := <-got:
			frames = append(frames, f)
		case <-time.After(time.Millisecond):
		case <-deadline:
			t.Fatal("live stream never produced frames")
		}
	}
	test.That(t, frames[0].Index, test.ShouldEqual, uint64(0))
	test.That(t, frames[1].Index, test.ShouldEqual, uint64(1))
	test.That(t, frames[0].Timestamp, test.ShouldEqual, uint64(5))
	test.That(t, frames[1].Timestamp, test.ShouldBeGreaterThan, frames[0].Timestamp)
}

func TestStalledStreamHonoursContext(t *testing.T) {
	dev := NewDevice(Config{Name: "stalled", Live: true, Stalled: true})
	s, err := dev.CreateStream(driver.Depth)
	test.That(t, err, test.ShouldBeNil)
	_, err = s.Start(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = s.ReadFrame(ctx)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
}

func TestRegistration(t *testing.T) {
	dev := NewDevice(Recording("rec", 1))
	test.That(t, dev.Registration(), test.ShouldBeFalse)
	test.That(t, dev.SetDepthColorRegistration(true), test.ShouldBeNil)
	test.That(t, dev.Registration(), test.ShouldBeTrue)

	h, v, err := dev.FieldOfView(driver.Depth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h, test.ShouldAlmostEqual, DefaultHorizontalFOV)
	test.That(t, v, test.ShouldAlmostEqual, DefaultVerticalFOV)
}
