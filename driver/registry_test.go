package driver_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/driver/fake"
	"go.viam.com/rgbd/testutils/inject"
)

type claimingDriver struct {
	*fake.Driver
	name string
}

func (d *claimingDriver) Name() string { return d.name }

func (d *claimingDriver) ClaimsURI(uri string) bool { return strings.HasSuffix(uri, ".rgbd") }

func (d *claimingDriver) OpenDevice(ctx context.Context, uri string) (driver.Device, error) {
	if !d.ClaimsURI(uri) {
		return nil, errors.Wrap(driver.ErrNoDevice, uri)
	}
	return d.Driver.OpenDevice(ctx, "")
}

func TestSplitURI(t *testing.T) {
	scheme, rest, ok := driver.SplitURI("fake://kitchen")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, scheme, test.ShouldEqual, "fake")
	test.That(t, rest, test.ShouldEqual, "kitchen")

	_, rest, ok = driver.SplitURI("/tmp/capture.rgbd")
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, rest, test.ShouldEqual, "/tmp/capture.rgbd")

	_, _, ok = driver.SplitURI("://nothing")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := driver.NewRegistry(fake.NewDriver())
	test.That(t, r.Register(fake.NewDriver()), test.ShouldNotBeNil)
	_, ok := r.Lookup("fake")
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = r.Lookup("nope")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestRegistryOpen(t *testing.T) {
	broken := &inject.Driver{
		NameFunc: func() string { return "broken" },
		OpenDeviceFunc: func(ctx context.Context, uri string) (driver.Device, error) {
			return nil, errors.Wrap(driver.ErrNoDevice, "unplugged")
		},
	}
	files := &claimingDriver{Driver: fake.NewDriver(fake.Recording("file", 2)), name: "files"}
	r := driver.NewRegistry(broken, fake.NewDriver(fake.Recording("a", 1), fake.Recording("b", 1)), files)

	// any device skips drivers that cannot open one
	dev, err := r.Open(context.Background(), "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.Info().Name, test.ShouldEqual, "a")

	dev, err = r.Open(context.Background(), "fake://b")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.Info().Name, test.ShouldEqual, "b")

	dev, err = r.Open(context.Background(), "/data/office.rgbd")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.Info().Name, test.ShouldEqual, "file")

	_, err = r.Open(context.Background(), "missing://x")
	test.That(t, errors.Is(err, driver.ErrNoDevice), test.ShouldBeTrue)

	_, err = r.Open(context.Background(), "zzz")
	test.That(t, errors.Is(err, driver.ErrNoDevice), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unplugged")

	_, err = driver.NewRegistry().Open(context.Background(), "")
	test.That(t, errors.Is(err, driver.ErrNoDevice), test.ShouldBeTrue)
}

func TestRegistryEnumerate(t *testing.T) {
	broken := &inject.Driver{
		NameFunc: func() string { return "broken" },
		EnumerateDevicesFunc: func(ctx context.Context) ([]driver.DeviceInfo, error) {
			return nil, errors.New("permission denied")
		},
	}
	r := driver.NewRegistry(
		fake.NewDriver(fake.Recording("a", 1)),
		broken,
		&claimingDriver{Driver: fake.NewDriver(fake.Recording("c", 1)), name: "files"},
	)
	infos, err := r.Enumerate(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "permission denied")
	test.That(t, infos, test.ShouldHaveLength, 2)
	test.That(t, infos[0].Name, test.ShouldEqual, "a")
	test.That(t, infos[1].Name, test.ShouldEqual, "c")
}
