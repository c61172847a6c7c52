package inject

import (
	"context"

	"go.viam.com/rgbd/driver"
)

// Driver is an injected driver.
type Driver struct {
	driver.Driver
	NameFunc             func() string
	EnumerateDevicesFunc func(ctx context.Context) ([]driver.DeviceInfo, error)
	OpenDeviceFunc       func(ctx context.Context, uri string) (driver.Device, error)
}

// Name calls the injected Name or the real version.
func (d *Driver) Name() string {
	if d.NameFunc == nil {
		return d.Driver.Name()
	}
	return d.NameFunc()
}

// EnumerateDevices calls the injected EnumerateDevices or the real version.
func (d *Driver) EnumerateDevices(ctx context.Context) ([]driver.DeviceInfo, error) {
	if d.EnumerateDevicesFunc == nil {
		return d.Driver.EnumerateDevices(ctx)
	}
	return d.EnumerateDevicesFunc(ctx)
}

// OpenDevice calls the injected OpenDevice or the real version.
func (d *Driver) OpenDevice(ctx context.Context, uri string) (driver.Device, error) {
	if d.OpenDeviceFunc == nil {
		return d.Driver.OpenDevice(ctx, uri)
	}
	return d.OpenDeviceFunc(ctx, uri)
}
