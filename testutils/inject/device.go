package inject

import (
	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/videomode"
)

// Device is an injected device.
type Device struct {
	driver.Device
	InfoFunc         func() driver.DeviceInfo
	VideoModesFunc   func(kind driver.StreamKind) (videomode.Catalog, error)
	CreateStreamFunc func(kind driver.StreamKind) (driver.Stream, error)
	FieldOfViewFunc  func(kind driver.StreamKind) (float64, float64, error)
	CloseFunc        func() error
}

// Info calls the injected Info or the real version.
func (d *Device) Info() driver.DeviceInfo {
	if d.InfoFunc == nil {
		return d.Device.Info()
	}
	return d.InfoFunc()
}

// VideoModes calls the injected VideoModes or the real version.
func (d *Device) VideoModes(kind driver.StreamKind) (videomode.Catalog, error) {
	if d.VideoModesFunc == nil {
		return d.Device.VideoModes(kind)
	}
	return d.VideoModesFunc(kind)
}

// CreateStream calls the injected CreateStream or the real version.
func (d *Device) CreateStream(kind driver.StreamKind) (driver.Stream, error) {
	if d.CreateStreamFunc == nil {
		return d.Device.CreateStream(kind)
	}
	return d.CreateStreamFunc(kind)
}

// FieldOfView calls the injected FieldOfView or the real version.
func (d *Device) FieldOfView(kind driver.StreamKind) (float64, float64, error) {
	if d.FieldOfViewFunc == nil {
		return d.Device.FieldOfView(kind)
	}
	return d.FieldOfViewFunc(kind)
}

// Close calls the injected Close or the real version.
func (d *Device) Close() error {
	if d.CloseFunc == nil {
		if d.Device == nil {
			return nil
		}
		return d.Device.Close()
	}
	return d.CloseFunc()
}
