package driver

import (
	"image"

	"github.com/pkg/errors"

	"go.viam.com/rgbd/rimage"
	"go.viam.com/rgbd/videomode"
)

// Frame is one image read from a stream. The caller owns it.
type Frame struct {
	Kind StreamKind
	Mode videomode.VideoMode
	// Pixels is a *rimage.DepthMap for depth streams and a *rimage.ColorImage for color streams.
	Pixels image.Image
	// Timestamp is in device clock microseconds.
	Timestamp uint64
	// Index increases by at least one per frame.
	Index uint64
}

// DepthMap returns the pixels of a depth frame.
func (f *Frame) DepthMap() (*rimage.DepthMap, error) {
	dm, ok := f.Pixels.(*rimage.DepthMap)
	if !ok {
		return nil, errors.Errorf("%s frame holds %T, not a depth map", f.Kind, f.Pixels)
	}
	return dm, nil
}

// ColorImage returns the pixels of a color frame.
func (f *Frame) ColorImage() (*rimage.ColorImage, error) {
	ci, ok := f.Pixels.(*rimage.ColorImage)
	if !ok {
		return nil, errors.Errorf("%s frame holds %T, not a color image", f.Kind, f.Pixels)
	}
	return ci, nil
}
