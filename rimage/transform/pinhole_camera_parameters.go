// Package transform holds pinhole camera models for depth sensors and the projections between
// depth pixels and 3D points.
package transform

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rgbd/rimage"
	"go.viam.com/rgbd/videomode"
)

// ErrNoIntrinsics matches every failure to produce usable intrinsics.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError wraps ErrNoIntrinsics with what was wrong.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics is an undistorted pinhole model of one stream. Ppx and Ppy are the
// principal point (cx, cy) in pixels.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// EstimateFromFOV derives intrinsics for a stream in mode from its field of view in radians:
// fx = w/2 / tan(hFov), fy = h/2 / tan(vFov), with the principal point at the image centre.
func EstimateFromFOV(mode videomode.VideoMode, hFov, vFov float64) (*PinholeCameraIntrinsics, error) {
	if mode.Width <= 0 || mode.Height <= 0 {
		return nil, NewNoIntrinsicsError(fmt.Sprintf("invalid mode size %dx%d", mode.Width, mode.Height))
	}
	if hFov <= 0 || vFov <= 0 || hFov >= math.Pi/2 || vFov >= math.Pi/2 {
		return nil, NewNoIntrinsicsError(fmt.Sprintf("field of view (%v, %v) out of range", hFov, vFov))
	}
	w, h := float64(mode.Width), float64(mode.Height)
	params := &PinholeCameraIntrinsics{
		Width:  mode.Width,
		Height: mode.Height,
		Fx:     w * 0.5 / math.Tan(hFov),
		Fy:     h * 0.5 / math.Tan(vFov),
		Ppx:    w * 0.5,
		Ppy:    h * 0.5,
	}
	return params, params.CheckValid()
}

// CheckValid reports the first field that keeps the intrinsics from describing a real camera.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("intrinsics are nil")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("image size %dx%d", params.Width, params.Height))
	}
	for _, f := range []struct {
		name     string
		value    float64
		positive bool
	}{
		{"fx", params.Fx, true},
		{"fy", params.Fy, true},
		{"ppx", params.Ppx, false},
		{"ppy", params.Ppy, false},
	} {
		if f.value < 0 || (f.positive && f.value == 0) || math.IsNaN(f.value) {
			return NewNoIntrinsicsError(fmt.Sprintf("%s = %v", f.name, f.value))
		}
	}
	return nil
}

// NewPinholeCameraIntrinsicsFromJSONFile reads intrinsics written by WriteJSONFile.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read intrinsics")
	}
	intrinsics := &PinholeCameraIntrinsics{}
	if err := json.Unmarshal(data, intrinsics); err != nil {
		return nil, errors.Wrapf(err, "failed to parse intrinsics in %q", jsonPath)
	}
	return intrinsics, intrinsics.CheckValid()
}

// WriteJSONFile writes the intrinsics as indented JSON.
func (params *PinholeCameraIntrinsics) WriteJSONFile(jsonPath string) error {
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(jsonPath, append(data, '\n'), 0o600)
}

// PixelToPoint back-projects pixel (x, y) at depth z into camera space. The result is in z's
// units.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return 0, 0, 0
	}
	return z * (x - params.Ppx) / params.Fx, z * (y - params.Ppy) / params.Fy, z
}

// PointToPixel projects a camera space point onto the nearest pixel. Points with zero depth
// land at (-1, -1), outside every image.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z == 0 {
		return -1, -1
	}
	return math.Round(params.Fx*x/z + params.Ppx), math.Round(params.Fy*y/z + params.Ppy)
}

// ImagePointTo3DPoint returns the 3D point of an image coordinate at depth d, in d's units.
func (params *PinholeCameraIntrinsics) ImagePointTo3DPoint(point image.Point, d rimage.Depth) r3.Vector {
	px, py, pz := params.PixelToPoint(float64(point.X), float64(point.Y), float64(d))
	return r3.Vector{X: px, Y: py, Z: pz}
}

// GetCameraMatrix returns K, the 3x3 matrix mapping camera space to homogeneous pixels.
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	return mat.NewDense(3, 3, []float64{
		params.Fx, 0, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	})
}
