package transform

import (
	"image"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/rgbd/rimage"
	"go.viam.com/rgbd/videomode"
)

// DepthMapToPoints back-projects every pixel with a reading into camera space. Points are in
// millimetres, converted from the units of format. An optional crop limits the pixels used.
func (params *PinholeCameraIntrinsics) DepthMapToPoints(
	dm *rimage.DepthMap,
	format videomode.PixelFormat,
	crop ...image.Rectangle,
) ([]r3.Vector, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	if dm == nil {
		return nil, errors.New("no depth channel, cannot project to points")
	}
	if params.Width != dm.Width() || params.Height != dm.Height() {
		return nil, errors.Errorf("depth map and intrinsics don't match Depth(%d,%d) != Intrinsics(%d,%d)",
			dm.Width(), dm.Height(), params.Width, params.Height)
	}
	scale := format.MillimetresPerUnit()
	if scale <= 0 {
		return nil, errors.Errorf("%s is not a metric depth format", format)
	}
	if len(crop) > 1 {
		return nil, errors.Errorf("cannot have more than one cropping rectangle, got %v", crop)
	}
	bounds := dm.Bounds()
	if len(crop) == 1 {
		bounds = crop[0].Intersect(bounds)
	}

	points := make([]r3.Vector, 0, bounds.Dx()*bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			d := dm.GetDepth(x, y)
			if d == 0 {
				continue
			}
			px, py, pz := params.PixelToPoint(float64(x), float64(y), float64(d)*scale)
			points = append(points, r3.Vector{X: px, Y: py, Z: pz})
		}
	}
	return points, nil
}

// PointsToDepthMap projects millimetre points onto the image plane, keeping the nearest point
// per pixel. Points behind the camera or outside the image are dropped.
func (params *PinholeCameraIntrinsics) PointsToDepthMap(points []r3.Vector, format videomode.PixelFormat) (*rimage.DepthMap, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	scale := format.MillimetresPerUnit()
	if scale <= 0 {
		return nil, errors.Errorf("%s is not a metric depth format", format)
	}
	dm := rimage.NewEmptyDepthMap(params.Width, params.Height)
	for _, pt := range points {
		if pt.Z <= 0 {
			continue
		}
		j, i := params.PointToPixel(pt.X, pt.Y, pt.Z)
		x, y := int(j), int(i)
		if !dm.Contains(x, y) {
			continue
		}
		units := math.Round(pt.Z / scale)
		if units < 1 || units > float64(rimage.MaxDepth) {
			continue
		}
		d := rimage.Depth(units)
		if existing := dm.GetDepth(x, y); existing == 0 || d < existing {
			dm.Set(x, y, d)
		}
	}
	return dm, nil
}
