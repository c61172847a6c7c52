package rimage

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/xfmoulet/qoi"
	"go.viam.com/test"
	"golang.org/x/image/tiff"
)

func TestDepthMapAccessors(t *testing.T) {
	dm := NewEmptyDepthMap(4, 3)
	test.That(t, dm.Width(), test.ShouldEqual, 4)
	test.That(t, dm.Height(), test.ShouldEqual, 3)
	test.That(t, dm.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 3))

	dm.Set(1, 2, 1500)
	dm.Set(3, 0, 300)
	test.That(t, dm.GetDepth(1, 2), test.ShouldEqual, Depth(1500))
	test.That(t, dm.Get(image.Pt(3, 0)), test.ShouldEqual, Depth(300))
	test.That(t, dm.At(1, 2), test.ShouldResemble, color.Gray16{1500})
	test.That(t, dm.At(9, 9), test.ShouldResemble, color.Gray16{})

	lo, hi := dm.MinMax()
	test.That(t, lo, test.ShouldEqual, Depth(300))
	test.That(t, hi, test.ShouldEqual, Depth(1500))

	clone := dm.Clone()
	clone.Set(1, 2, 1)
	test.That(t, dm.GetDepth(1, 2), test.ShouldEqual, Depth(1500))
}

func TestNewDepthMapFromData(t *testing.T) {
	_, err := NewDepthMapFromData(2, 2, make([]Depth, 3))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewDepthMapFromData(0, 2, nil)
	test.That(t, err, test.ShouldNotBeNil)

	dm, err := NewDepthMapFromData(2, 1, []Depth{7, 9})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(1, 0), test.ShouldEqual, Depth(9))
}

func TestConvertImageToDepthMap(t *testing.T) {
	gray := image.NewGray16(image.Rect(0, 0, 2, 2))
	gray.SetGray16(1, 1, color.Gray16{4242})
	dm, err := ConvertImageToDepthMap(gray)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.GetDepth(1, 1), test.ShouldEqual, Depth(4242))

	back := dm.ToGray16()
	test.That(t, back.Gray16At(1, 1).Y, test.ShouldEqual, uint16(4242))

	_, err = ConvertImageToDepthMap(nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestColorImage(t *testing.T) {
	_, err := NewColorImageFromRGB(2, 2, make([]byte, 5))
	test.That(t, err, test.ShouldNotBeNil)

	ci := NewColorImage(3, 2)
	ci.SetRGB(2, 1, 10, 20, 30)
	r, g, b := ci.RGB(2, 1)
	test.That(t, []uint8{r, g, b}, test.ShouldResemble, []uint8{10, 20, 30})
	test.That(t, ci.At(2, 1), test.ShouldResemble, color.RGBA{10, 20, 30, 255})

	rgba := image.NewRGBA(image.Rect(0, 0, 1, 1))
	rgba.Set(0, 0, color.RGBA{1, 2, 3, 255})
	converted := ConvertToColorImage(rgba)
	test.That(t, converted.Pix(), test.ShouldResemble, []byte{1, 2, 3})
}

func TestWriteImageFile(t *testing.T) {
	dir := t.TempDir()
	dm := NewEmptyDepthMap(3, 2)
	dm.Set(0, 0, 1000)

	tiffPath := filepath.Join(dir, "depth.tiff")
	test.That(t, WriteImageFile(tiffPath, dm), test.ShouldBeNil)
	f, err := os.Open(tiffPath)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	decoded, err := tiff.Decode(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, decoded.Bounds().Dx(), test.ShouldEqual, 3)

	test.That(t, WriteImageFile(filepath.Join(dir, "depth.png"), dm), test.ShouldBeNil)
	test.That(t, WriteImageFile(filepath.Join(dir, "color.ppm"), NewColorImage(2, 2)), test.ShouldBeNil)

	err = WriteImageFile(filepath.Join(dir, "depth.ppm"), dm)
	test.That(t, err, test.ShouldNotBeNil)
	_, statErr := os.Stat(filepath.Join(dir, "depth.ppm"))
	test.That(t, os.IsNotExist(statErr), test.ShouldBeTrue)
}

func TestToPrettyPicture(t *testing.T) {
	dm := NewEmptyDepthMap(3, 1)
	dm.Set(0, 0, 500)
	dm.Set(1, 0, 3000)

	img := dm.ToPrettyPicture(0, 0)
	test.That(t, img.Bounds(), test.ShouldResemble, dm.Bounds())
	test.That(t, img.RGBAAt(2, 0), test.ShouldResemble, color.RGBA{})
	near, far := img.RGBAAt(0, 0), img.RGBAAt(1, 0)
	test.That(t, near.R, test.ShouldBeGreaterThan, near.B)
	test.That(t, far.B, test.ShouldBeGreaterThan, far.R)

	clamped := dm.ToPrettyPicture(0, 500)
	test.That(t, clamped.RGBAAt(1, 0), test.ShouldResemble, clamped.RGBAAt(0, 0))
}

func TestWriteQOI(t *testing.T) {
	ci := NewColorImage(2, 1)
	ci.SetRGB(1, 0, 200, 100, 50)
	path := filepath.Join(t.TempDir(), "color.qoi")
	test.That(t, WriteImageFile(path, ci), test.ShouldBeNil)

	f, err := os.Open(path)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	decoded, err := qoi.Decode(f)
	test.That(t, err, test.ShouldBeNil)
	r, g, b, _ := decoded.At(1, 0).RGBA()
	test.That(t, []uint32{r >> 8, g >> 8, b >> 8}, test.ShouldResemble, []uint32{200, 100, 50})
}
