package rimage

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"go.viam.com/utils"
	"golang.org/x/image/tiff"
)

// EncodeDepthPNG writes a 16-bit grayscale PNG.
func EncodeDepthPNG(w io.Writer, dm *DepthMap) error {
	return png.Encode(w, dm.ToGray16())
}

// EncodeDepthTIFF writes a 16-bit grayscale TIFF.
func EncodeDepthTIFF(w io.Writer, dm *DepthMap) error {
	return tiff.Encode(w, dm.ToGray16(), &tiff.Options{Compression: tiff.Deflate})
}

// EncodeColorPPM writes a binary PPM.
func EncodeColorPPM(w io.Writer, img image.Image) error {
	return ppm.Encode(w, img)
}

// EncodeQOI writes a lossless QOI image, which is much faster to produce than PNG.
func EncodeQOI(w io.Writer, img image.Image) error {
	return qoi.Encode(w, img)
}

// WriteImageFile writes an image to disk, picking the encoder from the extension. Depth maps may
// be written as .png or .tiff, color images as .ppm, .png or .qoi.
func WriteImageFile(path string, img image.Image) error {
	encode, err := encoderFor(strings.ToLower(filepath.Ext(path)), img)
	if err != nil {
		return err
	}
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot create %q", path)
	}
	if err := encode(f); err != nil {
		utils.UncheckedError(f.Close())
		return errors.Wrapf(err, "cannot encode %q", path)
	}
	return f.Close()
}

func encoderFor(ext string, img image.Image) (func(io.Writer) error, error) {
	if dm, ok := img.(*DepthMap); ok {
		switch ext {
		case ".png":
			return func(w io.Writer) error { return EncodeDepthPNG(w, dm) }, nil
		case ".tif", ".tiff":
			return func(w io.Writer) error { return EncodeDepthTIFF(w, dm) }, nil
		}
		return nil, errors.Errorf("depth maps cannot be written as %q", ext)
	}
	switch ext {
	case ".ppm":
		return func(w io.Writer) error { return EncodeColorPPM(w, img) }, nil
	case ".png":
		return func(w io.Writer) error { return png.Encode(w, img) }, nil
	case ".qoi":
		return func(w io.Writer) error { return EncodeQOI(w, img) }, nil
	}
	return nil, errors.Errorf("color images cannot be written as %q", ext)
}
