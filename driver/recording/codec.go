package recording

import (
	"encoding/binary"
	"image"

	"github.com/pkg/errors"
	lzf "github.com/zhuyie/golzf"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/rimage"
	"go.viam.com/rgbd/videomode"
)

// Frame payload compression schemes.
const (
	compressionNone = "none"
	compressionLZF  = "lzf"
)

// rawPixels serializes a frame's pixels: little endian uint16 per pixel for depth, RGB888 for
// color.
func rawPixels(kind driver.StreamKind, img image.Image) ([]byte, error) {
	if kind == driver.Depth {
		dm, err := rimage.ConvertImageToDepthMap(img)
		if err != nil {
			return nil, err
		}
		data := dm.Data()
		raw := make([]byte, 2*len(data))
		for i, d := range data {
			binary.LittleEndian.PutUint16(raw[2*i:], uint16(d))
		}
		return raw, nil
	}
	ci := rimage.ConvertToColorImage(img)
	return append([]byte(nil), ci.Pix()...), nil
}

// encodePixels compresses raw pixels with LZF, keeping them as they are when that does not
// make them smaller.
func encodePixels(raw []byte) (string, []byte) {
	out := make([]byte, len(raw))
	n, err := lzf.Compress(raw, out)
	if err != nil || n == 0 || n >= len(raw) {
		return compressionNone, raw
	}
	return compressionLZF, out[:n]
}

func decodePixels(compression string, rawSize int, data []byte) ([]byte, error) {
	switch compression {
	case compressionNone:
		if len(data) != rawSize {
			return nil, errors.Errorf("frame holds %d bytes, expected %d", len(data), rawSize)
		}
		return data, nil
	case compressionLZF:
		raw := make([]byte, rawSize)
		n, err := lzf.Decompress(data, raw)
		if err != nil {
			return nil, errors.Wrap(err, "corrupt lzf frame")
		}
		if n != rawSize {
			return nil, errors.Errorf("lzf frame decompressed to %d bytes, expected %d", n, rawSize)
		}
		return raw, nil
	default:
		return nil, errors.Errorf("unknown frame compression %q", compression)
	}
}

// pixelsToImage rebuilds the image of a frame recorded in mode.
func pixelsToImage(kind driver.StreamKind, mode videomode.VideoMode, raw []byte) (image.Image, error) {
	if kind == driver.Depth {
		n := mode.Width * mode.Height
		if len(raw) != 2*n {
			return nil, errors.Errorf("depth frame holds %d bytes, %s needs %d", len(raw), mode, 2*n)
		}
		data := make([]rimage.Depth, n)
		for i := range data {
			data[i] = rimage.Depth(binary.LittleEndian.Uint16(raw[2*i:]))
		}
		dm, err := rimage.NewDepthMapFromData(mode.Width, mode.Height, data)
		if err != nil {
			return nil, err
		}
		return dm, nil
	}
	ci, err := rimage.NewColorImageFromRGB(mode.Width, mode.Height, raw)
	if err != nil {
		return nil, err
	}
	return ci, nil
}
