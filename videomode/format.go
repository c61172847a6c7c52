package videomode

import (
	"fmt"
	"strings"

	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pkg/errors"
)

// PixelFormat identifies how a stream lays out its pixels.
type PixelFormat int

// The known pixel formats. The zero value is deliberately invalid.
const (
	FormatUnknown PixelFormat = iota
	// Depth1MM is 16 bit depth in millimetres.
	Depth1MM
	// Depth100UM is 16 bit depth in units of 100 micrometres.
	Depth100UM
	// Shift92 is packed disparity, 9.2 fixed point.
	Shift92
	// Shift93 is packed disparity, 9.3 fixed point.
	Shift93
	// RGB888 is 24 bit packed color.
	RGB888
	// YUV422 is UYVY ordered 4:2:2.
	YUV422
	// YUYV is YUYV ordered 4:2:2.
	YUYV
	// Gray8 is 8 bit grayscale.
	Gray8
	// Gray16 is 16 bit grayscale.
	Gray16
	// JPEG is a compressed still per frame.
	JPEG
)

var formatNames = map[PixelFormat]string{
	FormatUnknown: "UNKNOWN",
	Depth1MM:      "DEPTH_1_MM",
	Depth100UM:    "DEPTH_100_UM",
	Shift92:       "SHIFT_9_2",
	Shift93:       "SHIFT_9_3",
	RGB888:        "RGB888",
	YUV422:        "YUV422",
	YUYV:          "YUYV",
	Gray8:         "GRAY8",
	Gray16:        "GRAY16",
	JPEG:          "JPEG",
}

func (f PixelFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// ParsePixelFormat is the inverse of String. Matching is case-insensitive.
func ParsePixelFormat(name string) (PixelFormat, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for f, n := range formatNames {
		if f != FormatUnknown && n == upper {
			return f, nil
		}
	}
	return FormatUnknown, errors.Errorf("unknown pixel format %q", name)
}

// MarshalText encodes the format by name.
func (f PixelFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText decodes a format name.
func (f *PixelFormat) UnmarshalText(text []byte) error {
	parsed, err := ParsePixelFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// IsDepth is true for formats carrying range data.
func (f PixelFormat) IsDepth() bool {
	switch f {
	case Depth1MM, Depth100UM, Shift92, Shift93:
		return true
	default:
		return false
	}
}

// BytesPerPixel returns the unpacked size of a pixel, or 0 for compressed formats.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case Depth1MM, Depth100UM, Shift92, Shift93, Gray16, YUV422, YUYV:
		return 2
	case RGB888:
		return 3
	case Gray8:
		return 1
	default:
		return 0
	}
}

// MillimetresPerUnit converts depth values of this format to millimetres. It is 0 for formats
// that are not metric depth.
func (f PixelFormat) MillimetresPerUnit() float64 {
	switch f {
	case Depth1MM:
		return 1
	case Depth100UM:
		return 0.1
	default:
		return 0
	}
}

// FrameFormat returns the mediadevices frame format that carries this pixel format, if any.
func (f PixelFormat) FrameFormat() (frame.Format, bool) {
	switch f {
	case Depth1MM:
		return frame.FormatZ16, true
	case YUV422:
		return frame.FormatUYVY, true
	case YUYV:
		return frame.FormatYUY2, true
	case JPEG:
		return frame.FormatMJPEG, true
	case RGB888:
		return frame.FormatRGBA, true
	default:
		return "", false
	}
}

// FromFrameFormat maps a mediadevices frame format to a pixel format.
func FromFrameFormat(ff frame.Format) PixelFormat {
	switch ff {
	case frame.FormatZ16:
		return Depth1MM
	case frame.FormatUYVY:
		return YUV422
	case frame.FormatYUY2:
		return YUYV
	case frame.FormatMJPEG:
		return JPEG
	case frame.FormatRGBA:
		return RGB888
	default:
		return FormatUnknown
	}
}
