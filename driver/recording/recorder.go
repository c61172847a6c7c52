package recording

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/videomode"
)

// A Recorder writes frames into a new recording. Each stream is recorded in the mode of its
// first frame; color is always stored as RGB888.
type Recorder struct {
	path string
	db   *db
	meta Metadata

	mu     sync.Mutex
	modes  map[driver.StreamKind]videomode.VideoMode
	counts map[driver.StreamKind]int
	bytes  int64
	closed bool
}

// Create starts a recording at path, which must not exist yet. info and the field of view
// describe the device being recorded.
func Create(ctx context.Context, path string, info driver.DeviceInfo, hFov, vFov float64) (*Recorder, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, errors.Errorf("recording %q already exists", path)
	}
	rdb, err := createDB(path)
	if err != nil {
		return nil, err
	}
	meta := Metadata{
		ID:            uuid.NewString(),
		FormatVersion: FormatVersion,
		DeviceName:    info.Name,
		DeviceVendor:  info.Vendor,
		HorizontalFOV: hFov,
		VerticalFOV:   vFov,
		Created:       time.Now(),
	}
	if err := rdb.writeMetadata(ctx, meta); err != nil {
		return nil, multierr.Combine(err, rdb.Close())
	}
	return &Recorder{
		path:   path,
		db:     rdb,
		meta:   meta,
		modes:  map[driver.StreamKind]videomode.VideoMode{},
		counts: map[driver.StreamKind]int{},
	}, nil
}

// Metadata describes the recording being written.
func (r *Recorder) Metadata() Metadata {
	return r.meta
}

func storedMode(f *driver.Frame) videomode.VideoMode {
	mode := f.Mode
	if f.Kind == driver.Color {
		mode.PixelFormat = videomode.RGB888
	}
	b := f.Pixels.Bounds()
	mode.Width, mode.Height = b.Dx(), b.Dy()
	return mode
}

// WriteFrame appends a frame to its stream.
func (r *Recorder) WriteFrame(ctx context.Context, f *driver.Frame) error {
	if f == nil || f.Pixels == nil {
		return errors.New("cannot record an empty frame")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("recorder is closed")
	}

	mode := storedMode(f)
	if recorded, ok := r.modes[f.Kind]; !ok {
		if err := r.db.writeMode(ctx, f.Kind, mode); err != nil {
			return err
		}
		r.modes[f.Kind] = mode
	} else if recorded.Width != mode.Width || recorded.Height != mode.Height {
		return errors.Errorf("%s frame is %dx%d but the stream was recorded at %dx%d",
			f.Kind, mode.Width, mode.Height, recorded.Width, recorded.Height)
	}

	raw, err := rawPixels(f.Kind, f.Pixels)
	if err != nil {
		return errors.Wrapf(err, "%s frame %d", f.Kind, f.Index)
	}
	compression, data := encodePixels(raw)
	stored := storedFrame{
		sourceIndex: f.Index,
		timestamp:   f.Timestamp,
		compression: compression,
		rawSize:     len(raw),
		data:        data,
	}
	if err := r.db.writeFrame(ctx, f.Kind, r.counts[f.Kind], stored); err != nil {
		return err
	}
	r.counts[f.Kind]++
	r.bytes += int64(len(data))
	return nil
}

// WritePair appends a synchronized pair.
func (r *Recorder) WritePair(ctx context.Context, depth, color *driver.Frame) error {
	if err := r.WriteFrame(ctx, depth); err != nil {
		return err
	}
	return r.WriteFrame(ctx, color)
}

// FrameCount returns how many frames of a kind have been written.
func (r *Recorder) FrameCount(kind driver.StreamKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kind]
}

// PayloadBytes is the stored size of every frame written so far.
func (r *Recorder) PayloadBytes() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bytes
}

// Close finishes the recording.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}
