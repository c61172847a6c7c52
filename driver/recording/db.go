package recording

import (
	"context"
	"database/sql"
	_ "embed"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	_ "modernc.org/sqlite"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/videomode"
)

var errNotRecording = errors.New("file is not an rgbd recording")

// FormatVersion is written into every recording.
const FormatVersion = "1.0.0"

// readableVersions are the recording versions this package can replay.
var readableVersions = mustConstraint("^1.0")

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// schema.sql creates the recording metadata, the per-stream modes and the frame payloads.
//
//go:embed schema.sql
var schemaSQL string

// Metadata describes a recording.
type Metadata struct {
	ID            string
	FormatVersion string
	DeviceName    string
	DeviceVendor  string
	HorizontalFOV float64
	VerticalFOV   float64
	Created       time.Time
}

type db struct {
	*sql.DB
}

// recordingTables must all exist for a file to be replayed.
var recordingTables = []string{"recording", "stream_modes", "frames"}

// createDB opens path for writing and creates the recording tables.
func createDB(path string) (*db, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		return nil, errors.Wrapf(multierr.Combine(err, sqlDB.Close()), "failed to initialize recording schema in %q", path)
	}
	return &db{sqlDB}, nil
}

// readOnlyDSN is a sqlite uri opening path without write access.
func readOnlyDSN(path string) string {
	escaped := strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(filepath.ToSlash(path))
	return "file:" + escaped + "?mode=ro"
}

// openDB opens an existing recording for replay. The file is never written.
func openDB(ctx context.Context, path string) (*db, error) {
	sqlDB, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return nil, err
	}
	rdb := &db{sqlDB}
	if err := rdb.checkTables(ctx); err != nil {
		return nil, multierr.Combine(err, sqlDB.Close())
	}
	return rdb, nil
}

func (rdb *db) checkTables(ctx context.Context) error {
	rows, err := rdb.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return errors.Wrap(err, "failed to list tables")
	}
	defer utils.UncheckedErrorFunc(rows.Close)
	found := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, table := range recordingTables {
		if !found[table] {
			return errNotRecording
		}
	}
	return nil
}

func (rdb *db) writeMetadata(ctx context.Context, meta Metadata) error {
	_, err := rdb.ExecContext(ctx, `
		INSERT INTO recording (id, format_version, device_name, device_vendor, horizontal_fov, vertical_fov, created_unix_us)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, meta.ID, meta.FormatVersion, meta.DeviceName, meta.DeviceVendor, meta.HorizontalFOV, meta.VerticalFOV, meta.Created.UnixMicro())
	if err != nil {
		return errors.Wrap(err, "failed to write recording metadata")
	}
	return nil
}

func (rdb *db) readMetadata(ctx context.Context) (Metadata, error) {
	var meta Metadata
	var created int64
	err := rdb.QueryRowContext(ctx, `
		SELECT id, format_version, device_name, device_vendor, horizontal_fov, vertical_fov, created_unix_us
		FROM recording
		LIMIT 1
	`).Scan(&meta.ID, &meta.FormatVersion, &meta.DeviceName, &meta.DeviceVendor, &meta.HorizontalFOV, &meta.VerticalFOV, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return meta, errNotRecording
	}
	if err != nil {
		return meta, errors.Wrap(err, "failed to read recording metadata")
	}
	meta.Created = time.UnixMicro(created)

	version, err := semver.NewVersion(meta.FormatVersion)
	if err != nil {
		return meta, errors.Wrapf(err, "bad recording version %q", meta.FormatVersion)
	}
	if !readableVersions.Check(version) {
		return meta, errors.Errorf("recording version %s is not supported (need %s)", version, readableVersions)
	}
	return meta, nil
}

func (rdb *db) writeMode(ctx context.Context, kind driver.StreamKind, mode videomode.VideoMode) error {
	_, err := rdb.ExecContext(ctx, `
		INSERT INTO stream_modes (stream, width, height, pixel_format, frame_rate)
		VALUES (?, ?, ?, ?, ?)
	`, kind.String(), mode.Width, mode.Height, mode.PixelFormat.String(), mode.FrameRate)
	if err != nil {
		return errors.Wrapf(err, "failed to write %s mode", kind)
	}
	return nil
}

// readMode returns the mode a stream was recorded in. ok is false for streams with no frames.
func (rdb *db) readMode(ctx context.Context, kind driver.StreamKind) (mode videomode.VideoMode, ok bool, err error) {
	var format string
	err = rdb.QueryRowContext(ctx, `
		SELECT width, height, pixel_format, frame_rate FROM stream_modes WHERE stream = ?
	`, kind.String()).Scan(&mode.Width, &mode.Height, &format, &mode.FrameRate)
	if errors.Is(err, sql.ErrNoRows) {
		return mode, false, nil
	}
	if err != nil {
		return mode, false, errors.Wrapf(err, "failed to read %s mode", kind)
	}
	if mode.PixelFormat, err = videomode.ParsePixelFormat(format); err != nil {
		return mode, false, err
	}
	return mode, true, nil
}

type storedFrame struct {
	sourceIndex uint64
	timestamp   uint64
	compression string
	rawSize     int
	data        []byte
}

func (rdb *db) writeFrame(ctx context.Context, kind driver.StreamKind, frameIndex int, f storedFrame) error {
	_, err := rdb.ExecContext(ctx, `
		INSERT INTO frames (stream, frame_index, source_index, timestamp_us, compression, raw_size, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, kind.String(), frameIndex, int64(f.sourceIndex), int64(f.timestamp), f.compression, f.rawSize, f.data)
	if err != nil {
		return errors.Wrapf(err, "failed to write %s frame %d", kind, frameIndex)
	}
	return nil
}

// readFrame returns a stored frame, or driver.ErrEndOfStream past the last one.
func (rdb *db) readFrame(ctx context.Context, kind driver.StreamKind, frameIndex int) (storedFrame, error) {
	var f storedFrame
	var sourceIndex, timestamp int64
	err := rdb.QueryRowContext(ctx, `
		SELECT source_index, timestamp_us, compression, raw_size, data
		FROM frames
		WHERE stream = ? AND frame_index = ?
	`, kind.String(), frameIndex).Scan(&sourceIndex, &timestamp, &f.compression, &f.rawSize, &f.data)
	if errors.Is(err, sql.ErrNoRows) {
		return f, driver.ErrEndOfStream
	}
	if err != nil {
		return f, errors.Wrapf(err, "failed to read %s frame %d", kind, frameIndex)
	}
	f.sourceIndex, f.timestamp = uint64(sourceIndex), uint64(timestamp)
	return f, nil
}

func (rdb *db) frameCount(ctx context.Context, kind driver.StreamKind) (int, error) {
	var n int
	if err := rdb.QueryRowContext(ctx, `SELECT COUNT(*) FROM frames WHERE stream = ?`, kind.String()).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "failed to count %s frames", kind)
	}
	return n, nil
}
