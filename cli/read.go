package cli

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/rgbd/config"
	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/logging"
	"go.viam.com/rgbd/rimage"
	"go.viam.com/rgbd/session"
)

// Image formats pairs can be saved in.
const (
	formatPNG    = "png"
	formatTIFF   = "tiff"
	formatQOI    = "qoi"
	formatPretty = "pretty"
)

const defaultReadFrames = 10

// pairPaths returns where the depth and color images of pair i are written.
func pairPaths(dir, format string, i int) (string, string, error) {
	var depthExt, colorExt string
	switch format {
	case formatPNG:
		depthExt, colorExt = ".png", ".png"
	case formatTIFF:
		depthExt, colorExt = ".tiff", ".ppm"
	case formatQOI:
		depthExt, colorExt = ".qoi", ".qoi"
	case formatPretty:
		depthExt, colorExt = ".png", ".png"
	default:
		return "", "", errors.Errorf("unknown image format %q", format)
	}
	base := filepath.Join(dir, fmt.Sprintf("%06d", i))
	return base + "_depth" + depthExt, base + "_color" + colorExt, nil
}

func savePair(dir, format string, i int, depth, color *driver.Frame) error {
	depthPath, colorPath, err := pairPaths(dir, format, i)
	if err != nil {
		return err
	}
	dm, err := depth.DepthMap()
	if err != nil {
		return err
	}
	// qoi only holds 8 bit color, so depth is colorized for it
	var depthImg image.Image = dm
	if format == formatPretty || format == formatQOI {
		depthImg = dm.ToPrettyPicture(0, 0)
	}
	if err := rimage.WriteImageFile(depthPath, depthImg); err != nil {
		return err
	}
	ci, err := color.ColorImage()
	if err != nil {
		return err
	}
	return rimage.WriteImageFile(colorPath, ci)
}

// ReadAction reads synchronized pairs, optionally saving them, and reports how well they line
// up in time.
func ReadAction(c *cli.Context) (err error) {
	run, err := openDevice(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, run.close())
	}()

	out, format := c.String(readFlagOut), c.String(readFlagFormat)
	if out != "" {
		if _, _, err := pairPaths(out, format, 0); err != nil {
			return err
		}
		if err := os.MkdirAll(out, 0o750); err != nil {
			return err
		}
	}
	if err := run.start(c.Context); err != nil {
		return err
	}
	if c.IsSet(readFlagSeek) {
		if err := run.session.Seek(c.Context, c.Int(readFlagSeek)); err != nil {
			return err
		}
	}
	depthMode, colorMode, err := run.session.ActiveModes()
	if err != nil {
		return err
	}
	infof(c.App.Writer, "reading depth %s and color %s", depthMode, colorMode)

	frames := run.conf.Frames
	if frames == 0 {
		frames = defaultReadFrames
	}
	ctx := c.Context
	read := 0
	for ; read < frames; read++ {
		if c.Bool(readFlagTrace) {
			ctx = logging.WithTrace(c.Context, fmt.Sprintf("pair-%d", read))
		}
		depth, color, err := run.session.ReadSynchronizedPair(ctx)
		if errors.Is(err, session.ErrEndOfStream) {
			warningf(c.App.ErrWriter, "recording ended after %d of %d pairs", read, frames)
			break
		}
		if err != nil {
			return err
		}
		if out == "" {
			continue
		}
		if err := savePair(out, format, read, depth, color); err != nil {
			return err
		}
	}
	printSyncSummary(c, run.session.SyncStats())
	return nil
}

func printSyncSummary(c *cli.Context, summary session.SyncSummary) {
	printf(c.App.Writer, "pairs: %d", summary.Pairs)
	printf(c.App.Writer, "depth interval: %s ± %s", summary.Depth.Mean, summary.Depth.StdDev)
	printf(c.App.Writer, "color interval: %s ± %s", summary.Color.Mean, summary.Color.StdDev)
	printf(c.App.Writer, "skew: mean %s, p95 %s, max %s", summary.MeanSkew, summary.P95Skew, summary.MaxSkew)
}

// IntrinsicsAction estimates the depth camera's pinhole intrinsics in the selected mode.
func IntrinsicsAction(c *cli.Context) (err error) {
	run, err := openDevice(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, run.close())
	}()
	if err := run.start(c.Context); err != nil {
		return err
	}
	params, err := run.session.Intrinsics(c.Context)
	if err != nil {
		return err
	}
	if out := c.String(readFlagOut); out != "" {
		if err := params.WriteJSONFile(out); err != nil {
			return err
		}
		infof(c.App.Writer, "wrote %s", out)
		return nil
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(params)
}

// ConfigSchemaAction prints the JSON schema of config files.
func ConfigSchemaAction(c *cli.Context) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(config.Schema())
}
