package cli

import (
	"context"
	"math"
	"time"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/driver/recording"
	"go.viam.com/rgbd/session"
)

// RecordAction copies synchronized pairs from a device into a new recording.
func RecordAction(c *cli.Context) (err error) {
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
	info, err := run.session.DeviceInfo()
	if err != nil {
		return err
	}
	hFov, vFov, err := run.session.FieldOfView(driver.Depth)
	if err != nil {
		run.logger.Warnw("device reports no field of view; recording without it", "error", err)
		hFov, vFov = 0, 0
	}
	rec, err := recording.Create(c.Context, c.String(readFlagOut), info, hFov, vFov)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, rec.Close())
	}()

	limit := rate.Inf
	if maxFPS := c.Float64(recordFlagMaxFPS); maxFPS > 0 {
		limit = rate.Limit(maxFPS)
	}
	limiter := rate.NewLimiter(limit, 1)

	frames := run.conf.Frames
	if frames == 0 && !c.IsSet(readFlagFrames) {
		frames = c.Int(readFlagFrames)
	}
	if frames == 0 {
		frames = math.MaxInt
	}
	started := time.Now()
	written := 0
	for written < frames {
		depth, color, err := run.session.ReadSynchronizedPair(c.Context)
		if errors.Is(err, session.ErrEndOfStream) || errors.Is(err, context.Canceled) {
			break
		}
		if err != nil {
			return err
		}
		// pairs arriving faster than the limit are dropped, not delayed
		if !limiter.Allow() {
			continue
		}
		if err := rec.WritePair(c.Context, depth, color); err != nil {
			return err
		}
		written++
	}

	printf(c.App.Writer, "recorded %d pairs (%s) to %s in %s",
		written,
		units.HumanSize(float64(rec.PayloadBytes())),
		c.String(readFlagOut),
		time.Since(started).Round(time.Millisecond))
	return nil
}
