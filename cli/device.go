package cli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/rgbd/config"
	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/driver/fake"
	"go.viam.com/rgbd/logging"
	"go.viam.com/rgbd/session"
	"go.viam.com/rgbd/videomode"

	// register drivers.
	_ "go.viam.com/rgbd/driver/recording"
	_ "go.viam.com/rgbd/driver/webcam"
)

// Demo devices of the fake driver, so the tool can be tried without hardware.
const (
	demoLiveDevice      = "demo"
	demoRecordingDevice = "sample"
	demoRecordingFrames = 30
)

func init() {
	driver.Register(fake.NewDriver(
		fake.Config{Name: demoLiveDevice, Live: true, ColorTimestampOffset: 150},
		fake.Recording(demoRecordingDevice, demoRecordingFrames),
	))
}

// newLogger builds the command's logger. Logs go to the error writer so they never mix with
// command output.
func newLogger(c *cli.Context, conf *config.Config) (logging.Logger, func() error, error) {
	logger := logging.NewBlankLogger("rgbd")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	logger.SetLevel(logging.INFO)
	if conf != nil && conf.Log.Level != "" {
		level, err := logging.LevelFromString(conf.Log.Level)
		if err != nil {
			return nil, nil, err
		}
		logger.SetLevel(level)
	}
	if c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.DEBUG)
	}

	logFile := c.String(generalFlagLogFile)
	if logFile == "" && conf != nil {
		logFile = conf.Log.File
	}
	if logFile == "" {
		return logger, logger.Sync, nil
	}
	fileAppender := logging.NewFileAppender(logFile)
	logger.AddAppender(fileAppender)
	return logger, func() error {
		return multierr.Combine(logger.Sync(), fileAppender.Close())
	}, nil
}

// loadConfig reads the --config file, if any, and applies the device flags on top of it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	conf := &config.Config{}
	if path := c.String(generalFlagConfig); path != "" {
		var err error
		if conf, err = config.Read(path); err != nil {
			return nil, err
		}
	}
	if c.IsSet(deviceFlagURI) {
		conf.URI = c.String(deviceFlagURI)
	}
	if c.IsSet(readFlagWidth) {
		conf.Width = c.Int(readFlagWidth)
	}
	if c.IsSet(readFlagHeight) {
		conf.Height = c.Int(readFlagHeight)
	}
	for flag, format := range map[string]*videomode.PixelFormat{
		readFlagDepthFormat: &conf.DepthFormat,
		readFlagColorFormat: &conf.ColorFormat,
	} {
		if !c.IsSet(flag) {
			continue
		}
		parsed, err := videomode.ParsePixelFormat(c.String(flag))
		if err != nil {
			return nil, errors.Wrapf(err, "--%s", flag)
		}
		*format = parsed
	}
	if c.IsSet(readFlagFrames) {
		conf.Frames = c.Int(readFlagFrames)
	}
	if err := conf.Validate("config"); err != nil {
		return nil, err
	}
	return conf, nil
}

// deviceRun is what a command that uses a device works with.
type deviceRun struct {
	conf    *config.Config
	logger  logging.Logger
	session *session.Session
	close   func() error
}

// openDevice loads the config and opens a session on the configured device.
func openDevice(c *cli.Context) (*deviceRun, error) {
	conf, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger, syncLogger, err := newLogger(c, conf)
	if err != nil {
		return nil, err
	}
	opts, err := conf.SessionOptions()
	if err != nil {
		return nil, multierr.Combine(err, syncLogger())
	}
	s := session.New(logger, opts...)
	if err := s.Open(c.Context, conf.URI); err != nil {
		return nil, multierr.Combine(err, syncLogger())
	}
	return &deviceRun{
		conf:    conf,
		logger:  logger,
		session: s,
		close: func() error {
			return multierr.Combine(s.Close(context.Background()), syncLogger())
		},
	}, nil
}

// start brings up both streams with the configured mode indices, falling back to the modes
// closest to the configured target.
func (run *deviceRun) start(ctx context.Context) error {
	if run.conf.DepthMode == nil && run.conf.ColorMode == nil {
		_, _, err := session.StartBestFit(ctx, run.session, run.conf.Target())
		return err
	}
	depthIdx, colorIdx := videomode.Auto, videomode.Auto
	if run.conf.DepthMode != nil {
		depthIdx = *run.conf.DepthMode
	}
	if run.conf.ColorMode != nil {
		colorIdx = *run.conf.ColorMode
	}
	return run.session.Start(ctx, depthIdx, colorIdx)
}
