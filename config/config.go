// Package config describes how the rgbd tool opens a device and which modes it asks for.
package config

import (
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.viam.com/utils"

	"go.viam.com/rgbd/driver"
	"go.viam.com/rgbd/driver/webcam"
	"go.viam.com/rgbd/logging"
	"go.viam.com/rgbd/session"
	"go.viam.com/rgbd/videomode"
)

// Defaults used for fields left empty.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// A Config describes one acquisition run.
type Config struct {
	// URI selects the device; empty opens the first available one.
	URI         string                `json:"uri,omitempty"`
	Width       int                   `json:"width,omitempty"`
	Height      int                   `json:"height,omitempty"`
	DepthFormat videomode.PixelFormat `json:"depth_format,omitempty"`
	ColorFormat videomode.PixelFormat `json:"color_format,omitempty"`
	// DepthMode and ColorMode pin catalog indices instead of choosing the best fit.
	DepthMode *int `json:"depth_mode,omitempty"`
	ColorMode *int `json:"color_mode,omitempty"`
	// ReadTimeout is a duration such as "500ms". Empty keeps the per-source default.
	ReadTimeout  string        `json:"read_timeout,omitempty"`
	Registration *bool         `json:"registration,omitempty"`
	Frames       int           `json:"frames,omitempty"`
	Webcam       *WebcamConfig `json:"webcam,omitempty"`
	Log          LogConfig     `json:"log,omitempty"`
}

// WebcamConfig pairs two video devices into one rgbd device.
type WebcamConfig struct {
	ColorLabel    string  `json:"color_label"`
	DepthLabel    string  `json:"depth_label,omitempty"`
	HorizontalFOV float64 `json:"horizontal_fov,omitempty"`
	VerticalFOV   float64 `json:"vertical_fov,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `json:"level,omitempty"`
	// File, if set, receives a copy of the log, rotated by size.
	File string `json:"file,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.Width < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("width must be positive, got %d", conf.Width))
	}
	if conf.Height < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("height must be positive, got %d", conf.Height))
	}
	if conf.DepthFormat != videomode.FormatUnknown && !conf.DepthFormat.IsDepth() {
		return utils.NewConfigValidationError(path, errors.Errorf("depth_format %s is not a depth format", conf.DepthFormat))
	}
	if conf.ColorFormat.IsDepth() {
		return utils.NewConfigValidationError(path, errors.Errorf("color_format %s is a depth format", conf.ColorFormat))
	}
	for name, idx := range map[string]*int{"depth_mode": conf.DepthMode, "color_mode": conf.ColorMode} {
		if idx != nil && *idx < 0 && *idx != videomode.Auto {
			return utils.NewConfigValidationError(path, errors.Errorf("%s must be a catalog index or %d", name, videomode.Auto))
		}
	}
	if _, err := conf.ReadTimeoutDuration(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	if conf.Frames < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("frames must not be negative, got %d", conf.Frames))
	}
	if conf.Webcam != nil {
		if err := conf.Webcam.Validate(fmt.Sprintf("%s.%s", path, "webcam")); err != nil {
			return err
		}
	}
	return conf.Log.Validate(fmt.Sprintf("%s.%s", path, "log"))
}

// Validate ensures the webcam pairing is usable.
func (conf *WebcamConfig) Validate(path string) error {
	if conf.ColorLabel == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "color_label")
	}
	if conf.HorizontalFOV < 0 || conf.VerticalFOV < 0 {
		return utils.NewConfigValidationError(path, errors.New("field of view must not be negative"))
	}
	return nil
}

// Validate ensures the log level is known.
func (conf *LogConfig) Validate(path string) error {
	if conf.Level == "" {
		return nil
	}
	if _, err := logging.LevelFromString(conf.Level); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// ReadTimeoutDuration parses ReadTimeout. Bare numbers are seconds.
func (conf *Config) ReadTimeoutDuration() (time.Duration, error) {
	if conf.ReadTimeout == "" {
		return 0, nil
	}
	if secs, err := cast.ToFloat64E(conf.ReadTimeout); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := cast.ToDurationE(conf.ReadTimeout)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid read_timeout %q", conf.ReadTimeout)
	}
	return d, nil
}

// Target is the resolution and formats both streams are fitted to.
func (conf *Config) Target() videomode.Target {
	target := videomode.Target{
		Width:       conf.Width,
		Height:      conf.Height,
		DepthFormat: conf.DepthFormat,
		ColorFormat: conf.ColorFormat,
	}
	if target.Width == 0 {
		target.Width = DefaultWidth
	}
	if target.Height == 0 {
		target.Height = DefaultHeight
	}
	if target.DepthFormat == videomode.FormatUnknown {
		target.DepthFormat = videomode.Depth1MM
	}
	if target.ColorFormat == videomode.FormatUnknown {
		target.ColorFormat = videomode.RGB888
	}
	return target
}

// SessionOptions translates the config into session options.
func (conf *Config) SessionOptions() ([]session.Option, error) {
	timeout, err := conf.ReadTimeoutDuration()
	if err != nil {
		return nil, err
	}
	opts := []session.Option{session.WithReadTimeout(timeout)}
	if conf.Registration != nil {
		opts = append(opts, session.WithRegistration(*conf.Registration))
	}
	if conf.Webcam != nil {
		opts = append(opts, session.WithRegistry(conf.Webcam.registry(driver.Default())))
	}
	return opts, nil
}

// registry copies base with its webcam driver swapped for one using this pairing.
func (conf *WebcamConfig) registry(base *driver.Registry) *driver.Registry {
	paired := webcam.NewDriver(conf.WebcamDriverConfig())
	replaced := false
	drivers := []driver.Driver{}
	for _, d := range base.Drivers() {
		if d.Name() == webcam.Name {
			d, replaced = paired, true
		}
		drivers = append(drivers, d)
	}
	if !replaced {
		drivers = append(drivers, paired)
	}
	return driver.NewRegistry(drivers...)
}

// WebcamDriverConfig converts the pairing for the webcam driver.
func (conf *WebcamConfig) WebcamDriverConfig() webcam.Config {
	return webcam.Config{
		ColorLabel:    conf.ColorLabel,
		DepthLabel:    conf.DepthLabel,
		HorizontalFOV: conf.HorizontalFOV,
		VerticalFOV:   conf.VerticalFOV,
	}
}

// Schema describes the config file format.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}
