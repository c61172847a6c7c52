package session

import (
	"time"

	"go.viam.com/rgbd/driver"
)

type options struct {
	registry     *driver.Registry
	readTimeout  time.Duration
	registration bool
	statsWindow  int
}

func defaultOptions() options {
	return options{
		registry:     driver.Default(),
		registration: true,
		statsWindow:  DefaultStatsWindow,
	}
}

// Option configures a Session.
type Option interface {
	apply(*options)
}

type funcOption struct {
	f func(*options)
}

func (fo *funcOption) apply(o *options) {
	fo.f(o)
}

func newFuncOption(f func(*options)) *funcOption {
	return &funcOption{f: f}
}

// WithRegistry opens devices through r instead of the default registry.
func WithRegistry(r *driver.Registry) Option {
	return newFuncOption(func(o *options) {
		o.registry = r
	})
}

// WithReadTimeout bounds each stream read. Zero keeps the per-source default; negative values
// block until a frame arrives or the session closes.
func WithReadTimeout(timeout time.Duration) Option {
	return newFuncOption(func(o *options) {
		o.readTimeout = timeout
	})
}

// WithRegistration controls whether depth is registered onto the color camera on open, for
// devices that support it. It is on by default.
func WithRegistration(enabled bool) Option {
	return newFuncOption(func(o *options) {
		o.registration = enabled
	})
}

// WithStatsWindow sets how many recent pairs SyncStats summarizes.
func WithStatsWindow(pairs int) Option {
	return newFuncOption(func(o *options) {
		if pairs > 0 {
			o.statsWindow = pairs
		}
	})
}
