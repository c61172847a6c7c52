package driver

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// URIClaimer is implemented by drivers that recognise scheme-less uris, such as file paths with
// a particular extension.
type URIClaimer interface {
	ClaimsURI(uri string) bool
}

// Registry routes device uris to drivers.
type Registry struct {
	mu      sync.RWMutex
	drivers []Driver
}

var defaultRegistry = NewRegistry()

// Default returns the process wide registry that driver packages add themselves to on import.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a driver to the default registry. It panics on a duplicate name since that can
// only be a programming error.
func Register(d Driver) {
	if err := defaultRegistry.Register(d); err != nil {
		panic(err)
	}
}

// NewRegistry returns a registry holding the given drivers, in priority order.
func NewRegistry(drivers ...Driver) *Registry {
	r := &Registry{}
	for _, d := range drivers {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Register appends a driver. Drivers registered earlier are tried first for "any device".
func (r *Registry) Register(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.drivers {
		if existing.Name() == d.Name() {
			return errors.Errorf("driver %q already registered", d.Name())
		}
	}
	r.drivers = append(r.drivers, d)
	return nil
}

// Lookup finds a driver by name.
func (r *Registry) Lookup(name string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.drivers {
		if d.Name() == name {
			return d, true
		}
	}
	return nil, false
}

// Drivers returns the registered drivers in priority order.
func (r *Registry) Drivers() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Driver(nil), r.drivers...)
}

// Enumerate lists devices from every driver concurrently. Devices from drivers that succeed are
// returned in priority order alongside the combined errors of the ones that failed.
func (r *Registry) Enumerate(ctx context.Context) ([]DeviceInfo, error) {
	drivers := r.Drivers()
	found := make([][]DeviceInfo, len(drivers))
	errs := make([]error, len(drivers))

	var group errgroup.Group
	for i, d := range drivers {
		group.Go(func() error {
			infos, err := d.EnumerateDevices(ctx)
			if err != nil {
				errs[i] = errors.Wrapf(err, "enumerating %s devices", d.Name())
				return nil
			}
			found[i] = infos
			return nil
		})
	}
	//nolint:errcheck
	group.Wait()

	var all []DeviceInfo
	for _, infos := range found {
		all = append(all, infos...)
	}
	return all, multierr.Combine(errs...)
}

// SplitURI separates "scheme://rest". ok is false for uris without a scheme.
func SplitURI(uri string) (scheme, rest string, ok bool) {
	scheme, rest, ok = strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return "", uri, false
	}
	return scheme, rest, true
}

// Open opens the device at uri.
//
//   - "" opens the first device any driver can open, in priority order.
//   - "<driver>://<device>" hands "<device>" to the named driver.
//   - anything else goes to the first driver that claims it, or else to each driver in turn.
func (r *Registry) Open(ctx context.Context, uri string) (Device, error) {
	if scheme, rest, ok := SplitURI(uri); ok {
		d, found := r.Lookup(scheme)
		if !found {
			return nil, errors.Wrapf(ErrNoDevice, "no driver named %q", scheme)
		}
		return d.OpenDevice(ctx, rest)
	}

	drivers := r.Drivers()
	if uri != "" {
		for _, d := range drivers {
			if claimer, ok := d.(URIClaimer); ok && claimer.ClaimsURI(uri) {
				return d.OpenDevice(ctx, uri)
			}
		}
	}

	var errs []error
	for _, d := range drivers {
		dev, err := d.OpenDevice(ctx, uri)
		if err == nil {
			return dev, nil
		}
		errs = append(errs, errors.Wrap(err, d.Name()))
	}
	if len(errs) == 0 {
		return nil, errors.Wrap(ErrNoDevice, "no drivers registered")
	}
	return nil, errors.Wrapf(ErrNoDevice, "%q: %v", uri, multierr.Combine(errs...))
}
