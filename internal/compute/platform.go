package compute

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spindle-gpu/spindle/driver"
)

// Platform is a host wrapper over one installed compute platform.
// Platforms are enumerated, never created or released, so the wrapper
// carries no release slot. Identity strings are fetched once and
// cached.
type Platform struct {
	d    driver.Driver
	h    driver.Platform
	once sync.Once
	desc driver.PlatformDesc
	err  error
}

// Platforms enumerates the platforms d can see.
func Platforms(d driver.Driver) ([]*Platform, error) {
	hs, st := d.Platforms()
	if !st.Ok() {
		return nil, statusErr("clGetPlatformIDs", st, "")
	}
	ps := make([]*Platform, len(hs))
	for i, h := range hs {
		ps[i] = &Platform{d: d, h: h}
	}
	return ps, nil
}

// Handle returns the native platform handle.
func (p *Platform) Handle() driver.Platform { return p.h }

// Driver returns the driver this platform was enumerated from.
func (p *Platform) Driver() driver.Driver { return p.d }

func (p *Platform) describe() (driver.PlatformDesc, error) {
	p.once.Do(func() {
		desc, st := p.d.DescribePlatform(p.h)
		if !st.Ok() {
			p.err = statusErr("clGetPlatformInfo", st, "platform %#x", uintptr(p.h))
			return
		}
		p.desc = desc
	})
	return p.desc, p.err
}

// Name returns the platform name string.
func (p *Platform) Name() (string, error) {
	d, err := p.describe()
	return d.Name, err
}

// Vendor returns the platform vendor string.
func (p *Platform) Vendor() (string, error) {
	d, err := p.describe()
	return d.Vendor, err
}

// Version returns the platform version string.
func (p *Platform) Version() (string, error) {
	d, err := p.describe()
	return d.Version, err
}

// Profile returns FULL_PROFILE or EMBEDDED_PROFILE.
func (p *Platform) Profile() (string, error) {
	d, err := p.describe()
	return d.Profile, err
}

// Extensions returns the platform extension names.
func (p *Platform) Extensions() ([]string, error) {
	d, err := p.describe()
	return strings.Fields(d.Extensions), err
}

// Devices enumerates the platform's devices matching the type mask.
func (p *Platform) Devices(t driver.DeviceType) ([]*Device, error) {
	hs, st := p.d.Devices(p.h, t)
	if !st.Ok() {
		return nil, statusErr("clGetDeviceIDs", st, "platform %#x, type %#x", uintptr(p.h), uint64(t))
	}
	ds := make([]*Device, len(hs))
	for i, h := range hs {
		ds[i] = newDevice(p.d, h)
	}
	return ds, nil
}

// Report renders a one-line summary. Fields an imperfect runtime cannot
// answer print as "-" instead of failing the report.
func (p *Platform) Report() string {
	name, _ := Maybe(p.Name())
	vendor, _ := Maybe(p.Vendor())
	version, _ := Maybe(p.Version())
	return fmt.Sprintf("%s | %s | %s", orDash(name), orDash(vendor), orDash(version))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
