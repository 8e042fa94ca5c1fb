package compute

import (
	"github.com/spindle-gpu/spindle/driver"
)

// Session bundles the usual platform, device, context, queue lineup so
// callers that want one device and one queue do not thread four
// resources by hand. Every field is directly usable; Release tears the
// lot down in reverse creation order.
type Session struct {
	Platform *Platform
	Device   *Device
	Context  *Context
	Queue    *Queue
}

type sessionConfig struct {
	platformIndex int
	deviceType    driver.DeviceType
	deviceIndex   int
	queueProps    driver.QueueProp
}

// SessionOption adjusts how Open resolves its session.
type SessionOption func(*sessionConfig)

// WithPlatformIndex selects the nth enumerated platform. Default 0.
func WithPlatformIndex(i int) SessionOption {
	return func(c *sessionConfig) { c.platformIndex = i }
}

// WithDeviceType restricts device selection to the given class mask.
// Default is the platform's default device.
func WithDeviceType(t driver.DeviceType) SessionOption {
	return func(c *sessionConfig) { c.deviceType = t }
}

// WithDeviceIndex selects the nth matching device. Default 0.
func WithDeviceIndex(i int) SessionOption {
	return func(c *sessionConfig) { c.deviceIndex = i }
}

// WithProfiling creates the queue with event profiling enabled.
func WithProfiling() SessionOption {
	return func(c *sessionConfig) { c.queueProps |= driver.QueueProfiling }
}

// WithOutOfOrder creates the queue with out-of-order execution enabled.
func WithOutOfOrder() SessionOption {
	return func(c *sessionConfig) { c.queueProps |= driver.QueueOutOfOrder }
}

// Open resolves a platform and device on d, then builds a context and a
// queue over them. On any failure the partial setup is released before
// the error returns.
func Open(d driver.Driver, opts ...SessionOption) (*Session, error) {
	const op = "open session"
	if d == nil {
		return nil, usagef(op, "driver is nil")
	}
	if !d.Available() {
		return nil, statusErr(op, driver.DeviceNotFound, "driver %q is not available", d.Name())
	}
	cfg := sessionConfig{deviceType: driver.DeviceDefault}
	for _, o := range opts {
		o(&cfg)
	}

	platforms, err := Platforms(d)
	if err != nil {
		return nil, err
	}
	if cfg.platformIndex < 0 || cfg.platformIndex >= len(platforms) {
		return nil, usagef(op, "platform index %d, have %d platform(s)", cfg.platformIndex, len(platforms))
	}
	p := platforms[cfg.platformIndex]

	devices, err := p.Devices(cfg.deviceType)
	if err != nil {
		return nil, err
	}
	if cfg.deviceIndex < 0 || cfg.deviceIndex >= len(devices) {
		return nil, usagef(op, "device index %d, have %d matching device(s)", cfg.deviceIndex, len(devices))
	}
	dev := devices[cfg.deviceIndex]

	ctx, err := NewContext(dev)
	if err != nil {
		return nil, err
	}
	var props []driver.QueueProp
	if cfg.queueProps != 0 {
		props = append(props, cfg.queueProps)
	}
	q, err := ctx.CreateQueue(dev, props...)
	if err != nil {
		_ = ctx.Release()
		return nil, err
	}
	return &Session{Platform: p, Device: dev, Context: ctx, Queue: q}, nil
}

// Release tears the session down, queue first.
func (s *Session) Release() error {
	return ReleaseAll(s.Device, s.Context, s.Queue)
}
