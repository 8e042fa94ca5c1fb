package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-gpu/spindle/driver"
	"github.com/spindle-gpu/spindle/internal/driver/soft"
)

// offlineDriver reports a backend that is linked in but unusable.
type offlineDriver struct {
	driver.Driver
}

func (offlineDriver) Available() bool { return false }

func TestOpenDefaults(t *testing.T) {
	d := soft.New(soft.WithDevices(2))
	s, err := Open(d)
	require.NoError(t, err)

	require.NotNil(t, s.Platform)
	require.NotNil(t, s.Device)
	require.NotNil(t, s.Context)
	require.NotNil(t, s.Queue)
	assert.True(t, s.Queue.Device().Equal(s.Device))
	assert.False(t, s.Queue.Profiling())

	require.NoError(t, s.Release())
	assert.True(t, s.Queue.Released())
	assert.True(t, s.Context.Released())
	assert.True(t, s.Device.Released())
	require.NoError(t, s.Release(), "a second teardown is a no-op")
}

func TestOpenOptions(t *testing.T) {
	d := soft.New(soft.WithDevices(3))
	s, err := Open(d,
		WithPlatformIndex(0),
		WithDeviceType(driver.DeviceCPU),
		WithDeviceIndex(1),
		WithProfiling(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Release() })

	assert.True(t, s.Queue.Profiling())

	platforms, err := Platforms(d)
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	devices, err := platforms[0].Devices(driver.DeviceCPU)
	require.NoError(t, err)
	require.Len(t, devices, 3)
	assert.True(t, s.Device.Equal(devices[1]))
}

func TestOpenErrors(t *testing.T) {
	d := soft.New()

	_, err := Open(nil)
	var ue *UsageError
	require.ErrorAs(t, err, &ue)

	_, err = Open(d, WithPlatformIndex(3))
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, err.Error(), "platform index 3")

	_, err = Open(d, WithDeviceIndex(9))
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, err.Error(), "device index 9")

	// The soft platform carries no GPUs.
	_, err = Open(d, WithDeviceType(driver.DeviceGPU))
	assert.True(t, IsStatus(err, driver.DeviceNotFound), "got %v", err)

	_, err = Open(offlineDriver{d})
	assert.True(t, IsStatus(err, driver.DeviceNotFound), "got %v", err)
	assert.Contains(t, err.Error(), "not available")
}
