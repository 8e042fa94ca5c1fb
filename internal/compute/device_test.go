package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-gpu/spindle/driver"
	"github.com/spindle-gpu/spindle/internal/driver/soft"
)

func TestDeviceReport(t *testing.T) {
	_, s := rig(t, nil)

	r := s.Device.Report()
	assert.Contains(t, r, "device:          Spindle Soft Device 0")
	assert.Contains(t, r, "vendor:          spindle")
	assert.Contains(t, r, "max group size:  1024")
	assert.Contains(t, r, "max item sizes:  [1024 1024 64]")
}

func TestDeviceDescribeCaching(t *testing.T) {
	d := soft.New()

	// A descriptor fetched before release stays readable after.
	s, err := Open(d)
	require.NoError(t, err)
	name, err := s.Device.Name()
	require.NoError(t, err)
	assert.Equal(t, "Spindle Soft Device 0", name)
	require.NoError(t, s.Release())
	name, err = s.Device.Name()
	require.NoError(t, err)
	assert.Equal(t, "Spindle Soft Device 0", name)

	// A cold cache after release has nothing to answer with.
	s2, err := Open(d)
	require.NoError(t, err)
	require.NoError(t, s2.Release())
	_, err = s2.Device.Name()
	assert.True(t, IsStatus(err, driver.InvalidDevice), "got %v", err)
}

func TestPlatformReport(t *testing.T) {
	d := soft.New()
	platforms, err := Platforms(d)
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	p := platforms[0]

	assert.Contains(t, p.Report(), "Spindle Soft Platform | spindle |")

	profile, err := p.Profile()
	require.NoError(t, err)
	assert.Equal(t, "FULL_PROFILE", profile)
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		t    driver.DeviceType
		want string
	}{
		{driver.DeviceCPU, "cpu"},
		{driver.DeviceGPU, "gpu"},
		{driver.DeviceDefault | driver.DeviceGPU, "default|gpu"},
		{driver.DeviceCPU | driver.DeviceAccelerator | driver.DeviceCustom, "cpu|accelerator|custom"},
		{0, "none"},
	}
	for _, tt := range tests {
		if got := TypeString(tt.t); got != tt.want {
			t.Errorf("TypeString(%#x) = %q, want %q", uint64(tt.t), got, tt.want)
		}
	}
}
