//go:build linux || darwin

package main

import (
	"github.com/spindle-gpu/spindle/driver"
	"github.com/spindle-gpu/spindle/driver/opencl"
)

const nativeName = "opencl"

func nativeDriver() driver.Driver { return opencl.New() }
