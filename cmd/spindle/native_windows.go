//go:build windows

package main

import (
	"github.com/spindle-gpu/spindle/driver"
	"github.com/spindle-gpu/spindle/driver/webgpu"
)

const nativeName = "webgpu"

func nativeDriver() driver.Driver { return webgpu.New() }
