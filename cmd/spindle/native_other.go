//go:build !linux && !darwin && !windows

package main

import "github.com/spindle-gpu/spindle/driver"

const nativeName = ""

func nativeDriver() driver.Driver { return nil }
