// Copyright 2025 The Spindle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package compute

import (
	"go.uber.org/zap"

	"github.com/spindle-gpu/spindle/driver"
	"github.com/spindle-gpu/spindle/internal/compute"
)

// ErrReleased marks an operation on an already-released wrapper.
var ErrReleased = compute.ErrReleased

// StatusError is a native failure: the operation and its result code.
type StatusError = compute.StatusError

// UsageError is host-side misuse caught before the driver is involved.
type UsageError = compute.UsageError

// BuildError is a failed program build with per-device logs.
type BuildError = compute.BuildError

// DeviceLog is one device's build transcript.
type DeviceLog = compute.DeviceLog

// IsStatus reports whether err carries the given native status.
func IsStatus(err error, st driver.Status) bool { return compute.IsStatus(err, st) }

// Maybe passes v through and swallows StatusError, so optional queries
// degrade to the zero value on drivers that cannot answer them. Other
// error kinds still propagate.
func Maybe[T any](v T, err error) (T, error) { return compute.Maybe(v, err) }

// SetLogger routes package diagnostics to l. The default discards
// everything.
func SetLogger(l *zap.Logger) { compute.SetLogger(l) }
