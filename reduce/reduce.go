// Copyright 2025 The Spindle Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package reduce orchestrates iterative device-side reductions.
//
// A reduction runs one main dispatch that collapses n inputs to one
// partial value per work group, then folds the partials until a single
// value remains. The host only sizes dispatches; data stays on the
// device throughout.
//
// Example:
//
//	plan := reduce.Plan{Main: sumKernel, Fold: foldKernel, Local: 256}
//	dispatches, err := plan.Run(sess.Queue, len(input))
package reduce

import (
	internalreduce "github.com/spindle-gpu/spindle/internal/reduce"
)

// Plan is a one-dimensional reduction: a main kernel producing one
// partial per work group, and a fold kernel collapsing partials until
// one value remains.
type Plan = internalreduce.Plan

// Plan2D reduces a two-dimensional grid along its Y axis.
type Plan2D = internalreduce.Plan2D
