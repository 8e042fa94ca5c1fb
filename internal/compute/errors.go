package compute

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spindle-gpu/spindle/driver"
)

// ErrReleased reports use of a host-side object whose backing resource
// is already gone, such as a mapped region after its unmap was enqueued.
// Stale device handles are not checked host-side; the driver rejects
// them with the matching invalid-handle status instead.
var ErrReleased = errors.New("compute: object already released")

// StatusError is a failed driver call. Status carries the decoded code,
// Op names the call that failed, and Detail describes the operands that
// were in play so logs stay debuggable without a driver trace.
type StatusError struct {
	Op     string
	Status driver.Status
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("compute: %s: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("compute: %s: %s (%s)", e.Op, e.Status, e.Detail)
}

// statusErr builds a StatusError with an optional formatted detail.
func statusErr(op string, st driver.Status, format string, args ...any) error {
	e := &StatusError{Op: op, Status: st}
	if format != "" {
		e.Detail = fmt.Sprintf(format, args...)
	}
	return e
}

// IsStatus reports whether err is (or wraps) a StatusError carrying st.
func IsStatus(err error, st driver.Status) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == st
}

// UsageError is a host-side misuse detected before any driver call:
// a malformed work size, an unsupported kernel argument type, a second
// signal on a user event. The driver state is untouched when one is
// returned.
type UsageError struct {
	Op  string
	Msg string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("compute: %s: %s", e.Op, e.Msg)
}

func usagef(op, format string, args ...any) error {
	return &UsageError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// usageWrap ties a sentinel such as ErrReleased to the operation that
// tripped over it, keeping errors.Is working on the result. The
// sentinel already carries the package prefix.
func usageWrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// DeviceLog pairs one build target with its compiler output.
type DeviceLog struct {
	Device string
	Log    string
}

// BuildError is a failed program build. It keeps the per-device build
// logs alongside the status so the compiler diagnostics survive into
// the error value.
type BuildError struct {
	Status driver.Status
	Logs   []DeviceLog
}

func (e *BuildError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "compute: program build failed: %s", e.Status)
	for _, l := range e.Logs {
		if strings.TrimSpace(l.Log) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n[%s]\n%s", l.Device, strings.TrimRight(l.Log, "\n"))
	}
	return b.String()
}

// Maybe converts a StatusError into the zero value so optional
// introspection reads degrade instead of aborting a report. Usage
// errors and everything else still propagate.
//
//	units, err := compute.Maybe(dev.MaxComputeUnits())
func Maybe[T any](v T, err error) (T, error) {
	var se *StatusError
	if err != nil && errors.As(err, &se) {
		var zero T
		return zero, nil
	}
	return v, err
}
