package compute

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spindle-gpu/spindle/driver"
)

// Event tracks one enqueued operation, or carries a host-controlled
// completion when created as a user event. A fresh NewEvent is inert
// until some enqueue call attaches it to an operation; Context.
// CreateUserEvent returns one already attached and signalable.
type Event struct {
	d        driver.Driver
	h        handle
	user     bool
	claimed  atomic.Bool
	signaled atomic.Bool
}

// NewEvent returns an unattached event for use as an enqueue call's
// out-event.
func NewEvent() *Event { return &Event{} }

// attach binds e to a freshly created native event. Attaching twice is
// a usage error; the superfluous native event is released so it cannot
// leak. The driver is stored before the handle is published: once
// Handle reports non-zero the event is fully usable from any
// goroutine.
func (e *Event) attach(d driver.Driver, h driver.Event) error {
	if !e.claimed.CompareAndSwap(false, true) {
		if st := d.ReleaseEvent(h); !st.Ok() {
			logger().Warn("orphan event release failed", zap.String("status", st.String()))
		}
		return usagef("attach event", "event already tracks an operation; use a fresh Event per enqueue")
	}
	e.d = d
	e.h.set(uintptr(h))
	return nil
}

// Handle returns the native event handle, zero before attach and after
// release.
func (e *Event) Handle() driver.Event { return driver.Event(e.h.load()) }

// Released reports whether the event holds no native handle.
func (e *Event) Released() bool { return e.h.released() }

// Equal reports whether both wrappers currently hold the same handle.
func (e *Event) Equal(o *Event) bool { return o != nil && e.h.equal(&o.h) }

// Release releases the event. Idempotent and concurrent-safe.
func (e *Event) Release() error {
	return e.h.release("event", func(v uintptr) driver.Status {
		return e.d.ReleaseEvent(driver.Event(v))
	})
}

// Status returns the event's current execution status.
func (e *Event) Status() (driver.ExecStatus, error) {
	h := e.Handle()
	if h == 0 {
		return 0, usagef("event status", "event not attached to an operation")
	}
	es, st := e.d.EventStatus(h)
	if !st.Ok() {
		return 0, statusErr("clGetEventInfo", st, "")
	}
	return es, nil
}

// Wait blocks until the event completes. An abnormal termination is
// surfaced as a StatusError carrying the underlying code.
func (e *Event) Wait() error {
	h := e.Handle()
	if h == 0 {
		return usagef("wait", "event not attached to an operation")
	}
	st := e.d.WaitForEvents([]driver.Event{h})
	if st.Ok() {
		return nil
	}
	if st == driver.ExecStatusErrorForEventsInWaitList {
		if es, qst := e.d.EventStatus(h); qst.Ok() && es < 0 {
			return statusErr("clWaitForEvents", st, "operation terminated with %s", driver.Status(es))
		}
	}
	return statusErr("clWaitForEvents", st, "")
}

// WaitAll blocks until every event completes.
func WaitAll(events ...*Event) error {
	if len(events) == 0 {
		return nil
	}
	var d driver.Driver
	hs := make([]driver.Event, len(events))
	for i, e := range events {
		if e == nil {
			return usagef("wait", "event %d is nil", i)
		}
		h := e.Handle()
		if h == 0 {
			return usagef("wait", "event %d not attached to an operation", i)
		}
		if d == nil {
			d = e.d
		} else if e.d != d {
			return usagef("wait", "event %d belongs to a different driver", i)
		}
		hs[i] = h
	}
	if st := d.WaitForEvents(hs); !st.Ok() {
		return statusErr("clWaitForEvents", st, "%d event(s)", len(events))
	}
	return nil
}

// Complete signals a user event as successfully finished. Each user
// event accepts exactly one signal; a second Complete or Abort returns
// a UsageError without touching the driver.
func (e *Event) Complete() error { return e.signal(0) }

// Abort signals a user event as abnormally terminated with the given
// negative status.
func (e *Event) Abort(st driver.Status) error {
	if st >= 0 {
		return usagef("signal user event", "abort status %d is not negative", int32(st))
	}
	return e.signal(int32(st))
}

func (e *Event) signal(v int32) error {
	const op = "signal user event"
	if !e.user {
		return usagef(op, "not a user event; only user events accept a host-set status")
	}
	if !e.signaled.CompareAndSwap(false, true) {
		return usagef(op, "user event already signaled")
	}
	st := e.d.SetUserEventStatus(e.Handle(), v)
	if !st.Ok() {
		return statusErr("clSetUserEventStatus", st, "status %d", v)
	}
	return nil
}

// Notification is what arrives on a channel registered with Notify.
// Data carries through whatever the registration supplied.
type Notification struct {
	Event  *Event
	Status driver.ExecStatus
	Data   any
}

var droppedNotifications atomic.Uint64

// DroppedNotifications counts notifications discarded because their
// channel was full at delivery time.
func DroppedNotifications() uint64 { return droppedNotifications.Load() }

// Notify arranges for one Notification on ch when the event completes,
// normally or not. The driver callback runs on a foreign thread, so the
// hand-off never blocks: if ch cannot accept the value immediately it
// is dropped, counted, and logged. Size ch accordingly. Registering on
// an event that tracks nothing yet is a usage error.
func (e *Event) Notify(ch chan<- Notification, data any) error {
	const op = "notify"
	if ch == nil {
		return usagef(op, "nil channel")
	}
	h := e.Handle()
	if h == 0 {
		return usagef(op, "event not attached to an operation; enqueue with this event first")
	}
	st := e.d.SetEventCallback(h, driver.Complete, func(_ driver.Event, es driver.ExecStatus) {
		select {
		case ch <- Notification{Event: e, Status: es, Data: data}:
		default:
			droppedNotifications.Add(1)
			logger().Warn("notification dropped, channel full",
				zap.String("status", es.String()))
		}
	})
	if !st.Ok() {
		return statusErr("clSetEventCallback", st, "")
	}
	return nil
}

// Profile is the four device-clock timestamps of a completed operation
// on a profiling queue, in nanoseconds.
type Profile struct {
	Queued    uint64
	Submitted uint64
	Start     uint64
	End       uint64
}

// QueueWait is the time spent queued before submission to the device.
func (p Profile) QueueWait() time.Duration {
	return time.Duration(p.Submitted - p.Queued)
}

// SubmitWait is the time between submission and execution start.
func (p Profile) SubmitWait() time.Duration {
	return time.Duration(p.Start - p.Submitted)
}

// Execution is the time the operation ran on the device.
func (p Profile) Execution() time.Duration {
	return time.Duration(p.End - p.Start)
}

// Total is the full queued-to-end latency.
func (p Profile) Total() time.Duration {
	return time.Duration(p.End - p.Queued)
}

// Profile returns the profiling timestamps of a completed event. The
// queue must have been created with profiling enabled and the event
// must be complete, otherwise the driver answers with
// ProfilingInfoNotAvailable.
func (e *Event) Profile() (Profile, error) {
	h := e.Handle()
	if h == 0 {
		return Profile{}, usagef("profile", "event not attached to an operation")
	}
	var p Profile
	for _, q := range []struct {
		key driver.ProfilingKey
		dst *uint64
	}{
		{driver.ProfilingQueued, &p.Queued},
		{driver.ProfilingSubmitted, &p.Submitted},
		{driver.ProfilingStart, &p.Start},
		{driver.ProfilingEnd, &p.End},
	} {
		v, st := e.d.EventProfiling(h, q.key)
		if !st.Ok() {
			return Profile{}, statusErr("clGetEventProfilingInfo", st, "key %d", q.key)
		}
		*q.dst = v
	}
	return p, nil
}
