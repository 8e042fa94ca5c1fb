package soft

import (
	"sync"
	"sync/atomic"

	"github.com/spindle-gpu/spindle/driver"
)

// eventObj tracks one command or host milestone. State moves monotonically
// queued -> submitted -> running -> complete, or to a negative status from
// any non-terminal state. done closes exactly once, on the terminal
// transition; profiling timestamps are written before done closes.
type eventObj struct {
	id       driver.Event
	op       string
	user     bool
	profiled bool

	mu    sync.Mutex
	state driver.ExecStatus
	times [4]uint64 // queued, submitted, start, end
	cbs   []eventCallback
	done  chan struct{}

	refs atomic.Int32
}

type eventCallback struct {
	trigger driver.ExecStatus
	fn      func(driver.Event, driver.ExecStatus)
}

func (d *Driver) newEvent(op string, profiled bool) *eventObj {
	e := &eventObj{
		id:       driver.Event(d.nextID()),
		op:       op,
		profiled: profiled,
		state:    driver.Queued,
		done:     make(chan struct{}),
	}
	e.times[driver.ProfilingQueued] = d.now()
	e.refs.Store(1)
	d.events.put(e.id, e)
	return e
}

func (e *eventObj) markSubmitted(now uint64) {
	e.mu.Lock()
	if e.state == driver.Queued {
		e.state = driver.Submitted
		e.times[driver.ProfilingSubmitted] = now
	}
	e.mu.Unlock()
}

func (e *eventObj) markRunning(now uint64) {
	e.mu.Lock()
	if e.state == driver.Submitted || e.state == driver.Queued {
		e.state = driver.Running
		e.times[driver.ProfilingStart] = now
	}
	e.mu.Unlock()
}

// finish moves e to a terminal state and fires callbacks. Callbacks run on
// fresh goroutines: from the registrant's perspective this is the foreign
// completion thread, and it must never block queue progress.
func (e *eventObj) finish(st driver.ExecStatus, now uint64) {
	e.mu.Lock()
	if e.state.Terminal() {
		e.mu.Unlock()
		return
	}
	e.state = st
	e.times[driver.ProfilingEnd] = now
	cbs := e.cbs
	e.cbs = nil
	e.mu.Unlock()

	close(e.done)
	for _, cb := range cbs {
		go cb.fn(e.id, st)
	}
}

func (d *Driver) CreateUserEvent(c driver.Context) (driver.Event, driver.Status) {
	if _, ok := d.contexts.get(c); !ok {
		return 0, driver.InvalidContext
	}
	e := &eventObj{
		id:    driver.Event(d.nextID()),
		op:    "user",
		user:  true,
		state: driver.Submitted,
		done:  make(chan struct{}),
	}
	e.refs.Store(1)
	d.events.put(e.id, e)
	return e.id, driver.Success
}

func (d *Driver) SetUserEventStatus(ev driver.Event, status int32) driver.Status {
	e, ok := d.events.get(ev)
	if !ok {
		return driver.InvalidEvent
	}
	if !e.user {
		return driver.InvalidEvent
	}
	if status > 0 {
		return driver.InvalidValue
	}
	e.mu.Lock()
	if e.state.Terminal() {
		e.mu.Unlock()
		return driver.InvalidOperation
	}
	e.mu.Unlock()
	e.finish(driver.ExecStatus(status), d.now())
	return driver.Success
}

func (d *Driver) EventStatus(ev driver.Event) (driver.ExecStatus, driver.Status) {
	e, ok := d.events.get(ev)
	if !ok {
		return 0, driver.InvalidEvent
	}
	e.mu.Lock()
	st := e.state
	e.mu.Unlock()
	return st, driver.Success
}

func (d *Driver) SetEventCallback(ev driver.Event, trigger driver.ExecStatus, fn func(driver.Event, driver.ExecStatus)) driver.Status {
	if fn == nil {
		return driver.InvalidValue
	}
	if trigger != driver.Complete && trigger != driver.Running && trigger != driver.Submitted {
		return driver.InvalidValue
	}
	e, ok := d.events.get(ev)
	if !ok {
		return driver.InvalidEvent
	}
	// Only terminal triggers are tracked past registration; Running and
	// Submitted fire immediately when already passed.
	e.mu.Lock()
	st := e.state
	if !st.Terminal() && trigger == driver.Complete {
		e.cbs = append(e.cbs, eventCallback{trigger: trigger, fn: fn})
		e.mu.Unlock()
		return driver.Success
	}
	e.mu.Unlock()
	go fn(ev, st)
	return driver.Success
}

func (d *Driver) EventProfiling(ev driver.Event, key driver.ProfilingKey) (uint64, driver.Status) {
	e, ok := d.events.get(ev)
	if !ok {
		return 0, driver.InvalidEvent
	}
	if key < driver.ProfilingQueued || key > driver.ProfilingEnd {
		return 0, driver.InvalidValue
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.profiled || e.user {
		return 0, driver.ProfilingInfoNotAvailable
	}
	if e.state != driver.Complete {
		return 0, driver.ProfilingInfoNotAvailable
	}
	return e.times[key], driver.Success
}

func (d *Driver) WaitForEvents(events []driver.Event) driver.Status {
	if len(events) == 0 {
		return driver.InvalidValue
	}
	objs := make([]*eventObj, 0, len(events))
	for _, ev := range events {
		e, ok := d.events.get(ev)
		if !ok {
			return driver.InvalidEvent
		}
		objs = append(objs, e)
	}
	st := driver.Success
	for _, e := range objs {
		<-e.done
		e.mu.Lock()
		if e.state < driver.Complete {
			st = driver.ExecStatusErrorForEventsInWaitList
		}
		e.mu.Unlock()
	}
	return st
}

func (d *Driver) RetainEvent(ev driver.Event) driver.Status {
	e, ok := d.events.get(ev)
	if !ok {
		return driver.InvalidEvent
	}
	e.refs.Add(1)
	return driver.Success
}

func (d *Driver) ReleaseEvent(ev driver.Event) driver.Status {
	e, ok := d.events.get(ev)
	if !ok {
		return driver.InvalidEvent
	}
	if e.refs.Add(-1) == 0 {
		d.events.del(ev)
	}
	return driver.Success
}
