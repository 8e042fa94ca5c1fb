package soft

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/spindle-gpu/spindle/driver"
)

// command is one unit of queue work. wait must complete before run
// executes; ev tracks this command's own lifecycle. A command with a nil
// run is a drain marker: it completes its done channel and nothing else.
type command struct {
	op   string
	wait []*eventObj
	ev   *eventObj
	run  func() driver.Status
	done chan struct{}
}

// queueObj is a FIFO submission stream served by one worker goroutine.
// Submission never blocks: the backlog is an unbounded list, as native
// enqueue calls return immediately regardless of device progress.
type queueObj struct {
	ctx   driver.Context
	dev   driver.Device
	props driver.QueueProp

	mu      sync.Mutex
	cond    *sync.Cond
	backlog []*command
	stopped bool
}

func (q *queueObj) push(c *command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}
	q.backlog = append(q.backlog, c)
	q.cond.Signal()
	return true
}

func (q *queueObj) pop() (*command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.backlog) == 0 && !q.stopped {
		q.cond.Wait()
	}
	if len(q.backlog) == 0 {
		return nil, false
	}
	c := q.backlog[0]
	q.backlog = q.backlog[1:]
	return c, true
}

func (q *queueObj) stop() {
	q.mu.Lock()
	q.stopped = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (d *Driver) CreateQueue(c driver.Context, dev driver.Device, props driver.QueueProp) (driver.Queue, driver.Status) {
	co, ok := d.contexts.get(c)
	if !ok {
		return 0, driver.InvalidContext
	}
	found := false
	for _, cd := range co.devices {
		if cd == dev {
			found = true
			break
		}
	}
	if !found {
		return 0, driver.InvalidDevice
	}
	if props&^(driver.QueueOutOfOrder|driver.QueueProfiling) != 0 {
		return 0, driver.InvalidQueueProperties
	}
	qo := &queueObj{ctx: c, dev: dev, props: props}
	qo.cond = sync.NewCond(&qo.mu)
	id := driver.Queue(d.nextID())
	d.queues.put(id, qo)
	go d.serve(qo)
	return id, driver.Success
}

func (d *Driver) ReleaseQueue(q driver.Queue) driver.Status {
	qo, ok := d.queues.get(q)
	if !ok {
		return driver.InvalidCommandQueue
	}
	// Implicit drain before teardown, matching native release semantics.
	d.drain(qo)
	d.queues.del(q)
	qo.stop()
	return driver.Success
}

// serve is the queue worker. Commands execute strictly in submission
// order; the out-of-order property is accepted at creation but execution
// stays FIFO, which satisfies the weaker ordering contract.
func (d *Driver) serve(q *queueObj) {
	for {
		cmd, ok := q.pop()
		if !ok {
			return
		}
		if cmd.run == nil {
			close(cmd.done)
			continue
		}
		aborted := false
		for _, w := range cmd.wait {
			<-w.done
			w.mu.Lock()
			bad := w.state < driver.Complete
			w.mu.Unlock()
			if bad {
				aborted = true
			}
		}
		if aborted {
			cmd.ev.finish(driver.ExecStatus(driver.ExecStatusErrorForEventsInWaitList), d.now())
			continue
		}
		cmd.ev.markSubmitted(d.now())
		cmd.ev.markRunning(d.now())
		st := cmd.run()
		if st.Ok() {
			cmd.ev.finish(driver.Complete, d.now())
			d.stats.bump(cmd.op)
		} else {
			cmd.ev.finish(driver.ExecStatus(st), d.now())
			d.log.Warn("soft: command failed",
				zap.String("op", cmd.op), zap.String("status", st.String()))
		}
	}
}

// enqueue validates the queue and wait list, creates the completion event
// and hands the command to the worker.
func (d *Driver) enqueue(q driver.Queue, op string, wait []driver.Event, run func() driver.Status) (*eventObj, driver.Status) {
	qo, ok := d.queues.get(q)
	if !ok {
		return nil, driver.InvalidCommandQueue
	}
	waitObjs := make([]*eventObj, 0, len(wait))
	for _, w := range wait {
		e, ok := d.events.get(w)
		if !ok {
			return nil, driver.InvalidEventWaitList
		}
		waitObjs = append(waitObjs, e)
	}
	ev := d.newEvent(op, qo.props&driver.QueueProfiling != 0)
	cmd := &command{op: op, wait: waitObjs, ev: ev, run: run}
	if !qo.push(cmd) {
		return nil, driver.InvalidCommandQueue
	}
	return ev, driver.Success
}

// block waits for ev and surfaces an abnormal termination as its status.
func block(ev *eventObj) driver.Status {
	<-ev.done
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.state < driver.Complete {
		return driver.Status(ev.state)
	}
	return driver.Success
}

func (d *Driver) EnqueueKernel(q driver.Queue, k driver.Kernel, r driver.NDRange, wait []driver.Event) (driver.Event, driver.Status) {
	qo, ok := d.queues.get(q)
	if !ok {
		return 0, driver.InvalidCommandQueue
	}
	ko, ok := d.kernels.get(k)
	if !ok {
		return 0, driver.InvalidKernel
	}
	dev, ok := d.devices.get(qo.dev)
	if !ok {
		return 0, driver.InvalidDevice
	}
	if st := checkRange(r, dev.desc); !st.Ok() {
		return 0, st
	}
	args := ko.snapshotArgs()
	ev, st := d.enqueue(q, opKernel, wait, func() driver.Status {
		return d.execKernel(ko, args, r)
	})
	if !st.Ok() {
		return 0, st
	}
	return ev.id, driver.Success
}

func checkRange(r driver.NDRange, desc driver.DeviceDesc) driver.Status {
	if r.Dims < 1 || r.Dims > 3 {
		return driver.InvalidWorkDimension
	}
	for i := 0; i < r.Dims; i++ {
		if r.Global[i] == 0 {
			return driver.InvalidGlobalWorkSize
		}
	}
	if r.HasLocal {
		var group uint64 = 1
		for i := 0; i < r.Dims; i++ {
			if r.Local[i] == 0 || r.Local[i] > desc.MaxWorkItemSizes[i] {
				return driver.InvalidWorkItemSize
			}
			if r.Global[i]%r.Local[i] != 0 {
				return driver.InvalidWorkGroupSize
			}
			group *= r.Local[i]
		}
		if group > desc.MaxWorkGroupSize {
			return driver.InvalidWorkGroupSize
		}
	}
	return driver.Success
}

func (d *Driver) EnqueueRead(q driver.Queue, m driver.Mem, blocking bool, offset, n int, dst unsafe.Pointer, wait []driver.Event) (driver.Event, driver.Status) {
	mo, ok := d.mems.get(m)
	if !ok {
		return 0, driver.InvalidMemObject
	}
	if dst == nil || offset < 0 || n <= 0 || offset+n > len(mo.data) {
		return 0, driver.InvalidValue
	}
	out := unsafe.Slice((*byte)(dst), n)
	ev, st := d.enqueue(q, opRead, wait, func() driver.Status {
		copy(out, mo.data[offset:offset+n])
		return driver.Success
	})
	if !st.Ok() {
		return 0, st
	}
	if blocking {
		if st := block(ev); !st.Ok() {
			return ev.id, st
		}
	}
	return ev.id, driver.Success
}

func (d *Driver) EnqueueWrite(q driver.Queue, m driver.Mem, blocking bool, offset, n int, src unsafe.Pointer, wait []driver.Event) (driver.Event, driver.Status) {
	mo, ok := d.mems.get(m)
	if !ok {
		return 0, driver.InvalidMemObject
	}
	if src == nil || offset < 0 || n <= 0 || offset+n > len(mo.data) {
		return 0, driver.InvalidValue
	}
	in := unsafe.Slice((*byte)(src), n)
	ev, st := d.enqueue(q, opWrite, wait, func() driver.Status {
		copy(mo.data[offset:offset+n], in)
		return driver.Success
	})
	if !st.Ok() {
		return 0, st
	}
	if blocking {
		if st := block(ev); !st.Ok() {
			return ev.id, st
		}
	}
	return ev.id, driver.Success
}

func (d *Driver) EnqueueCopy(q driver.Queue, src, dst driver.Mem, srcOffset, dstOffset, n int, wait []driver.Event) (driver.Event, driver.Status) {
	so, ok := d.mems.get(src)
	if !ok {
		return 0, driver.InvalidMemObject
	}
	do, ok := d.mems.get(dst)
	if !ok {
		return 0, driver.InvalidMemObject
	}
	if srcOffset < 0 || dstOffset < 0 || n <= 0 ||
		srcOffset+n > len(so.data) || dstOffset+n > len(do.data) {
		return 0, driver.InvalidValue
	}
	if so == do && srcOffset < dstOffset+n && dstOffset < srcOffset+n {
		return 0, driver.MemCopyOverlap
	}
	ev, st := d.enqueue(q, opCopy, wait, func() driver.Status {
		copy(do.data[dstOffset:dstOffset+n], so.data[srcOffset:srcOffset+n])
		return driver.Success
	})
	if !st.Ok() {
		return 0, st
	}
	return ev.id, driver.Success
}

func (d *Driver) EnqueueFill(q driver.Queue, m driver.Mem, pattern []byte, offset, n int, wait []driver.Event) (driver.Event, driver.Status) {
	mo, ok := d.mems.get(m)
	if !ok {
		return 0, driver.InvalidMemObject
	}
	p := len(pattern)
	if p == 0 || n <= 0 || n%p != 0 || offset < 0 || offset%p != 0 || offset+n > len(mo.data) {
		return 0, driver.InvalidValue
	}
	pat := append([]byte(nil), pattern...)
	ev, st := d.enqueue(q, opFill, wait, func() driver.Status {
		region := mo.data[offset : offset+n]
		for i := 0; i < n; i += p {
			copy(region[i:i+p], pat)
		}
		return driver.Success
	})
	if !st.Ok() {
		return 0, st
	}
	return ev.id, driver.Success
}

func (d *Driver) EnqueueMap(q driver.Queue, m driver.Mem, blocking bool, flags driver.MapFlag, offset, n int, wait []driver.Event) (unsafe.Pointer, driver.Event, driver.Status) {
	mo, ok := d.mems.get(m)
	if !ok {
		return nil, 0, driver.InvalidMemObject
	}
	if flags&^(driver.MapRead|driver.MapWrite) != 0 || flags == 0 {
		return nil, 0, driver.InvalidValue
	}
	if offset < 0 || n <= 0 || offset+n > len(mo.data) {
		return nil, 0, driver.InvalidValue
	}
	// The mapped region aliases the backing store directly, so writes land
	// without a copy and the unmap is purely a fence.
	ptr := unsafe.Pointer(&mo.data[offset])
	ev, st := d.enqueue(q, opMap, wait, func() driver.Status { return driver.Success })
	if !st.Ok() {
		return nil, 0, st
	}
	if blocking {
		if st := block(ev); !st.Ok() {
			return nil, ev.id, st
		}
	}
	return ptr, ev.id, driver.Success
}

func (d *Driver) EnqueueUnmap(q driver.Queue, m driver.Mem, ptr unsafe.Pointer, wait []driver.Event) (driver.Event, driver.Status) {
	if _, ok := d.mems.get(m); !ok {
		return 0, driver.InvalidMemObject
	}
	if ptr == nil {
		return 0, driver.InvalidValue
	}
	ev, st := d.enqueue(q, opUnmap, wait, func() driver.Status { return driver.Success })
	if !st.Ok() {
		return 0, st
	}
	return ev.id, driver.Success
}

func (d *Driver) EnqueueBarrier(q driver.Queue, wait []driver.Event) (driver.Event, driver.Status) {
	ev, st := d.enqueue(q, opBarrier, wait, func() driver.Status { return driver.Success })
	if !st.Ok() {
		return 0, st
	}
	return ev.id, driver.Success
}

func (d *Driver) EnqueueMarker(q driver.Queue, wait []driver.Event) (driver.Event, driver.Status) {
	ev, st := d.enqueue(q, opMarker, wait, func() driver.Status { return driver.Success })
	if !st.Ok() {
		return 0, st
	}
	return ev.id, driver.Success
}

// Flush is a no-op: commands are handed to the worker at enqueue time.
func (d *Driver) Flush(q driver.Queue) driver.Status {
	if _, ok := d.queues.get(q); !ok {
		return driver.InvalidCommandQueue
	}
	return driver.Success
}

func (d *Driver) Finish(q driver.Queue) driver.Status {
	qo, ok := d.queues.get(q)
	if !ok {
		return driver.InvalidCommandQueue
	}
	d.drain(qo)
	d.stats.bump(opFinish)
	return driver.Success
}

func (d *Driver) drain(qo *queueObj) {
	marker := &command{done: make(chan struct{})}
	if !qo.push(marker) {
		return
	}
	<-marker.done
}
