package serial

import (
	"bytes"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// Completion receives the outcome of an asynchronous read: the data on
// success, or exactly one of ErrTimeout, ErrClosed or *OpError. Every
// submitted request completes exactly once.
type Completion func(data []byte, err error)

type readKind int

const (
	kindCount readKind = iota
	kindDelim
	kindDrain
)

type pendingRead struct {
	id           uint64
	kind         readKind
	count        int
	delim        byte
	includeDelim bool
	complete     Completion
	timer        *time.Timer
}

// BufferedReader is the asynchronous counterpart of Port's blocking reads.
// It does not watch a descriptor itself; an external collaborator (such as a
// Watcher) pushes byte chunks and failures into it, and it satisfies queued
// read requests from its internal buffer in submission order.
//
// All state mutation (request submission, byte arrival, timer expiry,
// invalidation) is serialized under one lock, and completions are always
// dispatched onto a separate execution context, so a completion handler may
// freely call back into the reader.
//
// The internal buffer is unbounded; backpressure is the caller's concern.
type BufferedReader struct {
	mu       sync.Mutex
	buf      []byte
	pending  map[uint64]*pendingRead
	order    *queue.Queue // uint64 ids, submission order
	nextID   uint64
	failed   error
	dispatch func(func())
	exec     *executor
}

// NewBufferedReader returns a reader whose completions run on dispatch. A nil
// dispatch installs an internal single-goroutine executor, which preserves
// completion order; a caller-supplied dispatch inherits whatever ordering
// that context provides.
func NewBufferedReader(dispatch func(func())) *BufferedReader {
	b := &BufferedReader{
		pending: make(map[uint64]*pendingRead),
		order:   queue.New(),
	}
	if dispatch == nil {
		b.exec = newExecutor()
		dispatch = b.exec.dispatch
	}
	b.dispatch = dispatch
	return b
}

// ReadExact completes with exactly count bytes once the buffer holds them.
func (b *BufferedReader) ReadExact(count int, timeout time.Duration, complete Completion) {
	b.submit(&pendingRead{kind: kindCount, count: count, complete: complete}, timeout)
}

// ReadUntil completes with the bytes up to the first occurrence of delim.
// The delimiter is consumed; it is part of the result only when includeDelim
// is set.
func (b *BufferedReader) ReadUntil(delim byte, includeDelim bool, timeout time.Duration, complete Completion) {
	b.submit(&pendingRead{kind: kindDelim, delim: delim, includeDelim: includeDelim, complete: complete}, timeout)
}

// ReadAvailable completes with everything buffered, possibly nothing, as
// soon as no earlier request precedes it. It never consumes bytes earmarked
// for an earlier ReadExact or ReadUntil.
func (b *BufferedReader) ReadAvailable(timeout time.Duration, complete Completion) {
	b.submit(&pendingRead{kind: kindDrain, complete: complete}, timeout)
}

func (b *BufferedReader) submit(r *pendingRead, timeout time.Duration) {
	b.mu.Lock()
	if b.failed != nil {
		err := b.failed
		b.mu.Unlock()
		b.dispatch(func() { r.complete(nil, err) })
		return
	}
	r.id = b.nextID
	b.nextID++
	b.pending[r.id] = r
	b.order.Add(r.id)

	// Every enqueue re-runs the satisfaction pass over the whole queue. When
	// nothing precedes the new request this is its immediate fast path; when
	// a timed-out head has left the front of the queue satisfiable, the pass
	// may also unblock requests ahead of this one.
	done := b.satisfyLocked()

	if _, waiting := b.pending[r.id]; waiting && timeout >= 0 {
		r.timer = time.AfterFunc(timeout, func() { b.expire(r.id) })
	}
	b.mu.Unlock()
	b.fire(done)
}

// Push appends an arriving chunk to the buffer and re-evaluates the pending
// queue front-to-back. Empty chunks and arrivals after a terminal failure
// are ignored. The chunk is copied; the caller may reuse it.
func (b *BufferedReader) Push(data []byte) {
	b.mu.Lock()
	if b.failed != nil || len(data) == 0 {
		b.mu.Unlock()
		return
	}
	b.buf = append(b.buf, data...)
	done := b.satisfyLocked()
	b.mu.Unlock()
	b.fire(done)
}

// Fail records a terminal stream failure. The first call wins: every active
// timer is cancelled, every queued request completes with err in submission
// order, and all later requests fail immediately with the same reason.
func (b *BufferedReader) Fail(err error) {
	if err == nil {
		err = ErrClosed
	}
	b.mu.Lock()
	if b.failed != nil {
		b.mu.Unlock()
		return
	}
	b.failed = err

	// Timers first, so no timer can fire after the failure is reported.
	n := b.order.Length()
	for i := 0; i < n; i++ {
		if r := b.pending[b.order.Get(i).(uint64)]; r.timer != nil {
			r.timer.Stop()
		}
	}
	var done []func()
	for b.order.Length() > 0 {
		r := b.pending[b.order.Remove().(uint64)]
		delete(b.pending, r.id)
		complete := r.complete
		done = append(done, func() { complete(nil, err) })
	}
	exec := b.exec
	b.mu.Unlock()
	b.fire(done)
	if exec != nil {
		exec.close()
	}
}

// Invalidate permanently shuts the reader down, as if the stream had closed:
// everything outstanding fails with ErrClosed and nothing is accepted again.
func (b *BufferedReader) Invalidate() {
	b.Fail(ErrClosed)
}

// Feed composes push callbacks for wiring the reader behind a Watcher (or
// any push-style source). The returned callbacks deliver every event to the
// reader and then to prevData/prevErr, so an observer that was already
// attached to the feed keeps seeing everything.
func (b *BufferedReader) Feed(prevData func([]byte), prevErr func(error)) (func([]byte), func(error)) {
	onData := func(p []byte) {
		b.Push(p)
		if prevData != nil {
			prevData(p)
		}
	}
	onErr := func(err error) {
		b.Fail(err)
		if prevErr != nil {
			prevErr(err)
		}
	}
	return onData, onErr
}

// satisfyLocked scans the queue front-to-back, fulfilling requests until one
// cannot be satisfied. A Count short of bytes or a Delimiter whose byte is
// absent halts the scan, so later requests are never serviced out of turn. A
// Drain at the front always succeeds, taking the whole buffer. Returns the
// completions to dispatch after the lock is released.
func (b *BufferedReader) satisfyLocked() []func() {
	var done []func()
	for b.order.Length() > 0 {
		id := b.order.Peek().(uint64)
		r := b.pending[id]

		var data []byte
		consumed := 0
		switch r.kind {
		case kindCount:
			if len(b.buf) < r.count {
				return done
			}
			consumed = r.count
			data = append([]byte(nil), b.buf[:r.count]...)
		case kindDelim:
			idx := bytes.IndexByte(b.buf, r.delim)
			if idx < 0 {
				return done
			}
			consumed = idx + 1
			end := idx
			if r.includeDelim {
				end = idx + 1
			}
			data = append([]byte(nil), b.buf[:end]...)
		case kindDrain:
			consumed = len(b.buf)
			data = append([]byte(nil), b.buf...)
		}
		b.buf = b.buf[consumed:]

		b.order.Remove()
		delete(b.pending, id)
		if r.timer != nil {
			r.timer.Stop()
		}
		complete := r.complete
		out := data
		done = append(done, func() { complete(out, nil) })
	}
	return done
}

// expire completes a request with ErrTimeout, removing it from the middle of
// the queue regardless of position. This is the one exception to FIFO order.
// The queue is deliberately not re-scanned: a request unblocked by the
// removal completes on the next evaluation (arrival or enqueue).
func (b *BufferedReader) expire(id uint64) {
	b.mu.Lock()
	r, ok := b.pending[id]
	if !ok {
		// Fulfilled or drained between the timer firing and this call.
		b.mu.Unlock()
		return
	}
	delete(b.pending, id)
	n := b.order.Length()
	for i := 0; i < n; i++ {
		if v := b.order.Remove().(uint64); v != id {
			b.order.Add(v)
		}
	}
	b.mu.Unlock()
	b.dispatch(func() { r.complete(nil, ErrTimeout) })
}

func (b *BufferedReader) fire(done []func()) {
	for _, fn := range done {
		b.dispatch(fn)
	}
}

// executor runs completions one at a time on a dedicated goroutine, in the
// order they were dispatched. After close it drains what is queued, then
// exits; anything dispatched later runs on its own goroutine.
type executor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   *queue.Queue
	closed bool
}

func newExecutor() *executor {
	e := &executor{jobs: queue.New()}
	e.cond = sync.NewCond(&e.mu)
	go e.loop()
	return e
}

func (e *executor) dispatch(fn func()) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		go fn()
		return
	}
	e.jobs.Add(fn)
	e.cond.Signal()
	e.mu.Unlock()
}

func (e *executor) close() {
	e.mu.Lock()
	e.closed = true
	e.cond.Signal()
	e.mu.Unlock()
}

func (e *executor) loop() {
	for {
		e.mu.Lock()
		for e.jobs.Length() == 0 && !e.closed {
			e.cond.Wait()
		}
		if e.jobs.Length() == 0 {
			e.mu.Unlock()
			return
		}
		fn := e.jobs.Remove().(func())
		e.mu.Unlock()
		fn()
	}
}
