package serial

import "time"

// NoTimeout makes an operation wait indefinitely. Any negative timeout is
// treated the same way.
const NoTimeout time.Duration = -1

// stopwatch measures elapsed time between laps on the monotonic clock.
type stopwatch struct {
	mark time.Time
}

func newStopwatch() stopwatch {
	return stopwatch{mark: time.Now()}
}

// lap returns the time elapsed since the previous lap and restarts the watch.
func (s *stopwatch) lap() time.Duration {
	now := time.Now()
	d := now.Sub(s.mark)
	s.mark = now
	return d
}

// deadline is the remaining time budget of one operation. It is shared across
// all internal retries of that operation: every retry-worthy interruption
// consumes the elapsed wall time, floored at zero, and the budget is never
// reset. An indefinite deadline never decrements and never expires.
type deadline struct {
	watch      stopwatch
	remaining  time.Duration
	indefinite bool
}

func newDeadline(timeout time.Duration) *deadline {
	return &deadline{
		watch:      newStopwatch(),
		remaining:  timeout,
		indefinite: timeout < 0,
	}
}

// consume subtracts the time elapsed since the last sample from the budget.
func (d *deadline) consume() {
	e := d.watch.lap()
	if d.indefinite {
		return
	}
	d.remaining -= e
	if d.remaining < 0 {
		d.remaining = 0
	}
}

func (d *deadline) expired() bool {
	return !d.indefinite && d.remaining <= 0
}

// pollMillis converts the remaining budget to a poll(2) timeout argument:
// -1 for indefinite, otherwise the budget rounded up to the next millisecond
// so a positive budget never degrades into a non-blocking poll.
func (d *deadline) pollMillis() int {
	if d.indefinite {
		return -1
	}
	return int((d.remaining + time.Millisecond - 1) / time.Millisecond)
}
