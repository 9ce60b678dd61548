package serial

import "golang.org/x/sys/unix"

func opFor(events int16) string {
	if events&unix.POLLOUT != 0 {
		return "write"
	}
	return "read"
}

// waitReady blocks until fd is ready for the given events or the deadline
// expires. A wait interrupted by a signal is reissued with the remaining
// budget re-derived from the monotonic clock, so the overall wait time is
// honored across any number of interruptions. A descriptor reported invalid
// or hung up without pending readiness classifies as ErrClosed.
func waitReady(fd int, events int16, d *deadline) error {
	for {
		d.consume()
		if d.expired() {
			return ErrTimeout
		}
		pfd := []unix.PollFd{{Fd: int32(fd), Events: events}}
		n, err := unix.Poll(pfd, d.pollMillis())
		if err != nil {
			if transient(err) {
				continue
			}
			return classify(opFor(events), err)
		}
		if n == 0 {
			// Poll ran the full (rounded-up) budget without readiness.
			d.consume()
			if d.expired() {
				return ErrTimeout
			}
			continue
		}
		re := pfd[0].Revents
		// Readiness wins over a simultaneous hangup: let the subsequent
		// read drain what is left and report the close itself.
		if re&events != 0 {
			return nil
		}
		if re&(unix.POLLNVAL|unix.POLLERR|unix.POLLHUP) != 0 {
			return ErrClosed
		}
	}
}

// readyNow is a non-blocking readiness probe. It retries signal
// interruptions and reports hangup-without-data as ErrClosed.
func readyNow(fd int, events int16) (bool, error) {
	for {
		pfd := []unix.PollFd{{Fd: int32(fd), Events: events}}
		n, err := unix.Poll(pfd, 0)
		if err != nil {
			if transient(err) {
				continue
			}
			return false, classify(opFor(events), err)
		}
		if n == 0 {
			return false, nil
		}
		re := pfd[0].Revents
		if re&events != 0 {
			return true, nil
		}
		if re&(unix.POLLNVAL|unix.POLLERR|unix.POLLHUP) != 0 {
			return false, ErrClosed
		}
		return false, nil
	}
}
