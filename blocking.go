package serial

import (
	"time"

	"golang.org/x/sys/unix"
)

// readChunkSize bounds a single raw read in ReadAvailable and the Watcher.
const readChunkSize = 4096

// ReadExact reads exactly count bytes, blocking until they have all arrived
// or the timeout elapses. The timeout is one shared budget across every
// internal poll and read retry, so the call cannot overrun its deadline by
// more than one syscall's latency. A zero-byte read reports ErrClosed.
func (p *Port) ReadExact(count int, timeout time.Duration) ([]byte, error) {
	if count <= 0 {
		return nil, nil
	}
	out := make([]byte, count)
	filled := 0
	d := newDeadline(timeout)
	for filled < count {
		if err := waitReady(p.fd, unix.POLLIN, d); err != nil {
			return nil, err
		}
		n, err := unix.Read(p.fd, out[filled:])
		if err != nil {
			if transient(err) {
				d.consume()
				continue
			}
			return nil, classify("read", err)
		}
		if n == 0 {
			return nil, ErrClosed
		}
		filled += n
	}
	return out, nil
}

// ReadUntil reads one byte at a time until delim arrives, then returns the
// collected bytes. The delimiter is stripped from the result unless
// includeDelim is set; either way it is consumed from the stream.
func (p *Port) ReadUntil(delim byte, includeDelim bool, timeout time.Duration) ([]byte, error) {
	var out []byte
	var b [1]byte
	d := newDeadline(timeout)
	for {
		if err := waitReady(p.fd, unix.POLLIN, d); err != nil {
			return nil, err
		}
		n, err := unix.Read(p.fd, b[:])
		if err != nil {
			if transient(err) {
				d.consume()
				continue
			}
			return nil, classify("read", err)
		}
		if n == 0 {
			return nil, ErrClosed
		}
		if b[0] == delim {
			if includeDelim {
				out = append(out, b[0])
			}
			return out, nil
		}
		out = append(out, b[0])
	}
}

// ReadAvailable drains whatever is currently arriving. It waits up to the
// timeout for the first byte, then keeps reading as long as an immediate
// readiness probe says more is pending. Nothing arriving in time yields
// ErrTimeout, never an empty success.
func (p *Port) ReadAvailable(timeout time.Duration) ([]byte, error) {
	d := newDeadline(timeout)
	if err := waitReady(p.fd, unix.POLLIN, d); err != nil {
		return nil, err
	}
	var out []byte
	chunk := make([]byte, readChunkSize)
	for {
		n, err := unix.Read(p.fd, chunk)
		if err != nil {
			if transient(err) {
				// Readiness evaporated between the probe and the read.
				if len(out) > 0 {
					return out, nil
				}
				d.consume()
				if err := waitReady(p.fd, unix.POLLIN, d); err != nil {
					return nil, err
				}
				continue
			}
			if len(out) > 0 {
				return out, nil
			}
			return nil, classify("read", err)
		}
		if n == 0 {
			if len(out) > 0 {
				return out, nil
			}
			return nil, ErrClosed
		}
		out = append(out, chunk[:n]...)
		more, err := readyNow(p.fd, unix.POLLIN)
		if err != nil || !more {
			return out, nil
		}
	}
}

// Write writes all of data, tolerating partial writes by advancing past the
// written prefix and re-polling for writability with the shared remaining
// budget. It returns the number of bytes written; on error that count tells
// how far the write got. A zero-byte write or broken pipe reports ErrClosed.
func (p *Port) Write(data []byte, timeout time.Duration) (int, error) {
	d := newDeadline(timeout)
	off := 0
	for off < len(data) {
		if err := waitReady(p.fd, unix.POLLOUT, d); err != nil {
			return off, err
		}
		n, err := unix.Write(p.fd, data[off:])
		if err != nil {
			if transient(err) {
				d.consume()
				continue
			}
			return off, classify("write", err)
		}
		if n == 0 {
			return off, ErrClosed
		}
		off += n
	}
	return off, nil
}

// WriteAsync is the callback form of Write for callers driving the port from
// an event loop: it runs the write on its own goroutine and reports the
// outcome through complete, exactly once. The data is copied first.
func (p *Port) WriteAsync(data []byte, timeout time.Duration, complete func(n int, err error)) {
	buf := append([]byte(nil), data...)
	go func() {
		complete(p.Write(buf, timeout))
	}()
}
