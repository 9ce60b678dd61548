package serial

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	// ErrTimeout is returned when an operation's deadline elapses before its
	// condition is met. It is scoped to the single call; later calls on the
	// same port or reader may still succeed.
	ErrTimeout = errors.New("serial: timeout")

	// ErrClosed is returned on end-of-stream, a broken pipe, an invalid
	// descriptor, or after explicit invalidation.
	ErrClosed = errors.New("serial: closed")
)

// OpError reports an unclassified OS-level failure, tagged with the operation
// ("read", "write" or "poll") that triggered it.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("serial: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// transient reports whether a syscall error warrants an internal retry
// rather than surfacing to the caller.
func transient(err error) bool {
	return err == unix.EINTR || err == unix.EAGAIN
}

// classify maps a persistent syscall error to the public taxonomy. Broken
// pipe and invalid-descriptor conditions become ErrClosed; EIO is included
// because a pty slave reports it once the master side is gone.
func classify(op string, err error) error {
	switch err {
	case unix.EBADF, unix.EPIPE, unix.EIO, unix.ENXIO, unix.ENODEV:
		return ErrClosed
	}
	return &OpError{Op: op, Err: err}
}
