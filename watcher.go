package serial

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Watcher turns a descriptor into a push-style byte feed. It polls the
// descriptor on its own loop and hands every arriving chunk to onData and
// any terminal failure to onError, the feed a BufferedReader consumes.
// A self-pipe makes a blocked Run killable from another goroutine.
type Watcher struct {
	fd        int
	done      chan struct{}
	closeOnce sync.Once
	pipeR     int // self-pipe read fd
	pipeW     int // self-pipe write fd
}

// NewWatcher prepares a watcher for an open descriptor. The watcher does not
// own fd; closing the watcher only stops the loop.
func NewWatcher(fd int) (*Watcher, error) {
	pipeFds := make([]int, 2)
	if err := unix.Pipe(pipeFds); err != nil {
		return nil, fmt.Errorf("pipe: %w", err)
	}
	return &Watcher{
		fd:    fd,
		done:  make(chan struct{}),
		pipeR: pipeFds[0],
		pipeW: pipeFds[1],
	}, nil
}

// Run blocks, delivering every arriving chunk to onData until the stream
// fails or Close is called. A failure is reported to onError exactly once
// and ends the loop; Close ends it silently. The chunk passed to onData is
// only valid for the duration of the call.
func (w *Watcher) Run(onData func([]byte), onError func(error)) {
	buf := make([]byte, readChunkSize)
	for {
		pfd := []unix.PollFd{
			{Fd: int32(w.fd), Events: unix.POLLIN},
			{Fd: int32(w.pipeR), Events: unix.POLLIN},
		}
		_, err := unix.Poll(pfd, -1)
		if err != nil {
			if transient(err) {
				continue
			}
			onError(classify("read", err))
			return
		}
		select {
		case <-w.done:
			return
		default:
		}
		if pfd[1].Revents&unix.POLLIN != 0 {
			// Drain pipe
			var b [1]byte
			unix.Read(w.pipeR, b[:])
			return
		}
		if pfd[0].Revents&unix.POLLIN != 0 {
			n, err := unix.Read(w.fd, buf)
			if err != nil {
				if transient(err) {
					continue
				}
				onError(classify("read", err))
				return
			}
			if n == 0 {
				onError(ErrClosed)
				return
			}
			onData(buf[:n])
			continue
		}
		if pfd[0].Revents&(unix.POLLNVAL|unix.POLLERR|unix.POLLHUP) != 0 {
			onError(ErrClosed)
			return
		}
	}
}

// Close stops the watcher and unblocks a running Run. Safe to call multiple
// times; subsequent calls are no-ops.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		// Wake up poll using self-pipe
		if w.pipeW > 0 {
			unix.Write(w.pipeW, []byte{1})
		}
		if w.pipeR > 0 {
			unix.Close(w.pipeR)
		}
		if w.pipeW > 0 {
			unix.Close(w.pipeW)
		}
	})
	return nil
}
