// Package serial provides reliable, timeout-bounded byte transfer over an
// already-open Linux serial descriptor.
//
// It turns the raw byte stream into discrete requests (read exactly N
// bytes, read until a delimiter, drain whatever is currently available,
// write all of this), each honoring an optional deadline and each resilient
// to transient syscall interruption (EINTR/EAGAIN are retried with the
// remaining budget re-derived from the monotonic clock, so a deadline is
// honored across any number of interruptions).
//
// Two engines implement the same contract:
//
//   - Port: blocking calls on the calling goroutine, built on poll(2) plus
//     raw read/write. One shared deadline covers all internal retries of a
//     single call.
//   - BufferedReader: an asynchronous engine that buffers pushed bytes and
//     satisfies queued requests in submission order (head-of-line blocking;
//     only a request's own timeout completes it out of turn). It is fed by a
//     Watcher or any push-style source, and delivers results through
//     completion callbacks on a separate execution context.
//
// Errors are classified as ErrTimeout (scoped to one call), ErrClosed
// (end-of-stream, broken pipe, invalid descriptor, invalidation) or
// *OpError (any other OS failure, tagged with the operation).
//
// This package does **not** support Windows.
//
// Example usage:
//
//	cfg := serial.Config{
//	    Device:   "/dev/ttyUSB0",
//	    BaudRate: 115200,
//	}
//	port, err := serial.Open(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	// Blocking: read a newline-terminated response within 500ms
//	line, err := port.ReadUntil('\n', false, 500*time.Millisecond)
//
//	// Asynchronous: queue reads against a watched stream
//	reader := serial.NewBufferedReader(nil)
//	watcher, _ := serial.NewWatcher(port.Fd())
//	defer watcher.Close()
//	go watcher.Run(reader.Feed(nil, nil))
//
//	reader.ReadExact(8, serial.NoTimeout, func(data []byte, err error) {
//	    // first 8 bytes of the stream
//	})
package serial
