package serial

import (
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestWatcher(t *testing.T) (*os.File, *Watcher) {
	master, port := openTestPort(t)
	w, err := NewWatcher(port.Fd())
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return master, w
}

func TestWatcher_DeliversChunks(t *testing.T) {
	master, w := openTestWatcher(t)

	chunks := make(chan []byte, 1)
	errs := make(chan error, 1)
	go w.Run(
		func(p []byte) { chunks <- append([]byte(nil), p...) },
		func(err error) { errs <- err },
	)

	_, err := master.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case c := <-chunks:
		require.Equal(t, "hello", string(c))
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for chunk")
	}
}

func TestWatcher_Killability(t *testing.T) {
	master, w := openTestWatcher(t)

	done := make(chan struct{})
	go func() {
		w.Run(func([]byte) {}, func(error) {})
		close(done)
	}()

	// Give the goroutine a chance to block, then prove the loop is live.
	time.Sleep(50 * time.Millisecond)
	_, err := master.Write([]byte("test data"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, w.Close())

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for Run to exit after Close")
	}

	// Close is a no-op the second time.
	require.NoError(t, w.Close())
}

func TestWatcher_ErrorPropagation(t *testing.T) {
	master, w := openTestWatcher(t)

	errs := make(chan error, 1)
	go w.Run(func([]byte) {}, func(err error) { errs <- err })

	// Simulate device disconnect by closing master.
	require.NoError(t, master.Close())

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for error after device disconnect")
	}
}

func TestWatcher_FeedsBufferedReader(t *testing.T) {
	master, w := openTestWatcher(t)

	var observed atomic.Int64
	br := NewBufferedReader(nil)
	onData, onErr := br.Feed(
		func(p []byte) { observed.Add(int64(len(p))) },
		nil,
	)
	go w.Run(onData, onErr)

	lines := make(chan []byte, 1)
	errs := make(chan error, 1)
	br.ReadUntil('\n', false, time.Second, func(data []byte, err error) {
		if err != nil {
			errs <- err
			return
		}
		lines <- data
	})

	_, err := master.Write([]byte("ping\n"))
	require.NoError(t, err)

	select {
	case line := <-lines:
		require.Equal(t, "ping", string(line))
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for buffered line")
	}

	// The previously attached observer saw every pushed byte too.
	require.GreaterOrEqual(t, observed.Load(), int64(5))

	// A disconnect reaches pending requests as the terminal failure.
	closed := make(chan error, 1)
	br.ReadExact(10, time.Second, func(_ []byte, err error) { closed <- err })
	require.NoError(t, master.Close())

	select {
	case err := <-closed:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for terminal failure")
	}
}
