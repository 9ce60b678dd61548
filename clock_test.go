package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStopwatch_Lap(t *testing.T) {
	sw := newStopwatch()
	time.Sleep(20 * time.Millisecond)
	elapsed := sw.lap()
	require.GreaterOrEqual(t, elapsed, 20*time.Millisecond)

	// Lap restarts the watch, so the next lap only covers time since.
	second := sw.lap()
	require.Less(t, second, elapsed)
}

func TestDeadline_ConsumeShrinks(t *testing.T) {
	d := newDeadline(200 * time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	d.consume()
	require.False(t, d.expired())
	require.Less(t, d.remaining, 200*time.Millisecond)
	require.Greater(t, d.remaining, time.Duration(0))

	// The budget never resets: consuming again keeps shrinking it.
	before := d.remaining
	time.Sleep(20 * time.Millisecond)
	d.consume()
	require.Less(t, d.remaining, before)
}

func TestDeadline_ExpiresAtZero(t *testing.T) {
	d := newDeadline(30 * time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	d.consume()
	require.True(t, d.expired())
	require.Equal(t, time.Duration(0), d.remaining)
}

func TestDeadline_IndefiniteNeverExpires(t *testing.T) {
	d := newDeadline(NoTimeout)
	time.Sleep(10 * time.Millisecond)
	d.consume()
	require.False(t, d.expired())
	require.Equal(t, -1, d.pollMillis())
}

func TestDeadline_PollMillisRoundsUp(t *testing.T) {
	d := newDeadline(1500 * time.Microsecond)
	require.Equal(t, 2, d.pollMillis())

	d = newDeadline(100 * time.Microsecond)
	require.Equal(t, 1, d.pollMillis())

	d = newDeadline(5 * time.Millisecond)
	require.Equal(t, 5, d.pollMillis())
}
