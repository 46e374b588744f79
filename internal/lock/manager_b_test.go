package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func granted(t *testing.T, ch <-chan struct{}) bool {
	t.Helper()
	select {
	case <-ch:
		return true
	case <-time.After(20 * time.Millisecond):
		return false
	}
}

func TestManagerBMultipleReadersShareLock(t *testing.T) {
	m := NewManagerB()
	g1, w1 := m.ReadLock(1, 100)
	g2, w2 := m.ReadLock(1, 200)
	require.True(t, g1)
	require.True(t, g2)
	require.True(t, granted(t, w1))
	require.True(t, granted(t, w2))
}

func TestManagerBWriterWaitsForReaders(t *testing.T) {
	m := NewManagerB()
	m.ReadLock(1, 100)
	gw, ww := m.WriteLock(1, 900)
	require.False(t, gw)
	require.False(t, granted(t, ww))

	m.Release(1, 100)
	require.True(t, granted(t, ww))
}

func TestManagerBLateReaderQueuesBehindWaitingWriter(t *testing.T) {
	m := NewManagerB()
	m.ReadLock(1, 100)            // owner
	_, ww := m.WriteLock(1, 900)  // waits behind the reader
	gLate, wLate := m.ReadLock(1, 150) // arrives after the writer is already waiting

	require.False(t, gLate)
	require.False(t, granted(t, wLate))

	m.Release(1, 100)
	require.True(t, granted(t, ww), "writer must be promoted ahead of the late reader")
	m.Release(1, 900)
	require.True(t, granted(t, wLate))
}

func TestManagerBReleaseLastReaderPromotesRunOfReaders(t *testing.T) {
	m := NewManagerB()
	m.ReadLock(1, 100)
	gw, ww := m.WriteLock(1, 900)
	require.False(t, gw)
	_, w2 := m.ReadLock(1, 200)
	_, w3 := m.ReadLock(1, 300)

	m.Release(1, 100)
	require.True(t, granted(t, ww))
	require.False(t, granted(t, w2))
	require.False(t, granted(t, w3))

	m.Release(1, 900)
	require.True(t, granted(t, w2))
	require.True(t, granted(t, w3))
}
