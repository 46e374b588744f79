package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSingleVersionReadsZeroBeforeWrite(t *testing.T) {
	s := NewSingleVersion(16)
	v, ok := s.Read(5, 1)
	require.True(t, ok)
	require.Equal(t, Value(0), v)
}

func TestSingleVersionWriteThenRead(t *testing.T) {
	s := NewSingleVersion(16)
	require.True(t, s.Timestamp(5).IsZero(), "an unwritten key has no commit time")

	before := time.Now()
	s.Write(5, 42, 7)
	after := time.Now()

	v, ok := s.Read(5, 999)
	require.True(t, ok)
	require.Equal(t, Value(42), v)

	ts := s.Timestamp(5)
	require.False(t, ts.Before(before))
	require.False(t, ts.After(after))
}

func TestSingleVersionLockUnlock(t *testing.T) {
	s := NewSingleVersion(16)
	s.Lock(1)
	defer s.Unlock(1)
	// No assertion beyond not deadlocking: Lock/Unlock expose the key's
	// own mutex, the same one Read, Write and Timestamp take.
}
