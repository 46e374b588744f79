package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// mvccWrite locks key, writes, and unlocks, mirroring the bracket every
// real call site uses — Read/Write/CheckWrite assume the caller already
// holds the key's mutex.
func mvccWrite(m *MVCC, key Key, value Value, txnID uint64) {
	m.Lock(key)
	defer m.Unlock(key)
	m.Write(key, value, txnID)
}

func mvccRead(m *MVCC, key Key, txnID uint64) (Value, bool) {
	m.Lock(key)
	defer m.Unlock(key)
	return m.Read(key, txnID)
}

func mvccCheckWrite(m *MVCC, key Key, txnID uint64) bool {
	m.Lock(key)
	defer m.Unlock(key)
	return m.CheckWrite(key, txnID)
}

func TestMVCCReadsInitialZeroVersion(t *testing.T) {
	m := NewMVCC(16)
	v, ok := mvccRead(m, 1, 50)
	require.True(t, ok)
	require.Equal(t, Value(0), v)
}

func TestMVCCReadSeesNewestVisibleVersion(t *testing.T) {
	m := NewMVCC(16)
	mvccWrite(m, 1, 10, 5)  // writer 5
	mvccWrite(m, 1, 20, 15) // writer 15

	v, ok := mvccRead(m, 1, 9) // before writer 15's version exists
	require.True(t, ok)
	require.Equal(t, Value(10), v)

	v, ok = mvccRead(m, 1, 20)
	require.True(t, ok)
	require.Equal(t, Value(20), v)
}

func TestMVCCCheckWriteFailsAfterLaterReader(t *testing.T) {
	m := NewMVCC(16)
	mvccWrite(m, 1, 10, 5) // writer 5's version is the newest

	// A transaction with a higher unique ID reads writer 5's version,
	// bumping its high-water mark above 5.
	mvccRead(m, 1, 8)

	require.False(t, mvccCheckWrite(m, 1, 5), "writer 5 must not overwrite a version already read by 8")
	require.True(t, mvccCheckWrite(m, 1, 9), "a writer newer than the reader is still safe")
}

func TestMVCCTimestampIsUnusedAndZero(t *testing.T) {
	m := NewMVCC(16)
	mvccWrite(m, 1, 10, 5)
	require.True(t, m.Timestamp(1).IsZero())
}
