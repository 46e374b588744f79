package activeset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotAndInsertEmptyFirst(t *testing.T) {
	s := New()
	snap := s.SnapshotAndInsert(&Member{UniqueID: 1, WriteSet: []uint64{10}})
	require.Empty(t, snap)
	require.Equal(t, 1, s.Len())
}

func TestSnapshotAndInsertSeesPriorMembersNotSelf(t *testing.T) {
	s := New()
	s.SnapshotAndInsert(&Member{UniqueID: 1, WriteSet: []uint64{10}})
	snap := s.SnapshotAndInsert(&Member{UniqueID: 2, WriteSet: []uint64{20}})

	require.Len(t, snap, 1)
	require.Equal(t, uint64(1), snap[0].UniqueID)
	require.Equal(t, 2, s.Len())
}

func TestRemoveDropsMember(t *testing.T) {
	s := New()
	s.SnapshotAndInsert(&Member{UniqueID: 1})
	s.Remove(1)
	require.Equal(t, 0, s.Len())

	s.Remove(999) // removing an absent id is a no-op
	require.Equal(t, 0, s.Len())
}
