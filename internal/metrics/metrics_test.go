package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountersSnapshot(t *testing.T) {
	var c Counters
	c.Commit()
	c.Commit()
	c.Abort()
	c.Restart()

	snap := c.Snapshot()
	require.Equal(t, Snapshot{Committed: 2, Aborted: 1, Restarted: 1}, snap)
}
