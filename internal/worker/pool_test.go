package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	p := New(4, nil)
	defer p.Close()

	var n atomic.Int64
	for i := 0; i < 20; i++ {
		p.Submit(func() { n.Add(1) })
	}
	require.Eventually(t, func() bool { return n.Load() == 20 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return p.Completed() == 20 }, time.Second, time.Millisecond)
}

func TestPoolRecoversPanickingJobs(t *testing.T) {
	p := New(2, nil)
	defer p.Close()

	p.Submit(func() { panic("boom") })
	require.Eventually(t, func() bool { return p.Panics() == 1 }, time.Second, time.Millisecond)

	var ran atomic.Bool
	p.Submit(func() { ran.Store(true) })
	require.Eventually(t, ran.Load, time.Second, time.Millisecond)
}

func TestSizesHasAFloorOfOne(t *testing.T) {
	require.GreaterOrEqual(t, Sizes(), 1)
}
