package backup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingSnapshotter struct {
	calls atomic.Int32
	err   error
}

func (c *countingSnapshotter) Snapshot(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestSchedulerFiresAndStops(t *testing.T) {
	snap := &countingSnapshotter{}
	sched := NewScheduler(snap, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	require.Eventually(t, func() bool { return snap.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestSchedulerSurvivesSnapshotErrors(t *testing.T) {
	snap := &countingSnapshotter{err: errors.New("bucket unreachable")}
	sched := NewScheduler(snap, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	require.Eventually(t, func() bool { return snap.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestSchedulerDisabledWithoutSnapshotter(t *testing.T) {
	sched := NewScheduler(nil, time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
}
