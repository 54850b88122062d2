package scheduler_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/NeoCraftTeam/ImmoApp-Backend-sub001/internal/scheduler"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(context.Context) (int, error) {
	r.calls.Add(1)
	return 3, r.err
}

func TestStart_RefreshesImmediatelyAndOnSchedule(t *testing.T) {
	r := &countingRefresher{}
	s := scheduler.New(r, "@every 1s", zerolog.New(io.Discard))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return r.calls.Load() >= 2 }, 3*time.Second, 50*time.Millisecond)
}

func TestStart_FailuresKeepRunning(t *testing.T) {
	r := &countingRefresher{err: errors.New("db down")}
	s := scheduler.New(r, "@every 1s", zerolog.New(io.Discard))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return r.calls.Load() >= 2 }, 3*time.Second, 50*time.Millisecond)
}

func TestStart_InvalidSpec(t *testing.T) {
	s := scheduler.New(&countingRefresher{}, "every now and then", zerolog.New(io.Discard))
	require.Error(t, s.Start(context.Background()))
}

type blockingRefresher struct {
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRefresher) Refresh(context.Context) (int, error) {
	close(r.entered)
	<-r.release
	return 1, nil
}

func TestStop_WaitsForInitialRefresh(t *testing.T) {
	r := &blockingRefresher{entered: make(chan struct{}), release: make(chan struct{})}
	s := scheduler.New(r, "@every 1h", zerolog.New(io.Discard))
	require.NoError(t, s.Start(context.Background()))
	<-r.entered

	var stopped atomic.Bool
	go func() {
		s.Stop()
		stopped.Store(true)
	}()

	require.Never(t, stopped.Load, 100*time.Millisecond, 10*time.Millisecond)
	close(r.release)
	require.Eventually(t, stopped.Load, time.Second, 10*time.Millisecond)
}
