package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testService struct {
	BaseService
	startErr error
	stops    int
}

func (ts *testService) OnStart(context.Context) error { return ts.startErr }
func (ts *testService) OnStop()                       { ts.stops++ }

func newTestService() *testService {
	ts := &testService{}
	ts.BaseService = *NewBaseService(nil, "TestService", ts)
	return ts
}

func TestBaseServiceWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := newTestService()
	require.NoError(t, ts.Start(ctx))
	require.True(t, ts.IsRunning())

	waitFinished := make(chan struct{})
	go func() {
		ts.Wait()
		close(waitFinished)
	}()

	go ts.Stop() //nolint:errcheck // ignore for tests

	select {
	case <-waitFinished:
	case <-time.After(time.Second):
		t.Fatal("expected Wait() to finish within 1s")
	}
	require.False(t, ts.IsRunning())
	require.Equal(t, 1, ts.stops)
}

func TestBaseServiceStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ts := newTestService()
	require.NoError(t, ts.Start(ctx))
	cancel()

	select {
	case <-ts.quit:
	case <-time.After(time.Second):
		t.Fatal("service did not stop after cancel")
	}
}

func TestBaseServiceLifecycleErrors(t *testing.T) {
	ctx := context.Background()

	ts := newTestService()
	require.ErrorIs(t, ts.Stop(), ErrNotStarted)

	require.NoError(t, ts.Start(ctx))
	require.ErrorIs(t, ts.Start(ctx), ErrAlreadyStarted)
	require.NoError(t, ts.Stop())
	require.ErrorIs(t, ts.Stop(), ErrAlreadyStopped)

	failing := newTestService()
	failing.startErr = errors.New("boom")
	require.Error(t, failing.Start(ctx))
	require.False(t, failing.IsRunning())
}
