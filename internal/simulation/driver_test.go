package simulation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/policy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) add(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func TestDriver_RunsToCompletion(t *testing.T) {
	rr, err := policy.NewRoundRobin(2)
	require.NoError(t, err)
	l, err := New(rr, 1)
	require.NoError(t, err)
	require.NoError(t, l.Reset(textbook()))

	rec := &recorder{}
	d := NewDriver(l, time.Millisecond, rec.add, testLogger())

	require.NoError(t, d.Start(context.Background()))
	<-d.Done()

	require.NotZero(t, rec.len())
	last := rec.snaps[len(rec.snaps)-1]
	assert.True(t, last.Done)
	assert.Equal(t, 12, last.Time)
}

func TestDriver_PauseResume(t *testing.T) {
	l, err := New(policy.FCFS{}, 1)
	require.NoError(t, err)
	require.NoError(t, l.Reset(textbook()))

	rec := &recorder{}
	d := NewDriver(l, time.Millisecond, rec.add, testLogger())
	d.Pause()
	assert.True(t, d.Paused())

	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, rec.len(), "no steps while paused")

	d.Resume()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("driver did not finish after resume")
	}
	assert.Equal(t, 3, rec.len(), "one fast-forward step per process")
}

func TestDriver_StopAndCancel(t *testing.T) {
	newDriver := func() *Driver {
		l, err := New(policy.FCFS{}, 1)
		require.NoError(t, err)
		require.NoError(t, l.Reset(textbook()))
		return NewDriver(l, time.Hour, nil, testLogger())
	}

	d := newDriver()
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(context.Background()) }()
	d.Stop()
	assert.NoError(t, <-errCh)
	d.Stop() // idempotent

	d = newDriver()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Start(ctx), context.Canceled)
}

func TestDriver_StopWithoutStart(t *testing.T) {
	l, err := New(policy.FCFS{}, 1)
	require.NoError(t, err)
	require.NoError(t, l.Reset(textbook()))
	d := NewDriver(l, time.Hour, nil, testLogger())

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked although Start was never called")
	}
	assert.NoError(t, d.Start(context.Background()), "Start after Stop returns at once")
}
