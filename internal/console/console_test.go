package console

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/hub"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

type fixedStatus model.DispatcherStatus

func (s fixedStatus) Status() model.DispatcherStatus { return model.DispatcherStatus(s) }

type fakeQueue struct {
	mu sync.Mutex
	n  int
}

func (q *fakeQueue) Enqueue(model.Batch) {
	q.mu.Lock()
	q.n++
	q.mu.Unlock()
}

type nopSender struct{}

func (nopSender) Send(model.Message) error { return nil }
func (nopSender) RemoteAddr() string       { return "10.0.0.7:41000" }
func (nopSender) Close() error             { return nil }

func newConsole(t *testing.T, status model.DispatcherStatus, files ...string) (*Console, *bytes.Buffer, *fakeQueue) {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644))
	}
	q := &fakeQueue{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := hub.New(hub.NewRegistry(), q, dir, logger)
	var out bytes.Buffer
	return New(h, fixedStatus(status), strings.NewReader(""), &out, logger), &out, q
}

func TestExecute_AddRemove(t *testing.T) {
	c, out, _ := newConsole(t, model.DispatcherStatus{})

	assert.True(t, c.Execute("add news"))
	assert.True(t, c.Execute("add news"))
	assert.True(t, c.Execute("remove news"))
	assert.True(t, c.Execute("remove news"))

	got := out.String()
	assert.Contains(t, got, "Event 'news' created.")
	assert.Contains(t, got, "Event 'news' already exists.")
	assert.Contains(t, got, "Event 'news' and its queue removed.")
	assert.Contains(t, got, "Event 'news' not found.")
}

func TestExecute_Trigger(t *testing.T) {
	c, out, q := newConsole(t, model.DispatcherStatus{}, "a.txt", "b.txt", "c.txt")
	reg := c.hub.Registry()
	for i := 0; i < 2; i++ {
		id := reg.Register(nopSender{})
		require.NoError(t, reg.Subscribe(id, "go"))
	}

	c.Execute("trigger go")
	assert.Equal(t, 2, q.n)
	assert.Contains(t, out.String(), "Session 1: 2 file(s) queued (thread, 1 workers).")
	assert.Contains(t, out.String(), "Session 2: 1 file(s) queued")

	out.Reset()
	c.Execute("trigger go")
	assert.Contains(t, out.String(), "No sessions waiting on 'go'.")

	out.Reset()
	c.Execute("trigger nope")
	assert.Contains(t, out.String(), "Event 'nope' not found.")
}

func TestExecute_ListAndClients(t *testing.T) {
	c, out, _ := newConsole(t, model.DispatcherStatus{})
	c.Execute("list")
	assert.Contains(t, out.String(), "(none)")

	id := c.hub.Registry().Register(nopSender{})
	require.NoError(t, c.hub.Registry().Subscribe(id, "weather"))

	out.Reset()
	c.Execute("list")
	got := out.String()
	assert.Contains(t, got, "weather")
	assert.Contains(t, got, "10.0.0.7:41000")

	out.Reset()
	c.Execute("clients")
	assert.Contains(t, out.String(), "weather")
}

func TestExecute_Status(t *testing.T) {
	c, out, _ := newConsole(t, model.DispatcherStatus{Busy: true, QueueLen: 3, Processed: 9})
	c.Execute("status")
	assert.Contains(t, out.String(), "Status: busy (3 batch(es) queued)")
	assert.Contains(t, out.String(), "Processed: 9")

	c, out, _ = newConsole(t, model.DispatcherStatus{})
	c.Execute("STATUS")
	assert.Contains(t, out.String(), "Status: idle")
}

func TestExecute_UnknownAndExit(t *testing.T) {
	c, out, _ := newConsole(t, model.DispatcherStatus{})

	assert.True(t, c.Execute("frobnicate"))
	assert.True(t, c.Execute("add"), "add without a name is not a valid command")
	assert.Equal(t, 2, strings.Count(out.String(), "Unknown command"))
	assert.True(t, c.Execute("   "))
	assert.False(t, c.Execute("exit"))
}

func TestRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := hub.New(hub.NewRegistry(), &fakeQueue{}, t.TempDir(), logger)

	tests := []struct {
		name  string
		input string
	}{
		{"exit", "add a\nexit\nadd b\n"},
		{"eof", "add a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := New(h, fixedStatus{}, strings.NewReader(tt.input), &out, logger)
			done := make(chan error, 1)
			go func() { done <- c.Run(context.Background()) }()
			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("Run did not return")
			}
		})
	}
	events := h.Registry().Events()
	require.Len(t, events, 1, "commands after exit are not run")
	assert.Equal(t, "a", events[0].Name)
}

func TestRun_ContextCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := hub.New(hub.NewRegistry(), &fakeQueue{}, t.TempDir(), logger)
	pr, pw := io.Pipe()
	defer pw.Close()

	c := New(h, fixedStatus{}, pr, io.Discard, logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
