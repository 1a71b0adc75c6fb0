package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/extract"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

const childEnv = "EXECUTOR_TEST_CHILD"

// TestMain doubles as the extract child when ProcessExecutor re-executes the test binary.
func TestMain(m *testing.M) {
	if os.Getenv(childEnv) == "1" {
		path := os.Args[len(os.Args)-1]
		if err := ServeExtract(os.Stdout, path, extract.File); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		body := fmt.Sprintf("Anna Karlsson wrote %s in Stockholm.", n)
		if err := os.WriteFile(filepath.Join(dir, n), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(newTestLogger())
	reg.Register(NewThreadExecutor("", extract.File, newTestLogger()))

	e, err := reg.Get(model.ModeThread)
	if err != nil {
		t.Fatalf("Get(thread): %v", err)
	}
	if e.Mode() != model.ModeThread {
		t.Errorf("Mode() = %q, want %q", e.Mode(), model.ModeThread)
	}
	if _, err := reg.Get(model.ModeProcess); err == nil {
		t.Error("expected error for unregistered mode")
	}
}

func TestThreadExecutor_ResultsInInputOrder(t *testing.T) {
	files := []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"}
	dir := writeFiles(t, files...)
	e := NewThreadExecutor(dir, extract.File, newTestLogger())

	results, err := e.Run(context.Background(), files, 3)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != len(files) {
		t.Fatalf("got %d results, want %d", len(results), len(files))
	}
	for i, r := range results {
		if r.Filename != files[i] {
			t.Errorf("results[%d].Filename = %q, want %q", i, r.Filename, files[i])
		}
		if r.Status != model.TaskStatusSuccess {
			t.Errorf("results[%d].Status = %q, error %q", i, r.Status, r.Error)
		}
		if !strings.HasPrefix(r.Worker, "THREAD_") {
			t.Errorf("results[%d].Worker = %q, want THREAD_ prefix", i, r.Worker)
		}
		if len(r.Data.Places) != 1 || r.Data.Places[0] != "Stockholm" {
			t.Errorf("results[%d].Data.Places = %v", i, r.Data.Places)
		}
	}
}

func TestThreadExecutor_BoundsConcurrency(t *testing.T) {
	var current, peak int32
	slow := func(path string) (model.Extraction, error) {
		c := atomic.AddInt32(&current, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if c <= old || atomic.CompareAndSwapInt32(&peak, old, c) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return model.Extraction{WordCount: 1}, nil
	}

	e := NewThreadExecutor("", slow, newTestLogger())
	files := make([]string, 12)
	for i := range files {
		files[i] = fmt.Sprintf("f%d.txt", i)
	}
	if _, err := e.Run(context.Background(), files, 4); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if peak > 4 {
		t.Errorf("peak concurrency %d exceeded worker count 4", peak)
	}
}

func TestThreadExecutor_FailuresStayPerFile(t *testing.T) {
	fn := func(path string) (model.Extraction, error) {
		switch filepath.Base(path) {
		case "bad.txt":
			return model.Extraction{}, errors.New("unreadable")
		case "boom.txt":
			panic("extractor exploded")
		}
		return model.Extraction{WordCount: 3}, nil
	}
	e := NewThreadExecutor("", fn, newTestLogger())

	results, err := e.Run(context.Background(), []string{"ok.txt", "bad.txt", "boom.txt", "ok2.txt"}, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []model.TaskStatus{model.TaskStatusSuccess, model.TaskStatusError, model.TaskStatusError, model.TaskStatusSuccess}
	for i, r := range results {
		if r.Status != want[i] {
			t.Errorf("results[%d].Status = %q, want %q", i, r.Status, want[i])
		}
	}
	if results[1].Error != "unreadable" {
		t.Errorf("results[1].Error = %q", results[1].Error)
	}
	if !strings.Contains(results[2].Error, "extractor exploded") {
		t.Errorf("results[2].Error = %q, want panic message", results[2].Error)
	}
}

func TestThreadExecutor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewThreadExecutor("", func(string) (model.Extraction, error) {
		return model.Extraction{}, nil
	}, newTestLogger())

	results, err := e.Run(ctx, []string{"a.txt", "b.txt"}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestThreadExecutor_Empty(t *testing.T) {
	e := NewThreadExecutor("", extract.File, newTestLogger())
	results, err := e.Run(context.Background(), nil, 3)
	if err != nil || len(results) != 0 {
		t.Fatalf("Run(nil) = %v, %v", results, err)
	}
}

func newChildExecutor(dir string) *ProcessExecutor {
	e := NewProcessExecutor([]string{os.Args[0]}, dir, newTestLogger())
	e.Env = []string{childEnv + "=1"}
	return e
}

func TestProcessExecutor_RunsChildren(t *testing.T) {
	files := []string{"one.txt", "two.txt", "three.txt"}
	dir := writeFiles(t, files...)

	results, err := newChildExecutor(dir).Run(context.Background(), files, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, r := range results {
		if r.Status != model.TaskStatusSuccess {
			t.Fatalf("results[%d] = %+v", i, r)
		}
		if r.Filename != files[i] {
			t.Errorf("results[%d].Filename = %q, want %q", i, r.Filename, files[i])
		}
		if !strings.HasPrefix(r.Worker, "PROCESS_") || r.Worker == "PROCESS_?" {
			t.Errorf("results[%d].Worker = %q, want PROCESS_<pid>", i, r.Worker)
		}
		if len(r.Data.Names) != 1 || r.Data.Names[0] != "Anna Karlsson" {
			t.Errorf("results[%d].Data.Names = %v", i, r.Data.Names)
		}
	}
}

func TestProcessExecutor_ChildFailure(t *testing.T) {
	dir := writeFiles(t, "here.txt")

	results, err := newChildExecutor(dir).Run(context.Background(), []string{"here.txt", "gone.txt"}, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[0].Status != model.TaskStatusSuccess {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Status != model.TaskStatusError {
		t.Fatalf("results[1].Status = %q, want error", results[1].Status)
	}
	if !strings.Contains(results[1].Error, "exit code 1") {
		t.Errorf("results[1].Error = %q", results[1].Error)
	}
}

func TestProcessExecutor_MissingBinary(t *testing.T) {
	e := NewProcessExecutor([]string{"/nonexistent/extractor-bin"}, t.TempDir(), newTestLogger())
	results, err := e.Run(context.Background(), []string{"a.txt"}, 1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[0].Status != model.TaskStatusError {
		t.Errorf("Status = %q, want error", results[0].Status)
	}

	empty := NewProcessExecutor(nil, "", newTestLogger())
	if _, err := empty.Run(context.Background(), []string{"a.txt"}, 1); err == nil {
		t.Error("expected error when no command is configured")
	}
}

func TestProcessExecutor_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newChildExecutor(writeFiles(t, "a.txt", "b.txt"))
	results, err := e.Run(ctx, []string{"a.txt", "b.txt"}, 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	for i, r := range results {
		if r.Status != model.TaskStatusError || r.Worker != "" {
			t.Errorf("results[%d] = %+v, want error with no child", i, r)
		}
	}
}

func TestAcquire_BoundsLiveChildren(t *testing.T) {
	slots := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		if !acquire(context.Background(), slots) {
			t.Fatalf("acquire %d failed with a free slot", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if acquire(ctx, slots) {
		t.Fatal("acquired a third slot with capacity 2")
	}

	<-slots
	if !acquire(context.Background(), slots) {
		t.Error("acquire failed after a slot was released")
	}
}
