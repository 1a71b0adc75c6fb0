package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/executor"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/hub"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/store"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []model.Message
	got  chan model.MessageType
}

func newRecordingSender() *recordingSender {
	return &recordingSender{got: make(chan model.MessageType, 64)}
}

func (s *recordingSender) Send(msg model.Message) error {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
	s.got <- msg.Type
	return nil
}

func (s *recordingSender) RemoteAddr() string { return "pipe" }
func (s *recordingSender) Close() error       { return nil }

func (s *recordingSender) waitFor(t *testing.T, want model.MessageType) model.Message {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case typ := <-s.got:
			if typ != want {
				continue
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			for i := len(s.msgs) - 1; i >= 0; i-- {
				if s.msgs[i].Type == want {
					return s.msgs[i]
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

// fakeExecutor records how many Run calls overlap.
type fakeExecutor struct {
	mode    model.Mode
	delay   time.Duration
	current atomic.Int32
	peak    atomic.Int32
	calls   atomic.Int32
	fail    error
	panics  bool

	// When set, the first Run signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeExecutor) Mode() model.Mode { return f.mode }

func (f *fakeExecutor) Run(_ context.Context, files []string, workers int) ([]model.FileResult, error) {
	n := f.calls.Add(1)
	c := f.current.Add(1)
	defer f.current.Add(-1)
	for {
		old := f.peak.Load()
		if c <= old || f.peak.CompareAndSwap(old, c) {
			break
		}
	}
	if n == 1 && f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	time.Sleep(f.delay)
	if f.panics {
		panic("executor blew up")
	}
	if f.fail != nil {
		return nil, f.fail
	}
	out := make([]model.FileResult, len(files))
	for i, file := range files {
		out[i] = model.FileResult{
			Worker:   fmt.Sprintf("THREAD_%d", i%workers+1),
			Filename: file,
			Status:   model.TaskStatusSuccess,
		}
	}
	return out, nil
}

type fixture struct {
	reg  *hub.Registry
	disp *Dispatcher
	exec *fakeExecutor
}

func newFixture(t *testing.T, exec *fakeExecutor, st store.Store) *fixture {
	t.Helper()
	executors := executor.NewRegistry(newTestLogger())
	executors.Register(exec)
	reg := hub.NewRegistry()
	d := New(reg, executors, st, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go d.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-d.doneCh
	})
	return &fixture{reg: reg, disp: d, exec: exec}
}

func batchFor(id int64, event string, files ...string) model.Batch {
	return model.Batch{
		ID:        fmt.Sprintf("%s-%d", event, id),
		SessionID: id,
		Files:     files,
		Event:     event,
		Config:    model.SessionConfig{Mode: model.ModeThread, WorkerCount: 2},
		CreatedAt: time.Now().UTC(),
	}
}

func waitProcessed(t *testing.T, d *Dispatcher, n int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for d.Processed() < n {
		if time.Now().After(deadline) {
			t.Fatalf("processed %d batches, want %d", d.Processed(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcher_DeliversStartAndComplete(t *testing.T) {
	f := newFixture(t, &fakeExecutor{mode: model.ModeThread}, nil)
	s := newRecordingSender()
	id := f.reg.Register(s)

	f.disp.Enqueue(batchFor(id, "news", "a.txt", "b.txt"))

	start := s.waitFor(t, model.MsgStartProcessing)
	var sp model.StartProcessingPayload
	if err := json.Unmarshal(start.Payload, &sp); err != nil {
		t.Fatal(err)
	}
	if sp.Event != "news" || len(sp.Files) != 2 {
		t.Errorf("start payload = %+v", sp)
	}

	done := s.waitFor(t, model.MsgProcessingComplete)
	var pc model.ProcessingCompletePayload
	if err := json.Unmarshal(done.Payload, &pc); err != nil {
		t.Fatal(err)
	}
	if pc.Status != model.BatchStatusSuccess || len(pc.Results) != 2 {
		t.Errorf("complete payload = %+v", pc)
	}
	if pc.Results[0].Filename != "a.txt" {
		t.Errorf("results out of order: %+v", pc.Results)
	}
}

func TestDispatcher_AtMostOneBatchExecuting(t *testing.T) {
	exec := &fakeExecutor{mode: model.ModeThread, delay: 20 * time.Millisecond}
	f := newFixture(t, exec, nil)

	var ids []int64
	for i := 0; i < 4; i++ {
		ids = append(ids, f.reg.Register(newRecordingSender()))
	}

	// Two triggers racing to enqueue.
	var wg sync.WaitGroup
	for _, event := range []string{"alpha", "beta"} {
		wg.Add(1)
		go func(event string) {
			defer wg.Done()
			for _, id := range ids {
				f.disp.Enqueue(batchFor(id, event, "x.txt"))
			}
		}(event)
	}
	wg.Wait()

	waitProcessed(t, f.disp, 8)
	if got := exec.peak.Load(); got != 1 {
		t.Errorf("peak concurrent batches = %d, want 1", got)
	}
	if got := exec.calls.Load(); got != 8 {
		t.Errorf("executor calls = %d, want 8", got)
	}
}

func TestDispatcher_DropsBatchForDisconnectedSession(t *testing.T) {
	exec := &fakeExecutor{mode: model.ModeThread}
	f := newFixture(t, exec, nil)

	gone := f.reg.Register(newRecordingSender())
	f.reg.RemoveSession(gone)
	live := newRecordingSender()
	liveID := f.reg.Register(live)

	f.disp.Enqueue(batchFor(gone, "e", "a.txt"))
	f.disp.Enqueue(batchFor(liveID, "e", "b.txt"))

	live.waitFor(t, model.MsgProcessingComplete)
	status := f.disp.Status()
	if status.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", status.Dropped)
	}
	if got := exec.calls.Load(); got != 1 {
		t.Errorf("executor calls = %d, want 1 (dropped batch must not run)", got)
	}
}

func TestDispatcher_DiscardsResultForSessionGoneMidBatch(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:", newTestLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}

	exec := &fakeExecutor{
		mode:    model.ModeThread,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	f := newFixture(t, exec, st)
	leaving := newRecordingSender()
	leavingID := f.reg.Register(leaving)
	staying := newRecordingSender()
	stayingID := f.reg.Register(staying)

	f.disp.Enqueue(batchFor(leavingID, "e", "a.txt"))
	f.disp.Enqueue(batchFor(stayingID, "e", "b.txt"))

	select {
	case <-exec.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first batch never started")
	}
	leaving.waitFor(t, model.MsgStartProcessing)
	if !f.reg.RemoveSession(leavingID) {
		t.Fatal("RemoveSession returned false")
	}
	close(exec.release)

	staying.waitFor(t, model.MsgProcessingComplete)
	waitProcessed(t, f.disp, 2)

	leaving.mu.Lock()
	for _, msg := range leaving.msgs {
		if msg.Type == model.MsgProcessingComplete {
			t.Errorf("result delivered to a session that left mid-batch")
		}
	}
	leaving.mu.Unlock()

	status := f.disp.Status()
	if status.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0 (batch had already started)", status.Dropped)
	}
	if got := exec.calls.Load(); got != 2 {
		t.Errorf("executor calls = %d, want 2", got)
	}

	rec, err := st.GetBatch(context.Background(), fmt.Sprintf("e-%d", leavingID))
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Delivered || rec.Status != model.BatchStatusSuccess {
		t.Errorf("record for departed session = %+v, want finished and undelivered", rec)
	}
}

func TestDispatcher_FailureDoesNotStopQueue(t *testing.T) {
	tests := []struct {
		name string
		exec *fakeExecutor
		want string
	}{
		{"error", &fakeExecutor{mode: model.ModeThread, fail: errors.New("pool exploded")}, "pool exploded"},
		{"panic", &fakeExecutor{mode: model.ModeThread, panics: true}, "batch panicked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.exec, nil)
			s := newRecordingSender()
			id := f.reg.Register(s)

			f.disp.Enqueue(batchFor(id, "one", "a.txt"))
			f.disp.Enqueue(batchFor(id, "two", "b.txt"))

			for i := 0; i < 2; i++ {
				msg := s.waitFor(t, model.MsgProcessingComplete)
				var pc model.ProcessingCompletePayload
				if err := json.Unmarshal(msg.Payload, &pc); err != nil {
					t.Fatal(err)
				}
				if pc.Status != model.BatchStatusFailure {
					t.Errorf("Status = %q, want failure", pc.Status)
				}
				if !bytes.Contains([]byte(pc.Message), []byte(tt.want)) {
					t.Errorf("Message = %q, want it to contain %q", pc.Message, tt.want)
				}
			}
			waitProcessed(t, f.disp, 2)
			if got := f.disp.Status().Failed; got != 2 {
				t.Errorf("Failed = %d, want 2", got)
			}
		})
	}
}

func TestDispatcher_UnknownModeFailsBatch(t *testing.T) {
	f := newFixture(t, &fakeExecutor{mode: model.ModeThread}, nil)
	s := newRecordingSender()
	id := f.reg.Register(s)

	b := batchFor(id, "e", "a.txt")
	b.Config.Mode = model.ModeProcess
	f.disp.Enqueue(b)

	msg := s.waitFor(t, model.MsgProcessingComplete)
	var pc model.ProcessingCompletePayload
	if err := json.Unmarshal(msg.Payload, &pc); err != nil {
		t.Fatal(err)
	}
	if pc.Status != model.BatchStatusFailure {
		t.Errorf("Status = %q, want failure", pc.Status)
	}
}

func TestDispatcher_RecordsHistory(t *testing.T) {
	logger := newTestLogger()
	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}

	f := newFixture(t, &fakeExecutor{mode: model.ModeThread}, st)
	s := newRecordingSender()
	id := f.reg.Register(s)
	gone := f.reg.Register(newRecordingSender())
	f.reg.RemoveSession(gone)

	f.disp.Enqueue(batchFor(gone, "e", "a.txt"))
	f.disp.Enqueue(batchFor(id, "e", "b.txt"))
	waitProcessed(t, f.disp, 2)

	list, total, err := st.ListBatches(context.Background(), model.ListOptions{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	byID := map[string]*model.BatchResult{}
	for _, b := range list {
		byID[b.BatchID] = b
	}
	if r := byID[fmt.Sprintf("e-%d", gone)]; r == nil || r.Delivered || r.Message != MsgSessionGone {
		t.Errorf("dropped batch record = %+v", r)
	}
	if r := byID[fmt.Sprintf("e-%d", id)]; r == nil || !r.Delivered || r.Status != model.BatchStatusSuccess {
		t.Errorf("delivered batch record = %+v", r)
	}
}

func TestDispatcher_StatusIdle(t *testing.T) {
	f := newFixture(t, &fakeExecutor{mode: model.ModeThread}, nil)
	if !f.disp.Status().Idle() {
		t.Errorf("new dispatcher status = %+v, want idle", f.disp.Status())
	}
}

func TestDispatcher_Stop(t *testing.T) {
	executors := executor.NewRegistry(newTestLogger())
	d := New(hub.NewRegistry(), executors, nil, newTestLogger())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(context.Background()) }()
	d.Stop()
	if err := <-errCh; err != nil {
		t.Errorf("Start returned %v after Stop", err)
	}
}

func TestDispatcher_StopWithoutStart(t *testing.T) {
	d := New(hub.NewRegistry(), executor.NewRegistry(newTestLogger()), nil, newTestLogger())

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
	if err := d.Start(context.Background()); err != nil {
		t.Errorf("Start after Stop returned %v", err)
	}
}
