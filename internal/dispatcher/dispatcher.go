// Package dispatcher executes queued batches one at a time and reports results
// back to the session that owns each batch.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/executor"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/hub"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/store"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// MsgSessionGone is recorded for batches whose session disconnected before they ran.
const MsgSessionGone = "session disconnected before processing"

// Sessions resolves the current sender of a session.
type Sessions interface {
	Lookup(id int64) (hub.Sender, model.SessionConfig, bool)
}

// Dispatcher owns an unbounded FIFO of batches and a single consumer goroutine.
type Dispatcher struct {
	sessions  Sessions
	executors *executor.Registry
	store     store.Store // optional
	logger    *slog.Logger

	mu    sync.Mutex
	queue []model.Batch
	wake  chan struct{}

	// batchMu is held for the whole execution of a batch.
	batchMu sync.Mutex
	busy    atomic.Bool

	processed atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a dispatcher. st may be nil when no history is kept.
func New(sessions Sessions, executors *executor.Registry, st store.Store, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sessions:  sessions,
		executors: executors,
		store:     st,
		logger:    logger.With("component", "dispatcher"),
		wake:      make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Enqueue appends a batch to the queue. It never blocks on execution.
func (d *Dispatcher) Enqueue(b model.Batch) {
	d.mu.Lock()
	d.queue = append(d.queue, b)
	n := len(d.queue)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	d.logger.Debug("batch queued", "batch_id", b.ID, "session_id", b.SessionID, "queue_len", n)
}

// Start consumes the queue until ctx is cancelled or Stop is called. It blocks.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.started.Store(true)
	defer close(d.doneCh)
	d.logger.Info("dispatcher started")

	for {
		if b, ok := d.next(); ok {
			d.process(ctx, b)
			continue
		}
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping (context cancelled)", "queued", d.QueueLen())
			return ctx.Err()
		case <-d.stopCh:
			d.logger.Info("dispatcher stopping (stop called)", "queued", d.QueueLen())
			return nil
		case <-d.wake:
		}
	}
}

// Stop ends Start after the current batch and, if Start is running, waits for
// it to return.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	if d.started.Load() {
		<-d.doneCh
	}
}

// Busy reports whether a batch is executing.
func (d *Dispatcher) Busy() bool { return d.busy.Load() }

// QueueLen returns the number of batches waiting.
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Processed returns the number of batches taken off the queue.
func (d *Dispatcher) Processed() int64 { return d.processed.Load() }

// Status returns a snapshot for operators.
func (d *Dispatcher) Status() model.DispatcherStatus {
	return model.DispatcherStatus{
		Busy:      d.Busy(),
		QueueLen:  d.QueueLen(),
		Processed: d.processed.Load(),
		Dropped:   d.dropped.Load(),
		Failed:    d.failed.Load(),
	}
}

func (d *Dispatcher) next() (model.Batch, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return model.Batch{}, false
	}
	b := d.queue[0]
	d.queue[0] = model.Batch{}
	d.queue = d.queue[1:]
	return b, true
}

func (d *Dispatcher) process(ctx context.Context, b model.Batch) {
	d.batchMu.Lock()
	defer d.batchMu.Unlock()
	d.busy.Store(true)
	defer d.busy.Store(false)
	defer d.processed.Add(1)

	log := d.logger.With("batch_id", b.ID, "session_id", b.SessionID, "event", b.Event)
	res := &model.BatchResult{
		BatchID:   b.ID,
		SessionID: b.SessionID,
		Event:     b.Event,
		Files:     b.Files,
		Config:    b.Config,
		Status:    model.BatchStatusSuccess,
		CreatedAt: b.CreatedAt,
	}

	sender, _, ok := d.sessions.Lookup(b.SessionID)
	if !ok {
		log.Info("dropping batch for disconnected session")
		d.dropped.Add(1)
		res.Status = model.BatchStatusFailure
		res.Message = MsgSessionGone
		d.record(ctx, res)
		return
	}
	if err := send(sender, model.MsgStartProcessing, model.StartProcessingPayload{Event: b.Event, Files: b.Files}); err != nil {
		log.Warn("send start notice", "error", err)
	}

	log.Info("batch started", "files", len(b.Files), "mode", b.Config.Mode, "workers", b.Config.WorkerCount)
	start := time.Now()
	results, err := d.run(ctx, b)
	res.Duration = time.Since(start)
	res.Results = results
	if res.Results == nil {
		res.Results = []model.FileResult{}
	}
	if err != nil {
		log.Error("batch failed", "error", err)
		d.failed.Add(1)
		res.Status = model.BatchStatusFailure
		res.Message = err.Error()
		res.Results = []model.FileResult{}
	}

	payload := model.ProcessingCompletePayload{
		Event:           b.Event,
		Status:          res.Status,
		Results:         res.Results,
		Message:         res.Message,
		DurationSeconds: res.Duration.Seconds(),
	}
	// The session may have vanished while the batch ran.
	if sender, _, ok := d.sessions.Lookup(b.SessionID); !ok {
		log.Info("discarding result for disconnected session")
	} else if err := send(sender, model.MsgProcessingComplete, payload); err != nil {
		log.Warn("deliver result", "error", err)
	} else {
		res.Delivered = true
	}

	log.Info("batch finished",
		"status", res.Status,
		"errors", res.Errors(),
		"duration", res.Duration,
		"delivered", res.Delivered,
	)
	d.record(ctx, res)
}

// run executes a batch, converting a panic anywhere below into a batch failure.
func (d *Dispatcher) run(ctx context.Context, b model.Batch) (results []model.FileResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			results, err = nil, fmt.Errorf("batch panicked: %v", r)
		}
	}()
	exec, err := d.executors.Get(b.Config.Mode)
	if err != nil {
		return nil, err
	}
	return exec.Run(ctx, b.Files, b.Config.WorkerCount)
}

func (d *Dispatcher) record(ctx context.Context, res *model.BatchResult) {
	if d.store == nil {
		return
	}
	if err := d.store.RecordBatch(context.WithoutCancel(ctx), res); err != nil {
		d.logger.Error("record batch", "batch_id", res.BatchID, "error", err)
	}
}

func send(s hub.Sender, t model.MessageType, payload any) error {
	msg, err := model.NewMessage(t, payload)
	if err != nil {
		return err
	}
	return s.Send(msg)
}
