package simulation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the wall-clock time between simulated ticks.
const DefaultInterval = 500 * time.Millisecond

// Driver steps a Loop on a ticker, publishing each snapshot to a callback.
// Pause and Resume suspend stepping without losing loop state.
type Driver struct {
	loop     *Loop
	interval time.Duration
	onStep   func(Snapshot)
	logger   *slog.Logger

	mu     sync.Mutex
	paused bool

	started  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewDriver creates a driver for loop. A zero interval uses DefaultInterval.
func NewDriver(loop *Loop, interval time.Duration, onStep func(Snapshot), logger *slog.Logger) *Driver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if onStep == nil {
		onStep = func(Snapshot) {}
	}
	return &Driver{
		loop:     loop,
		interval: interval,
		onStep:   onStep,
		logger:   logger.With("component", "simulation", "policy", loop.Policy().Name()),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start steps the loop once per interval until the run finishes, ctx is
// cancelled, or Stop is called. It blocks.
func (d *Driver) Start(ctx context.Context) error {
	d.started.Store(true)
	defer close(d.doneCh)
	d.logger.Info("simulation started", "interval", d.interval, "slots", d.loop.Slots())

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("simulation stopping (context cancelled)", "time", d.loop.Time())
			return ctx.Err()
		case <-d.stopCh:
			d.logger.Info("simulation stopping (stop called)", "time", d.loop.Time())
			return nil
		case <-ticker.C:
			if d.Paused() {
				continue
			}
			snap := d.loop.Step()
			d.onStep(snap)
			if snap.Done {
				d.logger.Info("simulation finished", "time", snap.Time)
				return nil
			}
		}
	}
}

// Stop ends Start and, if Start is running, waits for it to return.
// A later Start returns immediately.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	if d.started.Load() {
		<-d.doneCh
	}
}

// Pause suspends stepping.
func (d *Driver) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.paused {
		d.paused = true
		d.logger.Info("simulation paused")
	}
}

// Resume continues stepping after Pause.
func (d *Driver) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.paused {
		d.paused = false
		d.logger.Info("simulation resumed")
	}
}

// Paused reports whether stepping is suspended.
func (d *Driver) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// Done is closed when Start returns. It stays open if Start is never called.
func (d *Driver) Done() <-chan struct{} {
	return d.doneCh
}
