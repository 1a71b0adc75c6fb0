package conn

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/hub"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// drainTimeout bounds how long shutdown waits for handlers to return.
const drainTimeout = 5 * time.Second

// Listener accepts client connections and runs one handler goroutine per connection.
type Listener struct {
	handler  *Handler
	registry *hub.Registry
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewListener creates a Listener.
func NewListener(handler *Handler, registry *hub.Registry, logger *slog.Logger) *Listener {
	return &Listener{
		handler:  handler,
		registry: registry,
		logger:   logger.With("component", "listener"),
	}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (l *Listener) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return l.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled. On the way out every connected
// session receives SERVER_SHUTTING_DOWN and is closed.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	l.logger.Info("accepting connections", "addr", ln.Addr().String())

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	var delay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				l.shutdown()
				return nil
			}
			// Back off on transient accept errors (e.g. too many open files).
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > time.Second {
				delay = time.Second
			}
			l.logger.Warn("accept failed", "error", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handler.Serve(c)
		}()
	}
}

func (l *Listener) shutdown() {
	senders := l.registry.Senders()
	l.logger.Info("shutting down", "sessions", len(senders))

	msg, err := model.NewMessage(model.MsgServerShuttingDown, struct{}{})
	if err != nil {
		l.logger.Error("encode shutdown notice", "error", err)
	}
	for id, s := range senders {
		if err == nil {
			if sendErr := s.Send(msg); sendErr != nil {
				l.logger.Debug("shutdown notice not delivered", "session_id", id, "error", sendErr)
			}
		}
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(drainTimeout):
		l.logger.Warn("handlers still running after shutdown")
	}
}
