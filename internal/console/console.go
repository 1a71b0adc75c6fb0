// Package console implements the operator command prompt read from stdin.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/hub"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// StatusSource reports the state of the batch dispatcher.
type StatusSource interface {
	Status() model.DispatcherStatus
}

// Console reads one command per line and prints the outcome.
type Console struct {
	hub    *hub.Hub
	status StatusSource
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

// New creates a Console reading from in and writing to out.
func New(h *hub.Hub, status StatusSource, in io.Reader, out io.Writer, logger *slog.Logger) *Console {
	return &Console{
		hub:    h,
		status: status,
		in:     in,
		out:    out,
		logger: logger.With("component", "console"),
	}
}

// Run processes commands until "exit", end of input, or ctx is cancelled.
// The read goroutine may outlive Run when the input cannot be interrupted.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	c.printHelp()
	for {
		fmt.Fprint(c.out, "> ")
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			fmt.Fprintln(c.out)
			if err != nil {
				return fmt.Errorf("read console: %w", err)
			}
			c.logger.Info("console input closed")
			return nil
		case line := <-lines:
			if !c.Execute(line) {
				return nil
			}
			fmt.Fprintln(c.out)
		}
	}
}

// Execute runs one command line. It returns false for "exit".
func (c *Console) Execute(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]
	c.logger.Debug("command", "cmd", cmd, "args", args)

	switch {
	case cmd == "help":
		c.printHelp()
	case cmd == "add" && len(args) > 0:
		c.add(args[0])
	case cmd == "remove" && len(args) > 0:
		c.remove(args[0])
	case cmd == "trigger" && len(args) > 0:
		c.trigger(args[0])
	case cmd == "list":
		c.list()
	case cmd == "clients":
		c.clients()
	case cmd == "status":
		c.printStatus()
	case cmd == "exit" || cmd == "quit":
		fmt.Fprintln(c.out, "Shutting down server...")
		return false
	default:
		fmt.Fprintln(c.out, "Unknown command. Type 'help' for the list.")
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `Commands:
  add <event>       create an event
  remove <event>    delete an event and its wait queue
  trigger <event>   hand the text files to the sessions waiting on an event
  list              events, wait queues and connected sessions
  clients           sessions and their subscriptions
  status            dispatcher state
  exit              shut the server down
`)
}

func (c *Console) add(name string) {
	if err := c.hub.Registry().AddEvent(name); err != nil {
		if errors.Is(err, hub.ErrEventExists) {
			fmt.Fprintf(c.out, "Event '%s' already exists.\n", name)
			return
		}
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Event '%s' created.\n", name)
}

func (c *Console) remove(name string) {
	if err := c.hub.Registry().RemoveEvent(name); err != nil {
		fmt.Fprintf(c.out, "Event '%s' not found.\n", name)
		return
	}
	fmt.Fprintf(c.out, "Event '%s' and its queue removed.\n", name)
}

func (c *Console) trigger(name string) {
	fmt.Fprintf(c.out, "Triggering event '%s'...\n", name)
	plan, err := c.hub.Trigger(name)
	switch {
	case errors.Is(err, hub.ErrEventNotFound):
		fmt.Fprintf(c.out, "Event '%s' not found.\n", name)
		return
	case err != nil:
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	for _, id := range plan.Skipped {
		fmt.Fprintf(c.out, "Session %d skipped (disconnected).\n", id)
	}
	if plan.Sessions() == 0 {
		fmt.Fprintf(c.out, "No sessions waiting on '%s'.\n", name)
		return
	}
	if plan.NoFiles {
		fmt.Fprintf(c.out, "No .txt files in '%s' for '%s'.\n", c.hub.TextDir(), name)
	}
	for _, b := range plan.Batches {
		fmt.Fprintf(c.out, "Session %d: %d file(s) queued (%s, %d workers).\n",
			b.SessionID, len(b.Files), b.Config.Mode, b.Config.WorkerCount)
	}
	for _, id := range plan.Empty {
		fmt.Fprintf(c.out, "Session %d: no files assigned.\n", id)
	}
}

func (c *Console) list() {
	events := c.hub.Registry().Events()
	fmt.Fprintln(c.out, "Events:")
	if len(events) == 0 {
		fmt.Fprintln(c.out, "  (none)")
	} else {
		table := tablewriter.NewWriter(c.out)
		table.SetHeader([]string{"Event", "Subscribers", "Waiting"})
		for _, ev := range events {
			table.Append([]string{ev.Name, joinIDs(ev.Subscribers), joinIDs(ev.WaitQueue)})
		}
		table.Render()
	}
	c.clients()
}

func (c *Console) clients() {
	sessions := c.hub.Registry().Sessions()
	fmt.Fprintln(c.out, "Sessions:")
	if len(sessions) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"Session", "Address", "Mode", "Workers", "Events"})
	for _, s := range sessions {
		events := strings.Join(s.Events, ", ")
		if events == "" {
			events = "-"
		}
		table.Append([]string{
			strconv.FormatInt(s.ID, 10),
			s.RemoteAddr,
			string(s.Config.Mode),
			strconv.Itoa(s.Config.WorkerCount),
			events,
		})
	}
	table.Render()
}

func (c *Console) printStatus() {
	st := c.status.Status()
	if st.Idle() {
		fmt.Fprintln(c.out, "Status: idle")
	} else {
		fmt.Fprintf(c.out, "Status: busy (%d batch(es) queued)\n", st.QueueLen)
	}
	fmt.Fprintf(c.out, "Processed: %d, failed: %d, dropped: %d\n", st.Processed, st.Failed, st.Dropped)
}

func joinIDs(ids []int64) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
