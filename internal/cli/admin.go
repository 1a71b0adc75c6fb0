package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List, add and remove events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/events")
			if err != nil {
				return fmt.Errorf("list events: %w", err)
			}
			var events []model.EventInfo
			if err := json.Unmarshal(resp.Data, &events); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "No events.")
				return nil
			}
			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Event", "Subscribers", "Waiting"})
			for _, ev := range events {
				table.Append([]string{ev.Name, joinIDs(ev.Subscribers), joinIDs(ev.WaitQueue)})
			}
			table.Render()
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <event>",
			Short: "Create an event",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := client.Post("/api/v1/events/"+url.PathEscape(args[0]), nil); err != nil {
					return fmt.Errorf("add event: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Event '%s' created.\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <event>",
			Short: "Remove an event and its wait queue",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := client.Delete("/api/v1/events/" + url.PathEscape(args[0])); err != nil {
					return fmt.Errorf("remove event: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Event '%s' removed.\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func newTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <event>",
		Short: "Hand the server's text files to the sessions waiting on an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Post("/api/v1/events/"+url.PathEscape(args[0])+"/trigger", nil)
			if err != nil {
				return fmt.Errorf("trigger: %w", err)
			}
			var data struct {
				Event   string  `json:"event"`
				Batches int     `json:"batches"`
				Sizes   []int   `json:"sizes"`
				Empty   []int64 `json:"empty"`
				Skipped []int64 `json:"skipped"`
				NoFiles bool    `json:"no_files"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Event '%s' triggered: %d batch(es) queued", data.Event, data.Batches)
			if len(data.Sizes) > 0 {
				sizes := make([]string, len(data.Sizes))
				for i, n := range data.Sizes {
					sizes[i] = strconv.Itoa(n)
				}
				fmt.Fprintf(out, " (files: %s)", strings.Join(sizes, ", "))
			}
			fmt.Fprintln(out)
			if data.NoFiles {
				fmt.Fprintln(out, "The server has no text files to hand out.")
			}
			if len(data.Empty) > 0 {
				fmt.Fprintf(out, "Sessions without files: %s\n", joinIDs(data.Empty))
			}
			if len(data.Skipped) > 0 {
				fmt.Fprintf(out, "Disconnected sessions skipped: %s\n", joinIDs(data.Skipped))
			}
			return nil
		},
	}
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List connected sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/sessions")
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			var sessions []model.SessionInfo
			if err := json.Unmarshal(resp.Data, &sessions); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions connected.")
				return nil
			}
			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Session", "Address", "Mode", "Workers", "Events"})
			for _, s := range sessions {
				table.Append([]string{
					strconv.FormatInt(s.ID, 10),
					s.RemoteAddr,
					string(s.Config.Mode),
					strconv.Itoa(s.Config.WorkerCount),
					strings.Join(s.Events, ", "),
				})
			}
			table.Render()
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the server's dispatcher state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get("/api/v1/status")
			if err != nil {
				return fmt.Errorf("get status: %w", err)
			}
			var st model.DispatcherStatus
			if err := json.Unmarshal(resp.Data, &st); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			state := "idle"
			if !st.Idle() {
				state = "busy"
			}
			fmt.Fprintf(out, "Dispatcher: %s\n", state)
			fmt.Fprintf(out, "  Queued:    %d\n", st.QueueLen)
			fmt.Fprintf(out, "  Processed: %s\n", humanize.Comma(st.Processed))
			fmt.Fprintf(out, "  Failed:    %s\n", humanize.Comma(st.Failed))
			fmt.Fprintf(out, "  Dropped:   %s\n", humanize.Comma(st.Dropped))
			return nil
		},
	}
}

func newBatchesCmd() *cobra.Command {
	var (
		limit  int
		offset int
		event  string
		status string
	)

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List recent batch outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			q.Set("offset", strconv.Itoa(offset))
			if event != "" {
				q.Set("event", event)
			}
			if status != "" {
				q.Set("status", status)
			}
			resp, err := client.Get("/api/v1/batches?" + q.Encode())
			if err != nil {
				return fmt.Errorf("list batches: %w", err)
			}
			var list []*model.BatchResult
			if err := json.Unmarshal(resp.Data, &list); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			printBatches(cmd.OutOrStdout(), list, resp.Pagination)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of batches")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of batches to skip")
	cmd.Flags().StringVar(&event, "event", "", "Only batches of this event")
	cmd.Flags().StringVar(&status, "status", "", "Only batches with this status (success, failure)")
	return cmd
}

func printBatches(w io.Writer, list []*model.BatchResult, pg *model.Pagination) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No batches recorded.")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Batch", "Session", "Event", "Mode", "Files", "Errors", "Status", "Duration", "When"})
	for _, b := range list {
		status := string(b.Status)
		if !b.Delivered {
			status += " (undelivered)"
		}
		table.Append([]string{
			shortID(b.BatchID),
			strconv.FormatInt(b.SessionID, 10),
			b.Event,
			fmt.Sprintf("%s x%d", b.Config.Mode, b.Config.WorkerCount),
			strconv.Itoa(len(b.Files)),
			strconv.Itoa(b.Errors()),
			status,
			b.Duration.Round(time.Millisecond).String(),
			humanize.Time(b.CreatedAt),
		})
	}
	table.Render()
	if pg != nil && pg.HasMore {
		fmt.Fprintf(w, "Showing %d of %d. Use --offset %d for more.\n", len(list), pg.Total, pg.Offset+len(list))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
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
