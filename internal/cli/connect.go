package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

func newConnectCmd() *cobra.Command {
	var (
		addr    string
		mode    string
		workers int
		events  []string
		files   []string
		batches int
	)

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to the server, subscribe to events and print results",
		Long: "Connect opens a session, applies the worker configuration, subscribes to the\n" +
			"given events and prints every batch result as it arrives. With --files the\n" +
			"named files are submitted directly. Use --batches to exit after N results.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			sess, err := Dial(ctx, addr, logger)
			if err != nil {
				return err
			}
			defer sess.Close()
			go func() {
				<-ctx.Done()
				sess.Close()
			}()

			fmt.Fprintf(out, "Connected to %s %s as session %d\n", sess.Server.Name, sess.Server.Version, sess.ID)

			cfg, err := sess.Configure(mode, workers)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Config: %s, %d worker(s)\n", cfg.Mode, cfg.WorkerCount)

			for _, ev := range events {
				if err := sess.Subscribe(ev); err != nil {
					return fmt.Errorf("subscribe %q: %w", ev, err)
				}
				fmt.Fprintf(out, "Subscribed to %s\n", ev)
			}
			if len(files) > 0 {
				if err := sess.ProcessFiles("", files); err != nil {
					return fmt.Errorf("process files: %w", err)
				}
			}

			completed := 0
			for batches == 0 || completed < batches {
				msg, err := sess.Next()
				if err != nil {
					if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
						fmt.Fprintln(out, "Disconnected.")
						return nil
					}
					return err
				}
				done, err := printMessage(out, msg)
				if err != nil {
					return err
				}
				if msg.Type == model.MsgServerShuttingDown {
					return nil
				}
				if done {
					completed++
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:65432", "Server address")
	cmd.Flags().StringVar(&mode, "mode", "threads", "Worker mode (threads, forks)")
	cmd.Flags().IntVar(&workers, "workers", 1, "Number of workers per batch")
	cmd.Flags().StringSliceVar(&events, "events", nil, "Events to subscribe to")
	cmd.Flags().StringSliceVar(&files, "files", nil, "Files to process directly")
	cmd.Flags().IntVar(&batches, "batches", 0, "Exit after this many results (0 = run until disconnected)")
	return cmd
}

// printMessage renders one server message. It reports true for a batch result.
func printMessage(w io.Writer, msg model.Message) (bool, error) {
	switch msg.Type {
	case model.MsgStartProcessing:
		var p model.StartProcessingPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return false, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		fmt.Fprintf(w, "[%s] processing %d file(s): %s\n", p.Event, len(p.Files), strings.Join(p.Files, ", "))

	case model.MsgProcessingComplete:
		var p model.ProcessingCompletePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return false, fmt.Errorf("decode %s: %w", msg.Type, err)
		}
		printCompletion(w, p)
		return true, nil

	case model.MsgError:
		var p model.ErrorPayload
		json.Unmarshal(msg.Payload, &p)
		fmt.Fprintf(w, "Server error: %s\n", p.Message)

	case model.MsgServerShuttingDown:
		fmt.Fprintln(w, "Server is shutting down.")

	default:
		logger.Debug("ignoring message", "type", msg.Type)
	}
	return false, nil
}

func printCompletion(w io.Writer, p model.ProcessingCompletePayload) {
	header := fmt.Sprintf("[%s] %s", p.Event, p.Status)
	if p.DurationSeconds > 0 {
		header += fmt.Sprintf(" in %.3fs", p.DurationSeconds)
	}
	fmt.Fprintln(w, header)
	if p.Message != "" {
		fmt.Fprintf(w, "  %s\n", p.Message)
	}
	if len(p.Results) == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Worker", "File", "Status", "Names", "Dates", "Places", "Words"})
	table.SetAutoWrapText(false)
	var words int
	for _, r := range p.Results {
		status := string(r.Status)
		if r.Failed() && r.Error != "" {
			status += ": " + r.Error
		}
		words += r.Data.WordCount
		table.Append([]string{
			r.Worker,
			r.Filename,
			status,
			summarize(r.Data.Names),
			summarize(r.Data.Dates),
			summarize(r.Data.Places),
			humanize.Comma(int64(r.Data.WordCount)),
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "Total", humanize.Comma(int64(words))})
	table.Render()
}

// summarize shows the first few values and a count of the rest.
func summarize(values []string) string {
	const show = 3
	if len(values) == 0 {
		return "-"
	}
	if len(values) <= show {
		return strings.Join(values, ", ")
	}
	return fmt.Sprintf("%s (+%d)", strings.Join(values[:show], ", "), len(values)-show)
}
