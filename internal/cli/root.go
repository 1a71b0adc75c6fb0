// Package cli implements the scheduler command-line client.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/logging"
)

var (
	flagServer    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	client *Client
)

// defaultServer returns the operator API URL, checking SCHEDULER_SERVER first.
func defaultServer() string {
	if s := os.Getenv("SCHEDULER_SERVER"); s != "" {
		return s
	}
	return "http://127.0.0.1:8080"
}

// NewRootCmd creates the root cobra command for the scheduler CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "schedctl",
		Short: "Client for the OS scheduler server",
		Long: "schedctl subscribes to server events and prints extraction results, runs\n" +
			"CPU scheduling simulations locally, and drives the operator API.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(flagLogLevel), flagLogFormat, cmd.ErrOrStderr())
			client = NewClient(flagServer, logger)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagServer, "server", defaultServer(), "Operator API URL (or SCHEDULER_SERVER env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newConnectCmd(),
		newSimulateCmd(),
		newEventsCmd(),
		newTriggerCmd(),
		newSessionsCmd(),
		newStatusCmd(),
		newBatchesCmd(),
	)

	return root
}
