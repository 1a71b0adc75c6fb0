package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/policy"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/simulation"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

func newSimulateCmd() *cobra.Command {
	var (
		file     string
		procs    []string
		req      simulation.Request
		live     bool
		interval time.Duration
		asJSON   bool
		remote   bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a CPU scheduling simulation",
		Long: "Simulate runs the given processes under a scheduling policy and prints the\n" +
			"Gantt chart and per-process metrics. Processes come from a YAML or JSON file\n" +
			"(--file) and/or --proc label:arrival:burst[:priority] flags.\n\n" +
			"Policies: " + strings.Join(policy.Names, ", "),
		Example: "  schedctl simulate --policy RR --quantum 2 --proc a.txt:0:5 --proc b.txt:1:3\n" +
			"  schedctl simulate --file procs.yaml --workers 2 --live",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if file != "" {
				loaded, err := loadRequest(file)
				if err != nil {
					return err
				}
				mergeRequest(&req, loaded, cmd)
			}
			for _, arg := range procs {
				p, err := parseProc(len(req.Processes)+1, arg)
				if err != nil {
					return err
				}
				req.Processes = append(req.Processes, p)
			}
			if len(req.Processes) == 0 {
				return fmt.Errorf("no processes: use --file or --proc")
			}
			for i, p := range req.Processes {
				if p != nil && p.ID == 0 {
					p.ID = i + 1
				}
			}

			var res *simulation.Result
			var err error
			switch {
			case remote:
				res, err = simulateRemote(req)
			case live:
				res, err = simulateLive(cmd, req, interval)
			default:
				res, err = simulation.Simulate(cmd.Context(), req)
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			simulation.Render(out, res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON file with processes (and optionally policy, quantum, workers)")
	cmd.Flags().StringArrayVar(&procs, "proc", nil, "Process as label:arrival:burst[:priority] (repeatable)")
	cmd.Flags().StringVarP(&req.Policy, "policy", "p", "FCFS", "Scheduling policy")
	cmd.Flags().IntVarP(&req.Quantum, "quantum", "q", policy.DefaultQuantum, "Round Robin quantum")
	cmd.Flags().IntVarP(&req.Workers, "workers", "w", 1, "Number of CPU slots")
	cmd.Flags().BoolVar(&live, "live", false, "Print the state after every tick")
	cmd.Flags().DurationVar(&interval, "interval", 200*time.Millisecond, "Tick interval with --live")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&remote, "remote", false, "Run on the server and record it in its history")
	return cmd
}

// loadRequest reads either a full request or a bare list of processes.
func loadRequest(path string) (simulation.Request, error) {
	var req simulation.Request
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read process file: %w", err)
	}
	var list []*model.Process
	if err := yaml.Unmarshal(data, &list); err == nil {
		req.Processes = list
		return req, nil
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse process file %s: %w", path, err)
	}
	return req, nil
}

// mergeRequest applies file settings unless the matching flag was given explicitly.
func mergeRequest(dst *simulation.Request, src simulation.Request, cmd *cobra.Command) {
	if src.Policy != "" && !cmd.Flags().Changed("policy") {
		dst.Policy = src.Policy
	}
	if src.Quantum != 0 && !cmd.Flags().Changed("quantum") {
		dst.Quantum = src.Quantum
	}
	if src.Workers != 0 && !cmd.Flags().Changed("workers") {
		dst.Workers = src.Workers
	}
	dst.Processes = append(dst.Processes, src.Processes...)
}

// parseProc parses label:arrival:burst[:priority].
func parseProc(id int, arg string) (*model.Process, error) {
	parts := strings.Split(arg, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return nil, fmt.Errorf("invalid --proc %q: want label:arrival:burst[:priority]", arg)
	}
	nums := make([]int, 3)
	for i, s := range parts[1:] {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --proc %q: %w", arg, err)
		}
		nums[i] = n
	}
	return model.NewProcess(id, parts[0], nums[0], nums[1], nums[2]), nil
}

func simulateLive(cmd *cobra.Command, req simulation.Request, interval time.Duration) (*simulation.Result, error) {
	p, err := policy.New(req.Policy, req.Quantum)
	if err != nil {
		return nil, err
	}
	loop, err := simulation.New(p, max(req.Workers, 1))
	if err != nil {
		return nil, err
	}
	if err := loop.Reset(req.Processes); err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	d := simulation.NewDriver(loop, interval, func(s simulation.Snapshot) {
		fmt.Fprintf(out, "t=%-4d running=%v ready=%v\n", s.Time, pids(s.Running), pids(s.Ready))
	}, logger)
	if err := d.Start(cmd.Context()); err != nil {
		return nil, err
	}
	return loop.Result(), nil
}

func simulateRemote(req simulation.Request) (*simulation.Result, error) {
	resp, err := client.Post("/api/v1/simulations", req)
	if err != nil {
		return nil, fmt.Errorf("run simulation: %w", err)
	}
	var data struct {
		ID     string             `json:"id"`
		Result *simulation.Result `json:"result"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if data.ID != "" {
		logger.Info("simulation recorded", "id", data.ID)
	}
	return data.Result, nil
}

func pids(ids []int) string {
	if len(ids) == 0 {
		return "[]"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "P" + strconv.Itoa(id)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
