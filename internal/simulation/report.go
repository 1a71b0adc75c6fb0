package simulation

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// Result is the outcome of a completed (or partially completed) run.
type Result struct {
	Policy    string           `json:"policy"`
	Slots     int              `json:"slots"`
	Processes []*model.Process `json:"processes"`
	Gantt     []GanttSlot      `json:"gantt"`
	Summary   Summary          `json:"summary"`
}

// Summary aggregates the metrics of terminated processes.
type Summary struct {
	Completed         int     `json:"completed"`
	AverageWaiting    float64 `json:"average_waiting"`
	AverageTurnaround float64 `json:"average_turnaround"`
	Makespan          int     `json:"makespan"`
	Throughput        float64 `json:"throughput"`
}

// TimeSlice is a run of consecutive ticks one process spent on one slot.
type TimeSlice struct {
	Slot  int
	PID   int
	Start int
	Stop  int
}

// Result returns the processes in input order with their metrics, the Gantt
// chart, and the summary of everything terminated so far.
func (l *Loop) Result() *Result {
	procs := make([]*model.Process, len(l.all))
	for i, p := range l.all {
		procs[i] = p.Clone()
	}
	return &Result{
		Policy:    l.policy.Name(),
		Slots:     l.slots,
		Processes: procs,
		Gantt:     l.Gantt(),
		Summary:   Summarize(procs),
	}
}

// Summarize computes averages over the terminated processes in procs.
func Summarize(procs []*model.Process) Summary {
	var s Summary
	var wait, turnaround int
	for _, p := range procs {
		if p.State != model.ProcessStateTerminated {
			continue
		}
		s.Completed++
		wait += p.WaitingTime
		turnaround += p.TurnaroundTime
		if p.CompletionTime > s.Makespan {
			s.Makespan = p.CompletionTime
		}
	}
	if s.Completed == 0 {
		return s
	}
	s.AverageWaiting = float64(wait) / float64(s.Completed)
	s.AverageTurnaround = float64(turnaround) / float64(s.Completed)
	if s.Makespan > 0 {
		s.Throughput = float64(s.Completed) / float64(s.Makespan)
	}
	return s
}

// Slices collapses per-tick Gantt slots into contiguous runs, ordered by slot then start.
func Slices(gantt []GanttSlot) []TimeSlice {
	sorted := make([]GanttSlot, len(gantt))
	copy(sorted, gantt)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Slot != sorted[j].Slot {
			return sorted[i].Slot < sorted[j].Slot
		}
		return sorted[i].Time < sorted[j].Time
	})

	var out []TimeSlice
	for _, g := range sorted {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.Slot == g.Slot && last.PID == g.PID && last.Stop == g.Time {
				last.Stop = g.Time + 1
				continue
			}
		}
		out = append(out, TimeSlice{Slot: g.Slot, PID: g.PID, Start: g.Time, Stop: g.Time + 1})
	}
	return out
}

// Render writes a titled Gantt chart and schedule table for res.
func Render(w io.Writer, res *Result) {
	title := fmt.Sprintf("%s (%d slot", res.Policy, res.Slots)
	if res.Slots != 1 {
		title += "s"
	}
	title += ")"
	outputTitle(w, title)
	outputGantt(w, Slices(res.Gantt))
	outputSchedule(w, res.Processes, res.Summary)
}

func outputTitle(w io.Writer, title string) {
	_, _ = fmt.Fprintln(w, strings.Repeat("-", len(title)*2))
	_, _ = fmt.Fprintln(w, strings.Repeat(" ", len(title)/2), title)
	_, _ = fmt.Fprintln(w, strings.Repeat("-", len(title)*2))
}

func outputGantt(w io.Writer, slices []TimeSlice) {
	_, _ = fmt.Fprintln(w, "Gantt schedule")
	bySlot := make(map[int][]TimeSlice)
	var slots []int
	for _, s := range slices {
		if _, ok := bySlot[s.Slot]; !ok {
			slots = append(slots, s.Slot)
		}
		bySlot[s.Slot] = append(bySlot[s.Slot], s)
	}
	for _, slot := range slots {
		row := bySlot[slot]
		_, _ = fmt.Fprintf(w, "slot %d |", slot)
		for _, s := range row {
			pid := fmt.Sprintf("P%d", s.PID)
			padding := strings.Repeat(" ", (8-len(pid))/2)
			_, _ = fmt.Fprint(w, padding, pid, padding, "|")
		}
		_, _ = fmt.Fprint(w, "\n       ")
		for i, s := range row {
			_, _ = fmt.Fprint(w, s.Start, "\t")
			if i == len(row)-1 {
				_, _ = fmt.Fprint(w, s.Stop)
			}
		}
		_, _ = fmt.Fprintln(w)
	}
	_, _ = fmt.Fprintln(w)
}

func outputSchedule(w io.Writer, procs []*model.Process, sum Summary) {
	_, _ = fmt.Fprintln(w, "Schedule table")
	rows := make([][]string, 0, len(procs))
	for _, p := range procs {
		rows = append(rows, []string{
			fmt.Sprint(p.ID),
			p.Label,
			fmt.Sprint(p.Priority),
			fmt.Sprint(p.BurstTime),
			fmt.Sprint(p.ArrivalTime),
			timeCell(p.StartTime),
			timeCell(p.CompletionTime),
			formulaCell(p.TurnaroundFormula, p.TurnaroundTime, p),
			formulaCell(p.WaitingFormula, p.WaitingTime, p),
		})
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "File", "Priority", "Burst", "Arrival", "Start", "Exit", "Turnaround", "Wait"})
	table.AppendBulk(rows)
	table.SetFooter([]string{"", "", "", "", "", "",
		fmt.Sprintf("Throughput\n%.2f/t", sum.Throughput),
		fmt.Sprintf("Average\n%.2f", sum.AverageTurnaround),
		fmt.Sprintf("Average\n%.2f", sum.AverageWaiting)})
	table.Render()
}

func timeCell(t int) string {
	if t < 0 {
		return "-"
	}
	return fmt.Sprint(t)
}

func formulaCell(formula string, v int, p *model.Process) string {
	if p.State != model.ProcessStateTerminated {
		return "-"
	}
	if formula != "" {
		return formula
	}
	return fmt.Sprint(v)
}
