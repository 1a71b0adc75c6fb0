// Package policy implements the CPU scheduling disciplines used by the simulation loop.
//
// A Policy is a pure decision over the ready queue: it picks at most one process per call,
// removes it from the ready queue, and never touches the running set. Quantum bookkeeping
// and preemption are owned by the simulation loop.
package policy

import "github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"

// Policy selects the next process to run.
type Policy interface {
	// Name returns the canonical policy name (e.g. "FCFS").
	Name() string

	// Preemptive reports whether the loop must re-evaluate running processes every tick.
	Preemptive() bool

	// Select removes and returns one process from ready, or nil when ready is empty.
	// running and slots are informational; running must not be modified.
	Select(ready *[]*model.Process, now int, running []*model.Process, slots int) *model.Process
}

// takeMin removes and returns the first process p in ready for which no other
// process q satisfies before(q, p). Earlier entries win ties, which keeps
// selection stable with respect to insertion order.
func takeMin(ready *[]*model.Process, before func(a, b *model.Process) bool) *model.Process {
	q := *ready
	if len(q) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(q); i++ {
		if before(q[i], q[best]) {
			best = i
		}
	}
	return removeAt(ready, best)
}

func removeAt(ready *[]*model.Process, i int) *model.Process {
	q := *ready
	p := q[i]
	copy(q[i:], q[i+1:])
	q[len(q)-1] = nil
	*ready = q[:len(q)-1]
	return p
}

// FCFS is first-come, first-served.
type FCFS struct{}

func (FCFS) Name() string     { return "FCFS" }
func (FCFS) Preemptive() bool { return false }

// Select picks the earliest arrival; equal arrivals keep queue order.
func (FCFS) Select(ready *[]*model.Process, _ int, _ []*model.Process, _ int) *model.Process {
	return takeMin(ready, func(a, b *model.Process) bool {
		return a.ArrivalTime < b.ArrivalTime
	})
}

// SJF is non-preemptive shortest job first.
type SJF struct{}

func (SJF) Name() string     { return "SJF" }
func (SJF) Preemptive() bool { return false }

// Select picks the smallest total burst, then the earliest arrival.
func (SJF) Select(ready *[]*model.Process, _ int, _ []*model.Process, _ int) *model.Process {
	return takeMin(ready, func(a, b *model.Process) bool {
		if a.BurstTime != b.BurstTime {
			return a.BurstTime < b.BurstTime
		}
		return a.ArrivalTime < b.ArrivalTime
	})
}

// SRTF is shortest remaining time first, the preemptive variant of SJF.
type SRTF struct{}

func (SRTF) Name() string     { return "SRTF" }
func (SRTF) Preemptive() bool { return true }

// Select picks the smallest remaining burst, then the earliest arrival.
func (SRTF) Select(ready *[]*model.Process, _ int, _ []*model.Process, _ int) *model.Process {
	return takeMin(ready, func(a, b *model.Process) bool {
		return shorterRemaining(a, b)
	})
}

// shorterRemaining orders processes for SRTF.
func shorterRemaining(a, b *model.Process) bool {
	if a.RemainingBurstTime != b.RemainingBurstTime {
		return a.RemainingBurstTime < b.RemainingBurstTime
	}
	return a.ArrivalTime < b.ArrivalTime
}

// ShouldPreempt reports whether candidate has strictly less remaining time than running.
func (SRTF) ShouldPreempt(running, candidate *model.Process) bool {
	return candidate.RemainingBurstTime < running.RemainingBurstTime
}

// RoundRobin serves the ready queue in strict FIFO order. The loop enforces the quantum.
type RoundRobin struct {
	quantum int
}

// NewRoundRobin returns a RoundRobin policy. quantum must be positive.
func NewRoundRobin(quantum int) (*RoundRobin, error) {
	if quantum <= 0 {
		return nil, model.NewValidationError("round robin quantum must be a positive integer",
			model.FieldError{Field: "quantum", Message: "must be >= 1"})
	}
	return &RoundRobin{quantum: quantum}, nil
}

func (r *RoundRobin) Name() string     { return "RR" }
func (r *RoundRobin) Preemptive() bool { return true }

// Quantum returns the time slice length.
func (r *RoundRobin) Quantum() int { return r.quantum }

// Select pops the head of the ready queue without reordering it.
func (r *RoundRobin) Select(ready *[]*model.Process, _ int, _ []*model.Process, _ int) *model.Process {
	if len(*ready) == 0 {
		return nil
	}
	return removeAt(ready, 0)
}

// HRRN is non-preemptive highest response ratio next.
type HRRN struct{}

func (HRRN) Name() string     { return "HRRN" }
func (HRRN) Preemptive() bool { return false }

// Select computes every ratio at now and picks the highest, ties by arrival then queue order.
// Ratios are compared as fractions so no rounding can reorder close candidates.
func (HRRN) Select(ready *[]*model.Process, now int, _ []*model.Process, _ int) *model.Process {
	return takeMin(ready, func(a, b *model.Process) bool {
		// (now-aa+ba)/ba > (now-ab+bb)/bb  <=>  (now-aa+ba)*bb > (now-ab+bb)*ba
		lhs := int64(now-a.ArrivalTime+a.BurstTime) * int64(b.BurstTime)
		rhs := int64(now-b.ArrivalTime+b.BurstTime) * int64(a.BurstTime)
		if lhs != rhs {
			return lhs > rhs
		}
		return a.ArrivalTime < b.ArrivalTime
	})
}

// ResponseRatio returns (waiting + burst) / burst at time now.
func ResponseRatio(p *model.Process, now int) float64 {
	return float64(now-p.ArrivalTime+p.BurstTime) / float64(p.BurstTime)
}

// Priority is non-preemptive priority scheduling; lower values run first.
type Priority struct{}

func (Priority) Name() string     { return "PRIORITY" }
func (Priority) Preemptive() bool { return false }

// Select picks the lowest priority value, then the earliest arrival.
func (Priority) Select(ready *[]*model.Process, _ int, _ []*model.Process, _ int) *model.Process {
	return takeMin(ready, func(a, b *model.Process) bool {
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.ArrivalTime < b.ArrivalTime
	})
}
