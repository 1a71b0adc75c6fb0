// Package simulation drives Process entities through New → Ready → Running → Terminated
// one discrete tick at a time, using a pluggable scheduling policy.
package simulation

import (
	"context"
	"fmt"
	"sort"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/policy"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// GanttSlot records that process PID executed on Slot during [Time, Time+1).
type GanttSlot struct {
	Time int `json:"time"`
	Slot int `json:"slot"`
	PID  int `json:"pid"`
}

// Dispatch records one Ready → Running transition.
type Dispatch struct {
	Time int `json:"time"`
	PID  int `json:"pid"`
}

// Snapshot is the observable state after one Step.
type Snapshot struct {
	Time      int              `json:"time"`
	Processes []*model.Process `json:"processes"`
	Ready     []int            `json:"ready"`
	Running   []int            `json:"running"`
	Executed  []GanttSlot      `json:"executed"`
	Done      bool             `json:"done"`
}

// preemptor is implemented by policies that may displace a running process.
type preemptor interface {
	ShouldPreempt(running, candidate *model.Process) bool
}

// DefaultMaxTicks bounds the latest completion time a run may reach.
const DefaultMaxTicks = 1_000_000

// quantumPolicy is implemented by time-sliced policies.
type quantumPolicy interface {
	Quantum() int
}

// Loop is a restartable discrete-time scheduler simulation. It is not safe for
// concurrent use; a Driver or a single caller owns it for the length of a run.
type Loop struct {
	policy   policy.Policy
	slots    int
	maxTicks int

	time      int
	all       []*model.Process // input order, for snapshots
	incoming  []*model.Process // New, sorted by arrival (stable)
	ready     []*model.Process
	running   []*model.Process
	completed []*model.Process

	sliceUsed map[int]int // ticks used in the current quantum, keyed by PID
	gantt     []GanttSlot
	trace     []Dispatch
}

// New creates a Loop with the given policy and number of execution slots.
func New(p policy.Policy, slots int) (*Loop, error) {
	if p == nil {
		return nil, fmt.Errorf("simulation: policy is required")
	}
	if slots < 1 {
		return nil, model.NewValidationError(fmt.Sprintf("worker count must be >= 1, got %d", slots),
			model.FieldError{Field: "workers", Message: "must be >= 1"})
	}
	return &Loop{policy: p, slots: slots, maxTicks: DefaultMaxTicks}, nil
}

// SetMaxTicks changes the run length limit checked by Reset. n < 1 restores the default.
func (l *Loop) SetMaxTicks(n int) {
	if n < 1 {
		n = DefaultMaxTicks
	}
	l.maxTicks = n
}

// Policy returns the policy driving this loop.
func (l *Loop) Policy() policy.Policy { return l.policy }

// Slots returns the number of execution slots.
func (l *Loop) Slots() int { return l.slots }

// Reset discards any previous run and loads a fresh process set. Inputs are
// copied; the caller's processes are never mutated. A set whose latest arrival
// plus total burst exceeds the tick limit is rejected.
func (l *Loop) Reset(procs []*model.Process) error {
	seen := make(map[int]bool, len(procs))
	all := make([]*model.Process, 0, len(procs))
	for i, in := range procs {
		if in == nil {
			return model.NewValidationError(fmt.Sprintf("process %d is empty", i))
		}
		if err := in.Validate(); err != nil {
			return err
		}
		if seen[in.ID] {
			return model.NewValidationError(fmt.Sprintf("duplicate process id %d", in.ID),
				model.FieldError{Field: "id", Message: "must be unique"})
		}
		seen[in.ID] = true
		p := in.Clone()
		p.Reset()
		all = append(all, p)
	}
	if err := l.checkHorizon(all); err != nil {
		return err
	}

	incoming := make([]*model.Process, len(all))
	copy(incoming, all)
	sort.SliceStable(incoming, func(i, j int) bool {
		return incoming[i].ArrivalTime < incoming[j].ArrivalTime
	})

	l.time = 0
	l.all = all
	l.incoming = incoming
	l.ready = nil
	l.running = nil
	l.completed = nil
	l.sliceUsed = make(map[int]int)
	l.gantt = nil
	l.trace = nil
	return nil
}

// checkHorizon bounds the completion time of every process by latest arrival
// plus total burst, without overflowing.
func (l *Loop) checkHorizon(procs []*model.Process) error {
	tooLong := func(field string) error {
		return model.NewValidationError(fmt.Sprintf("run would exceed %d ticks", l.maxTicks),
			model.FieldError{Field: field, Message: fmt.Sprintf("latest arrival plus total burst must be <= %d", l.maxTicks)})
	}
	horizon := 0
	for _, p := range procs {
		if p.ArrivalTime > l.maxTicks {
			return tooLong("arrival_time")
		}
		horizon = max(horizon, p.ArrivalTime)
	}
	for _, p := range procs {
		if p.BurstTime > l.maxTicks-horizon {
			return tooLong("burst_time")
		}
		horizon += p.BurstTime
	}
	return nil
}

// Time returns the current simulation clock.
func (l *Loop) Time() int { return l.time }

// Done reports whether no process remains in New, Ready or Running.
func (l *Loop) Done() bool {
	return len(l.incoming) == 0 && len(l.ready) == 0 && len(l.running) == 0
}

// Gantt returns every executed slot so far.
func (l *Loop) Gantt() []GanttSlot {
	out := make([]GanttSlot, len(l.gantt))
	copy(out, l.gantt)
	return out
}

// Trace returns every dispatch so far, in order.
func (l *Loop) Trace() []Dispatch {
	out := make([]Dispatch, len(l.trace))
	copy(out, l.trace)
	return out
}

// Step runs one decision point and returns the resulting snapshot.
//
// Phases: admission, retirement, dispatch (with SRTF preemption), execution,
// quantum expiry, clock advance. Non-preemptive policies on a single slot
// fast-forward: idle time jumps to the next arrival and a dispatched process
// runs to completion within the step.
//
// Every state change goes through Process.TransitionTo; an illegal one panics
// with *model.InvalidTransitionError.
func (l *Loop) Step() Snapshot {
	if l.Done() {
		return l.snapshot(nil)
	}

	now := l.time
	l.admit(now)
	l.retire(now)
	if l.Done() {
		return l.snapshot(nil)
	}

	if !l.policy.Preemptive() && l.slots == 1 {
		return l.fastForward(now)
	}

	l.dispatch(now)
	l.preempt(now)
	executed := l.execute(now)
	l.expireQuantum()
	l.time++
	return l.snapshot(executed)
}

// Run steps until the run completes or ctx is cancelled. An illegal state
// change is returned as *model.InvalidTransitionError.
func (l *Loop) Run(ctx context.Context) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			te, ok := r.(*model.InvalidTransitionError)
			if !ok {
				panic(r)
			}
			res, err = nil, te
		}
	}()
	for steps := 0; !l.Done(); steps++ {
		if steps%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		l.Step()
	}
	return l.Result(), nil
}

// admit moves every New process whose arrival time has come to Ready.
func (l *Loop) admit(now int) {
	n := 0
	for _, p := range l.incoming {
		if p.ArrivalTime <= now {
			l.move(p, model.ProcessStateReady)
			l.ready = append(l.ready, p)
			continue
		}
		l.incoming[n] = p
		n++
	}
	for i := n; i < len(l.incoming); i++ {
		l.incoming[i] = nil
	}
	l.incoming = l.incoming[:n]
}

// retire terminates every running process with no remaining burst.
func (l *Loop) retire(now int) {
	n := 0
	for _, p := range l.running {
		if p.RemainingBurstTime <= 0 {
			l.complete(p, now)
			delete(l.sliceUsed, p.ID)
			l.completed = append(l.completed, p)
			continue
		}
		l.running[n] = p
		n++
	}
	l.running = l.running[:n]
}

// dispatch asks the policy for one process per free slot.
func (l *Loop) dispatch(now int) {
	for free := l.slots - len(l.running); free > 0 && len(l.ready) > 0; free-- {
		p := l.policy.Select(&l.ready, now, l.running, free)
		if p == nil {
			return
		}
		l.start(p, now)
		l.running = append(l.running, p)
	}
}

// start transitions a selected process from Ready to Running.
func (l *Loop) start(p *model.Process, now int) {
	l.move(p, model.ProcessStateRunning)
	if p.StartTime == -1 {
		p.StartTime = now
	}
	l.sliceUsed[p.ID] = 0
	l.trace = append(l.trace, Dispatch{Time: now, PID: p.ID})
}

// preempt swaps running processes for ready ones that the policy prefers.
// Only policies implementing preemptor take part; a swap needs a strictly better candidate.
func (l *Loop) preempt(now int) {
	pr, ok := l.policy.(preemptor)
	if !ok || len(l.running) == 0 {
		return
	}
	for len(l.ready) > 0 {
		victim := l.worstRunning()
		cand := l.policy.Select(&l.ready, now, l.running, 0)
		if cand == nil {
			return
		}
		if !pr.ShouldPreempt(l.running[victim], cand) {
			// Put the candidate back at the head; it is still the best ready process.
			l.ready = append([]*model.Process{cand}, l.ready...)
			return
		}
		out := l.running[victim]
		l.move(out, model.ProcessStateReady)
		delete(l.sliceUsed, out.ID)
		l.ready = append(l.ready, out)

		l.start(cand, now)
		l.running[victim] = cand
	}
}

// worstRunning returns the index of the running process with the most remaining
// time (latest arrival on ties): the first one a better candidate displaces.
func (l *Loop) worstRunning() int {
	worst := 0
	for i := 1; i < len(l.running); i++ {
		a, b := l.running[i], l.running[worst]
		if a.RemainingBurstTime > b.RemainingBurstTime ||
			(a.RemainingBurstTime == b.RemainingBurstTime && a.ArrivalTime > b.ArrivalTime) {
			worst = i
		}
	}
	return worst
}

// execute consumes one unit of burst for every running process.
func (l *Loop) execute(now int) []GanttSlot {
	executed := make([]GanttSlot, 0, len(l.running))
	for slot, p := range l.running {
		p.RemainingBurstTime--
		l.sliceUsed[p.ID]++
		executed = append(executed, GanttSlot{Time: now, Slot: slot, PID: p.ID})
	}
	l.gantt = append(l.gantt, executed...)
	return executed
}

// expireQuantum requeues time-sliced processes that used their full quantum.
func (l *Loop) expireQuantum() {
	qp, ok := l.policy.(quantumPolicy)
	if !ok {
		return
	}
	q := qp.Quantum()
	n := 0
	var expired []*model.Process
	for _, p := range l.running {
		if l.sliceUsed[p.ID] >= q && p.RemainingBurstTime > 0 {
			l.move(p, model.ProcessStateReady)
			l.sliceUsed[p.ID] = 0
			expired = append(expired, p)
			continue
		}
		l.running[n] = p
		n++
	}
	l.running = l.running[:n]
	l.ready = append(l.ready, expired...)
}

// fastForward handles one decision point for a non-preemptive single-slot run.
func (l *Loop) fastForward(now int) Snapshot {
	if len(l.ready) == 0 {
		// Idle: jump to the next arrival.
		if len(l.incoming) > 0 {
			l.time = l.incoming[0].ArrivalTime
		}
		return l.snapshot(nil)
	}

	p := l.policy.Select(&l.ready, now, l.running, 1)
	if p == nil {
		l.time++
		return l.snapshot(nil)
	}
	l.start(p, now)

	end := now + p.RemainingBurstTime
	var executed []GanttSlot
	for t := now; t < end; t++ {
		executed = append(executed, GanttSlot{Time: t, Slot: 0, PID: p.ID})
	}
	l.gantt = append(l.gantt, executed...)

	l.complete(p, end)
	delete(l.sliceUsed, p.ID)
	l.completed = append(l.completed, p)
	l.time = end
	return l.snapshot(executed)
}

func (l *Loop) move(p *model.Process, to model.ProcessState) {
	if err := p.TransitionTo(to); err != nil {
		panic(err)
	}
}

func (l *Loop) complete(p *model.Process, t int) {
	if err := p.Complete(t); err != nil {
		panic(err)
	}
}

func (l *Loop) snapshot(executed []GanttSlot) Snapshot {
	snap := Snapshot{
		Time:      l.time,
		Processes: make([]*model.Process, len(l.all)),
		Ready:     ids(l.ready),
		Running:   ids(l.running),
		Executed:  executed,
		Done:      l.Done(),
	}
	for i, p := range l.all {
		snap.Processes[i] = p.Clone()
	}
	return snap
}

func ids(ps []*model.Process) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
