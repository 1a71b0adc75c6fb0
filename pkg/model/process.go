package model

import (
	"fmt"
	"strconv"
)

// Process is one schedulable unit of simulated work, usually tied to a text file.
// A Process is owned by exactly one simulation run.
type Process struct {
	ID                 int          `json:"id" yaml:"id"`
	Label              string       `json:"label" yaml:"label"`
	ArrivalTime        int          `json:"arrival_time" yaml:"arrival_time"`
	BurstTime          int          `json:"burst_time" yaml:"burst_time"`
	RemainingBurstTime int          `json:"remaining_burst_time" yaml:"-"`
	Priority           int          `json:"priority" yaml:"priority"`
	StartTime          int          `json:"start_time" yaml:"-"`
	CompletionTime     int          `json:"completion_time" yaml:"-"`
	WaitingTime        int          `json:"waiting_time" yaml:"-"`
	TurnaroundTime     int          `json:"turnaround_time" yaml:"-"`
	State              ProcessState `json:"state" yaml:"-"`

	TurnaroundFormula string `json:"turnaround_formula,omitempty" yaml:"-"`
	WaitingFormula    string `json:"waiting_formula,omitempty" yaml:"-"`
}

// NewProcess creates a Process in the New state with unset timing fields.
func NewProcess(id int, label string, arrival, burst, priority int) *Process {
	p := &Process{
		ID:          id,
		Label:       label,
		ArrivalTime: arrival,
		BurstTime:   burst,
		Priority:    priority,
	}
	p.Reset()
	return p
}

// Reset restores the mutable fields so the process can take part in a fresh run.
func (p *Process) Reset() {
	p.RemainingBurstTime = p.BurstTime
	p.StartTime = -1
	p.CompletionTime = -1
	p.WaitingTime = 0
	p.TurnaroundTime = 0
	p.State = ProcessStateNew
	p.TurnaroundFormula = ""
	p.WaitingFormula = ""
}

// Validate reports the first parameter that cannot be simulated.
func (p *Process) Validate() error {
	if p.BurstTime < 1 {
		return NewValidationError(fmt.Sprintf("burst time for %q must be positive", p.display()),
			FieldError{Field: "burst_time", Message: "must be >= 1"})
	}
	if p.ArrivalTime < 0 {
		return NewValidationError(fmt.Sprintf("arrival time for %q must not be negative", p.display()),
			FieldError{Field: "arrival_time", Message: "must be >= 0"})
	}
	return nil
}

// TransitionTo moves the process to next, rejecting moves the lifecycle does not allow.
func (p *Process) TransitionTo(next ProcessState) error {
	if !p.State.CanTransitionTo(next) {
		return &InvalidTransitionError{
			Entity: "process",
			ID:     strconv.Itoa(p.ID),
			From:   p.State.String(),
			To:     next.String(),
		}
	}
	p.State = next
	return nil
}

// Complete moves a running process to Terminated at time t and derives its metrics.
// A process that is not Running is left untouched.
func (p *Process) Complete(t int) error {
	if err := p.TransitionTo(ProcessStateTerminated); err != nil {
		return err
	}
	p.RemainingBurstTime = 0
	p.CompletionTime = t
	p.TurnaroundTime = p.CompletionTime - p.ArrivalTime
	p.WaitingTime = p.TurnaroundTime - p.BurstTime
	p.TurnaroundFormula = fmt.Sprintf("%d - %d = %d", p.CompletionTime, p.ArrivalTime, p.TurnaroundTime)
	p.WaitingFormula = fmt.Sprintf("%d - %d = %d", p.TurnaroundTime, p.BurstTime, p.WaitingTime)
	return nil
}

// Clone returns an independent copy.
func (p *Process) Clone() *Process {
	c := *p
	return &c
}

func (p *Process) display() string {
	if p.Label != "" {
		return p.Label
	}
	return fmt.Sprintf("P%d", p.ID)
}

// String implements fmt.Stringer.
func (p *Process) String() string {
	return fmt.Sprintf("PID: %d, File: %s, Arrival: %d, Burst: %d, Remaining: %d, State: %s",
		p.ID, p.Label, p.ArrivalTime, p.BurstTime, p.RemainingBurstTime, p.State)
}
