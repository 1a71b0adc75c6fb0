package simulation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/internal/policy"
	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// Request describes a headless run.
type Request struct {
	Policy    string           `json:"policy" yaml:"policy"`
	Quantum   int              `json:"quantum,omitempty" yaml:"quantum"`
	Workers   int              `json:"workers" yaml:"workers"`
	Processes []*model.Process `json:"processes" yaml:"processes"`

	// MaxTicks overrides DefaultMaxTicks; set by the operator, never by clients.
	MaxTicks int `json:"-" yaml:"-"`
}

// Simulate resolves the policy, runs the processes to completion and returns the result.
// Unknown policies yield a *model.UnknownPolicyError. Processes are copied, not mutated.
func Simulate(ctx context.Context, req Request) (*Result, error) {
	p, err := policy.New(req.Policy, req.Quantum)
	if err != nil {
		return nil, err
	}
	workers := req.Workers
	if workers == 0 {
		workers = 1
	}
	loop, err := New(p, workers)
	if err != nil {
		return nil, err
	}
	loop.SetMaxTicks(req.MaxTicks)
	if err := loop.Reset(req.Processes); err != nil {
		return nil, err
	}
	return loop.Run(ctx)
}

// Record converts a result into a history entry with a fresh id.
func (r *Result) Record(quantum int) *model.SimulationRun {
	if r.Policy != "RR" {
		quantum = 0
	} else if quantum == 0 {
		quantum = policy.DefaultQuantum
	}
	return &model.SimulationRun{
		ID:                "sim_" + uuid.NewString(),
		Policy:            r.Policy,
		Quantum:           quantum,
		Workers:           r.Slots,
		Processes:         r.Processes,
		AverageWaiting:    r.Summary.AverageWaiting,
		AverageTurnaround: r.Summary.AverageTurnaround,
		Makespan:          r.Summary.Makespan,
		CreatedAt:         time.Now().UTC(),
	}
}
