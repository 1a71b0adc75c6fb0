// Package store keeps the outcome history of batches and simulation runs.
// Live session and event state is never persisted.
package store

import (
	"context"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// Store defines the persistence layer for batch and simulation outcomes.
type Store interface {
	// Batch history
	RecordBatch(ctx context.Context, res *model.BatchResult) error
	GetBatch(ctx context.Context, id string) (*model.BatchResult, error)
	ListBatches(ctx context.Context, opts model.ListOptions) ([]*model.BatchResult, int, error)

	// Simulation history
	RecordSimulation(ctx context.Context, run *model.SimulationRun) error
	GetSimulation(ctx context.Context, id string) (*model.SimulationRun, error)
	ListSimulations(ctx context.Context, opts model.ListOptions) ([]*model.SimulationRun, int, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
