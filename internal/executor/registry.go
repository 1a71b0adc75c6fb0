package executor

import (
	"fmt"
	"log/slog"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// Registry maps session modes to their Executor implementations.
// Registration happens at startup before concurrent access, so no mutex is needed.
type Registry struct {
	executors map[model.Mode]Executor
	logger    *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		executors: make(map[model.Mode]Executor),
		logger:    logger.With("component", "executor-registry"),
	}
}

// Register adds an Executor to the registry, keyed by its Mode().
func (r *Registry) Register(exec Executor) {
	m := exec.Mode()
	r.executors[m] = exec
	r.logger.Info("executor registered", "mode", m)
}

// Get returns the Executor for the given mode or an error if none is registered.
func (r *Registry) Get(m model.Mode) (Executor, error) {
	exec, ok := r.executors[m]
	if !ok {
		return nil, fmt.Errorf("no executor registered for mode %q", m)
	}
	return exec, nil
}
