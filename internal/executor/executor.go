// Package executor runs the file tasks of a batch on a bounded worker pool.
package executor

import (
	"context"
	"path/filepath"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// Executor is a pluggable worker pool backend.
type Executor interface {
	// Mode returns the session mode this backend serves.
	Mode() model.Mode

	// Run processes every file with at most workers tasks in flight and returns
	// one result per file, in input order. Per-file failures are reported as
	// error entries; a returned error means the batch as a whole failed.
	Run(ctx context.Context, files []string, workers int) ([]model.FileResult, error)
}

// ExtractFunc analyses one file.
type ExtractFunc func(path string) (model.Extraction, error)

func errorResult(worker, file string, err error) model.FileResult {
	return model.FileResult{
		Worker:   worker,
		Filename: filepath.Base(file),
		Status:   model.TaskStatusError,
		Error:    err.Error(),
		Data:     emptyExtraction(),
	}
}

func emptyExtraction() model.Extraction {
	return model.Extraction{Names: []string{}, Dates: []string{}, Places: []string{}}
}
