package executor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// ThreadExecutor runs file tasks on a fixed pool of goroutines inside the server process.
type ThreadExecutor struct {
	dir     string
	extract ExtractFunc
	logger  *slog.Logger
}

// NewThreadExecutor creates a ThreadExecutor reading files from dir.
func NewThreadExecutor(dir string, extract ExtractFunc, logger *slog.Logger) *ThreadExecutor {
	return &ThreadExecutor{
		dir:     dir,
		extract: extract,
		logger:  logger.With("component", "thread-executor"),
	}
}

// Mode returns model.ModeThread.
func (e *ThreadExecutor) Mode() model.Mode {
	return model.ModeThread
}

// Run starts min(workers, len(files)) goroutines and joins all of them before returning.
func (e *ThreadExecutor) Run(ctx context.Context, files []string, workers int) ([]model.FileResult, error) {
	results := make([]model.FileResult, len(files))
	if len(files) == 0 {
		return results, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.task(worker, files[i])
			}
		}(fmt.Sprintf("THREAD_%d", w))
	}

	sent := 0
feed:
	for sent < len(files) {
		select {
		case jobs <- sent:
			sent++
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		for i := sent; i < len(files); i++ {
			results[i] = errorResult("", files[i], err)
		}
		return results, err
	}
	return results, nil
}

func (e *ThreadExecutor) task(worker, file string) (res model.FileResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("task panicked", "worker", worker, "file", file, "panic", r)
			res = errorResult(worker, file, fmt.Errorf("panic: %v", r))
		}
	}()

	e.logger.Debug("task started", "worker", worker, "file", file)
	data, err := e.extract(filepath.Join(e.dir, file))
	if err != nil {
		e.logger.Warn("task failed", "worker", worker, "file", file, "error", err)
		return errorResult(worker, file, err)
	}
	e.logger.Debug("task finished", "worker", worker, "file", file, "words", data.WordCount)
	return model.FileResult{
		Worker:   worker,
		Filename: filepath.Base(file),
		Status:   model.TaskStatusSuccess,
		Data:     data,
	}
}
