package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// ExtractCommand is the hidden server subcommand that analyses one file in a child process.
const ExtractCommand = "extract"

// SelfCommand returns the argv prefix that re-executes the running binary in extract mode.
func SelfCommand() ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return []string{exe, ExtractCommand}, nil
}

// ProcessExecutor runs every file task in its own OS process. The child receives the
// file path as its last argument and writes a JSON model.Extraction to stdout.
type ProcessExecutor struct {
	command []string
	dir     string
	logger  *slog.Logger

	// Env is appended to the parent environment for every child.
	Env []string
}

// NewProcessExecutor creates a ProcessExecutor that launches command for each file in dir.
func NewProcessExecutor(command []string, dir string, logger *slog.Logger) *ProcessExecutor {
	return &ProcessExecutor{
		command: command,
		dir:     dir,
		logger:  logger.With("component", "process-executor"),
	}
}

// Mode returns model.ModeProcess.
func (e *ProcessExecutor) Mode() model.Mode {
	return model.ModeProcess
}

// Run launches one child per file with at most workers alive at a time.
func (e *ProcessExecutor) Run(ctx context.Context, files []string, workers int) ([]model.FileResult, error) {
	if len(e.command) == 0 {
		return nil, fmt.Errorf("process executor: no command configured")
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]model.FileResult, len(files))
	// One token per live child.
	children := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, file := range files {
		if !acquire(ctx, children) {
			results[i] = errorResult("", file, ctx.Err())
			continue
		}
		wg.Add(1)
		go func(i int, file string) {
			defer wg.Done()
			defer func() { <-children }()
			results[i] = e.task(ctx, file)
		}(i, file)
	}
	wg.Wait()
	return results, ctx.Err()
}

// acquire takes a child slot, giving up once ctx is done.
func acquire(ctx context.Context, slots chan<- struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *ProcessExecutor) task(ctx context.Context, file string) model.FileResult {
	path := filepath.Join(e.dir, file)
	args := append(append([]string{}, e.command[1:]...), path)
	cmd := exec.CommandContext(ctx, e.command[0], args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()

	worker := "PROCESS_?"
	if cmd.Process != nil {
		worker = fmt.Sprintf("PROCESS_%d", cmd.Process.Pid)
	}

	switch err := runErr.(type) {
	case nil:
	case *exec.ExitError:
		msg := strings.TrimSpace(stderrBuf.String())
		if msg == "" {
			msg = err.Error()
		}
		e.logger.Warn("child failed", "worker", worker, "file", file, "exit_code", err.ExitCode(), "stderr", msg)
		return errorResult(worker, file, fmt.Errorf("exit code %d: %s", err.ExitCode(), msg))
	default:
		// Non-exit errors (e.g. binary not found) stay per-file.
		e.logger.Error("start child", "file", file, "error", runErr)
		return errorResult(worker, file, fmt.Errorf("run extract: %w", runErr))
	}

	var data model.Extraction
	if err := json.Unmarshal(stdoutBuf.Bytes(), &data); err != nil {
		return errorResult(worker, file, fmt.Errorf("decode child output: %w", err))
	}
	e.logger.Debug("child finished", "worker", worker, "file", file, "words", data.WordCount)
	return model.FileResult{
		Worker:   worker,
		Filename: filepath.Base(file),
		Status:   model.TaskStatusSuccess,
		Data:     data,
	}
}

// ServeExtract is the child side of ProcessExecutor: it analyses path and writes
// the JSON result to w.
func ServeExtract(w io.Writer, path string, extract ExtractFunc) error {
	data, err := extract(path)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(data)
}
