package hub

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// Notification messages sent when a trigger leaves a session without work.
const (
	MsgNoFilesToProcess = "No files to process."
	MsgNoFilesAssigned  = "No files assigned for this trigger."
	MsgNoFilesProvided  = "No files provided."
)

// DirectEvent names batches submitted with PROCESS_FILES without an event.
const DirectEvent = "direct"

// Enqueuer accepts batches for serialized execution.
type Enqueuer interface {
	Enqueue(b model.Batch)
}

// Hub connects the registry to the file pool and the batch queue.
type Hub struct {
	registry *Registry
	queue    Enqueuer
	textDir  string
	logger   *slog.Logger
}

// New creates a Hub that partitions the *.txt files found in textDir.
func New(reg *Registry, queue Enqueuer, textDir string, logger *slog.Logger) *Hub {
	return &Hub{
		registry: reg,
		queue:    queue,
		textDir:  textDir,
		logger:   logger.With("component", "hub"),
	}
}

// Registry returns the underlying registry.
func (h *Hub) Registry() *Registry { return h.registry }

// TextDir returns the directory holding the file pool.
func (h *Hub) TextDir() string { return h.textDir }

// Trigger fires an event: the file pool is partitioned across the sessions waiting
// on it, one batch per non-empty share is queued, and sessions left without work
// are told so immediately.
func (h *Hub) Trigger(name string) (TriggerPlan, error) {
	files, err := ListTextFiles(h.textDir)
	if err != nil {
		return TriggerPlan{Event: name}, fmt.Errorf("trigger %q: %w", name, err)
	}

	plan, err := h.registry.Trigger(name, files)
	if err != nil {
		return plan, err
	}
	for _, id := range plan.Skipped {
		h.logger.Info("skipping disconnected session", "event", name, "session_id", id)
	}
	if plan.Sessions() == 0 {
		h.logger.Info("no sessions waiting", "event", name)
		return plan, nil
	}

	msg := MsgNoFilesAssigned
	if plan.NoFiles {
		msg = MsgNoFilesToProcess
		h.logger.Warn("file pool is empty", "event", name, "dir", h.textDir)
	}
	for _, id := range plan.Empty {
		h.notifyEmpty(id, name, msg)
	}
	for _, b := range plan.Batches {
		h.queue.Enqueue(b)
	}

	h.logger.Info("event triggered",
		"event", name,
		"files", len(files),
		"batches", len(plan.Batches),
		"empty", len(plan.Empty),
	)
	return plan, nil
}

// ProcessFiles queues a direct batch for one session using its current config.
// Names are resolved inside the text directory; names that do not exist are dropped.
func (h *Hub) ProcessFiles(sessionID int64, eventName string, names []string) error {
	if eventName == "" {
		eventName = DirectEvent
	}
	_, cfg, ok := h.registry.Lookup(sessionID)
	if !ok {
		return fmt.Errorf("process files for session %d: %w", sessionID, ErrSessionNotFound)
	}

	files := h.resolve(names)
	if len(files) == 0 {
		h.notifyEmpty(sessionID, eventName, MsgNoFilesProvided)
		return nil
	}

	h.queue.Enqueue(model.Batch{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Files:     files,
		Event:     eventName,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	})
	h.logger.Info("direct batch queued", "session_id", sessionID, "event", eventName, "files", len(files))
	return nil
}

func (h *Hub) resolve(names []string) []string {
	var out []string
	for _, name := range names {
		if name == "" || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
			h.logger.Warn("rejecting file name", "file", name)
			continue
		}
		info, err := os.Stat(filepath.Join(h.textDir, name))
		if err != nil || !info.Mode().IsRegular() {
			h.logger.Debug("dropping missing file", "file", name)
			continue
		}
		out = append(out, name)
	}
	return out
}

func (h *Hub) notifyEmpty(id int64, eventName, message string) {
	sender, _, ok := h.registry.Lookup(id)
	if !ok {
		return
	}
	msg, err := model.NewMessage(model.MsgProcessingComplete, model.ProcessingCompletePayload{
		Event:   eventName,
		Status:  model.BatchStatusSuccess,
		Results: []model.FileResult{},
		Message: message,
	})
	if err != nil {
		h.logger.Error("encode notification", "error", err)
		return
	}
	if err := sender.Send(msg); err != nil {
		h.logger.Warn("notify session", "session_id", id, "error", err)
	}
}

// ListTextFiles returns the names of regular *.txt files in dir, sorted.
// A missing directory yields an empty pool.
func ListTextFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list text files: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}
