package model

import (
	"fmt"
	"strings"
)

// Mode selects the isolation used by the worker pool for one batch.
type Mode string

const (
	ModeThread  Mode = "thread"
	ModeProcess Mode = "process"
)

// ParseMode normalizes the mode spellings clients send ("threads", "forks", ...).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "thread", "threads":
		return ModeThread, nil
	case "process", "processes", "fork", "forks":
		return ModeProcess, nil
	}
	return "", &ConfigError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", s)}
}

// SessionConfig is the per-client worker pool configuration.
type SessionConfig struct {
	Mode        Mode `json:"mode" yaml:"mode"`
	WorkerCount int  `json:"count" yaml:"count"`
}

// DefaultSessionConfig returns the configuration every new session starts with.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{Mode: ModeThread, WorkerCount: 1}
}

// Validate rejects unknown modes and non-positive worker counts.
func (c SessionConfig) Validate() error {
	if c.Mode != ModeThread && c.Mode != ModeProcess {
		return &ConfigError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", c.Mode)}
	}
	if c.WorkerCount < 1 {
		return &ConfigError{Field: "count", Message: fmt.Sprintf("worker count must be >= 1, got %d", c.WorkerCount)}
	}
	return nil
}

// SessionInfo is a read-only view of a connected session used for operator listings.
type SessionInfo struct {
	ID         int64         `json:"id"`
	RemoteAddr string        `json:"remote_addr"`
	Config     SessionConfig `json:"config"`
	Events     []string      `json:"events"`
}

// EventInfo is a read-only view of one event.
type EventInfo struct {
	Name        string  `json:"name"`
	Subscribers []int64 `json:"subscribers"`
	WaitQueue   []int64 `json:"wait_queue"`
}
