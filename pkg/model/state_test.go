package model

import "testing"

func TestProcessState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    ProcessState
		terminal bool
	}{
		{ProcessStateNew, false},
		{ProcessStateReady, false},
		{ProcessStateRunning, false},
		{ProcessStateTerminated, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("ProcessState(%q).IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestProcessState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  ProcessState
		to    ProcessState
		valid bool
	}{
		// Valid transitions
		{ProcessStateNew, ProcessStateReady, true},
		{ProcessStateReady, ProcessStateRunning, true},
		{ProcessStateRunning, ProcessStateReady, true},
		{ProcessStateRunning, ProcessStateTerminated, true},

		// Invalid transitions
		{ProcessStateNew, ProcessStateRunning, false},
		{ProcessStateNew, ProcessStateTerminated, false},
		{ProcessStateReady, ProcessStateTerminated, false},
		{ProcessStateTerminated, ProcessStateReady, false},
		{ProcessStateTerminated, ProcessStateRunning, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("ProcessState(%q).CanTransitionTo(%q) = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"thread", ModeThread, false},
		{"threads", ModeThread, false},
		{" Threads ", ModeThread, false},
		{"process", ModeProcess, false},
		{"forks", ModeProcess, false},
		{"fibers", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSessionConfig_Validate(t *testing.T) {
	if err := DefaultSessionConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := []SessionConfig{
		{Mode: ModeThread, WorkerCount: 0},
		{Mode: ModeProcess, WorkerCount: -2},
		{Mode: "fibers", WorkerCount: 1},
	}
	for _, cfg := range bad {
		err := cfg.Validate()
		if err == nil {
			t.Errorf("Validate(%+v) = nil, want error", cfg)
			continue
		}
		if _, ok := err.(*ConfigError); !ok {
			t.Errorf("Validate(%+v) error type = %T, want *ConfigError", cfg, err)
		}
	}
}
