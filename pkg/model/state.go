package model

// ProcessState represents the lifecycle state of a simulated Process.
type ProcessState string

const (
	ProcessStateNew        ProcessState = "New"
	ProcessStateReady      ProcessState = "Ready"
	ProcessStateRunning    ProcessState = "Running"
	ProcessStateTerminated ProcessState = "Terminated"
)

// String returns the string representation of the process state.
func (s ProcessState) String() string {
	return string(s)
}

// IsTerminal returns true if the process is in its final state.
func (s ProcessState) IsTerminal() bool {
	return s == ProcessStateTerminated
}

// ValidProcessTransitions defines the allowed state transitions for Processes.
// New never goes straight to Running: admission to Ready always comes first.
var ValidProcessTransitions = map[ProcessState][]ProcessState{
	ProcessStateNew:     {ProcessStateReady},
	ProcessStateReady:   {ProcessStateRunning},
	ProcessStateRunning: {ProcessStateReady, ProcessStateTerminated},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s ProcessState) CanTransitionTo(next ProcessState) bool {
	for _, allowed := range ValidProcessTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// BatchStatus is the outcome reported for a whole batch.
type BatchStatus string

const (
	BatchStatusSuccess BatchStatus = "success"
	BatchStatusFailure BatchStatus = "failure"
)

// TaskStatus is the outcome reported for a single file task.
type TaskStatus string

const (
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusError   TaskStatus = "error"
)
