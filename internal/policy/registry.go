package policy

import (
	"strings"

	"github.com/maugonzalezv/OS-Scheduler-ClientServer/pkg/model"
)

// DefaultQuantum is used for Round Robin when the caller does not supply one.
const DefaultQuantum = 2

// Names lists the canonical policy names accepted by New.
var Names = []string{"FCFS", "SJF", "SRTF", "RR", "HRRN", "PRIORITY"}

// New resolves a policy by name (case-insensitive). quantum only applies to RR;
// a zero quantum selects DefaultQuantum. Unknown names are an error, never a fallback.
func New(name string, quantum int) (Policy, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "FCFS", "FIFO":
		return FCFS{}, nil
	case "SJF":
		return SJF{}, nil
	case "SRTF":
		return SRTF{}, nil
	case "RR", "ROUND_ROBIN", "ROUNDROBIN":
		if quantum == 0 {
			quantum = DefaultQuantum
		}
		return NewRoundRobin(quantum)
	case "HRRN":
		return HRRN{}, nil
	case "PRIORITY", "PRIORITY_NP":
		return Priority{}, nil
	}
	return nil, &model.UnknownPolicyError{Name: name, Known: Names}
}
