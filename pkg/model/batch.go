package model

import "time"

// Batch is one session's share of files for one triggered event.
// It is immutable once enqueued and consumed exactly once by the dispatcher.
type Batch struct {
	ID        string        `json:"id"`
	SessionID int64         `json:"session_id"`
	Files     []string      `json:"files"`
	Event     string        `json:"event"`
	Config    SessionConfig `json:"config"`
	CreatedAt time.Time     `json:"created_at"`
}

// Extraction is the data pulled out of one text file.
type Extraction struct {
	Names     []string `json:"names"`
	Dates     []string `json:"dates"`
	Places    []string `json:"places"`
	WordCount int      `json:"word_count"`
}

// FileResult is the outcome of one file task inside a batch.
type FileResult struct {
	Worker   string     `json:"pid_server"`
	Filename string     `json:"filename"`
	Status   TaskStatus `json:"status"`
	Error    string     `json:"error"`
	Data     Extraction `json:"data"`
}

// Failed reports whether the task produced an error entry.
func (r FileResult) Failed() bool {
	return r.Status != TaskStatusSuccess
}

// BatchResult is the aggregated outcome of a batch, as delivered and as recorded.
type BatchResult struct {
	BatchID   string        `json:"batch_id"`
	SessionID int64         `json:"session_id"`
	Event     string        `json:"event"`
	Files     []string      `json:"files"`
	Config    SessionConfig `json:"config"`
	Status    BatchStatus   `json:"status"`
	Message   string        `json:"message,omitempty"`
	Results   []FileResult  `json:"results"`
	Delivered bool          `json:"delivered"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Errors returns the number of failed file tasks.
func (r *BatchResult) Errors() int {
	n := 0
	for _, fr := range r.Results {
		if fr.Failed() {
			n++
		}
	}
	return n
}

// SimulationRun records a completed headless simulation.
type SimulationRun struct {
	ID                string     `json:"id"`
	Policy            string     `json:"policy"`
	Quantum           int        `json:"quantum,omitempty"`
	Workers           int        `json:"workers"`
	Processes         []*Process `json:"processes"`
	AverageWaiting    float64    `json:"average_waiting"`
	AverageTurnaround float64    `json:"average_turnaround"`
	Makespan          int        `json:"makespan"`
	CreatedAt         time.Time  `json:"created_at"`
}
