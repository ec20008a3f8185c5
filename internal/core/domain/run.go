package domain

import "time"

// RunStatus is the lifecycle state of a recorded research run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunRecord is the persisted history entry for one research run.
type RunRecord struct {
	ID           string
	Task         string
	Status       RunStatus
	Provider     string
	Model        string
	SubQuestions int
	WebSources   int
	LocalSources int
	ReportID     string
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration returns how long the run took, or zero if it has not finished.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
