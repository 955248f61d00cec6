package engine

import "time"

// Status is the lifecycle state of a run or of a single step.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	// StatusSkipped marks steps that never executed because an earlier step
	// failed. Fail-fast ordering is part of the run contract.
	StatusSkipped Status = "skipped"
)

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
)

// StepResult records the outcome of one step within a run.
type StepResult struct {
	Name       string
	Kind       string
	Status     Status
	StartedAt  time.Time
	FinishedAt time.Time
	Output     map[string]any
	Error      string
}

// RunRecord is the persisted record of a single pipeline run. A failed run's
// record carries the failing step's error; this is the runner's entire
// user-visible failure surface.
type RunRecord struct {
	ID           string
	Pipeline     string
	Trigger      Trigger
	Status       Status
	StartedAt    time.Time
	FinishedAt   time.Time
	DigestBefore string
	DigestAfter  string
	Steps        []StepResult
	Error        string
}

// DataChanged reports whether the data directory's content digest moved
// during the run.
func (r *RunRecord) DataChanged() bool {
	return r.DigestBefore != r.DigestAfter
}

// FailedStep returns the name of the step that failed the run, or "".
func (r *RunRecord) FailedStep() string {
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			return s.Name
		}
	}
	return ""
}
