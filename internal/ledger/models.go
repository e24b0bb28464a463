package ledger

import "time"

// Status is a run's lifecycle state.
type Status string

const (
	StatusRunning     Status = "running"
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// Stage results recorded in stage events.
const (
	ResultRan     = "ran"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Run is one invocation of the pipeline for a source.
type Run struct {
	ID           string
	SourcePath   string
	Identity     string
	Engine       string
	Status       Status
	SegmentCount int
	MergedCount  int
	SubtitlePath string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Stages       []StageEvent
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// StageEvent records the outcome of one stage within a run.
type StageEvent struct {
	Stage     string
	Result    string
	Detail    string
	Duration  time.Duration
	CreatedAt time.Time
}

// Outcome is what a finished run reports back.
type Outcome struct {
	SegmentCount int
	MergedCount  int
	SubtitlePath string
	Err          error
}
