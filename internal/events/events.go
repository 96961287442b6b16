package events

import (
	"encoding/json"
	"time"
)

// Type names a pipeline lifecycle event.
type Type string

const (
	TypeWorkflowUpdated   Type = "workflow_updated"
	TypeWorkflowCompleted Type = "workflow_completed"
	TypeWorkflowFailed    Type = "workflow_failed"
	TypeJobAdded          Type = "job_added"
	TypeJobProgress       Type = "job_progress"
	TypeJobUpdated        Type = "job_updated"
	TypeJobCompleted      Type = "job_completed"
	TypeJobFailed         Type = "job_failed"
	TypeJobCancelled      Type = "job_cancelled"
)

// Event is a lightweight, in-memory signal used to decouple components.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop events (bounded backpressure).
//
// Data holds one of the typed payloads below.
type Event struct {
	Type Type
	Time time.Time
	Data any
}

// WorkflowEvent is the payload for workflow lifecycle events.
type WorkflowEvent struct {
	WorkflowID string
	ProjectID  string
	Status     string
	StepID     string
	Progress   int
	Error      string
}

// JobEvent is the payload for job lifecycle events.
type JobEvent struct {
	JobID     string
	ProjectID string
	Kind      string
	Status    string
	Completed int
	Total     int
	Error     string
}

// JobProgressEvent is the per-item payload emitted as a job processes its
// work units. Result is nil when the item failed; Error then carries the
// failure text.
type JobProgressEvent struct {
	JobID       string
	ProjectID   string
	ItemID      string
	SceneNumber int
	Result      json.RawMessage
	Error       string
}
