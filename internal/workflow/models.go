package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status tracks a workflow through its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) String() string { return string(s) }

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus normalizes a raw status value.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return normalized, true
	}
	return "", false
}

// StepStatus tracks one step inside a workflow.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

func (s StepStatus) String() string { return string(s) }

// Step is one stage of a workflow. ID is the stable step key; Result is an
// opaque payload the step's handler writes for downstream steps and resume
// logic to read.
type Step struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Status      StepStatus      `json:"status"`
	Progress    int             `json:"progress"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// SetResult marshals v into the step's result payload.
func (s *Step) SetResult(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode step %s result: %w", s.ID, err)
	}
	s.Result = data
	return nil
}

// ResultField extracts a single string field from the step's result payload.
// Missing payloads and missing fields both return the empty string.
func (s *Step) ResultField(key string) string {
	if len(s.Result) == 0 {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(s.Result, &fields); err != nil {
		return ""
	}
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

// Workflow is the persisted execution state of one project's pipeline.
type Workflow struct {
	ID               string
	ProjectID        string
	ProjectType      string
	Status           Status
	CurrentStepIndex int
	Steps            []Step
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// NewWorkflow builds a workflow for the given step list with the create step
// already completed and the cursor on the first real step.
func NewWorkflow(projectID, projectType string, steps []Step) *Workflow {
	now := time.Now().UTC()
	wf := &Workflow{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		ProjectType: projectType,
		Status:      StatusPending,
		Steps:       steps,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(wf.Steps) > 0 && wf.Steps[0].ID == StepCreate {
		wf.Steps[0].Status = StepCompleted
		wf.Steps[0].Progress = 100
		if len(wf.Steps) > 1 {
			wf.CurrentStepIndex = 1
		}
	}
	return wf
}

// Terminal reports whether the workflow has finished, successfully or not.
func (w *Workflow) Terminal() bool { return w.Status.Terminal() }

// CurrentStep returns the step under the cursor, or nil when the cursor is
// out of range.
func (w *Workflow) CurrentStep() *Step {
	if w.CurrentStepIndex < 0 || w.CurrentStepIndex >= len(w.Steps) {
		return nil
	}
	return &w.Steps[w.CurrentStepIndex]
}

// StepByID returns the named step, or nil when the workflow does not carry
// it.
func (w *Workflow) StepByID(id string) *Step {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i]
		}
	}
	return nil
}

// NormalizeForResume rewinds transient state after a crash: steps caught
// mid-flight go back to pending so execution re-runs them from the cursor.
// Completed and failed steps are untouched.
func (w *Workflow) NormalizeForResume() {
	for i := range w.Steps {
		if w.Steps[i].Status == StepProcessing {
			w.Steps[i].Status = StepPending
			w.Steps[i].Progress = 0
		}
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	dup := *w
	dup.Steps = make([]Step, len(w.Steps))
	copy(dup.Steps, w.Steps)
	for i := range dup.Steps {
		if len(w.Steps[i].Result) > 0 {
			dup.Steps[i].Result = append(json.RawMessage(nil), w.Steps[i].Result...)
		}
	}
	if w.CompletedAt != nil {
		t := *w.CompletedAt
		dup.CompletedAt = &t
	}
	return &dup
}

// EncodeSteps serializes the step list for storage.
func EncodeSteps(steps []Step) (string, error) {
	data, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("encode workflow steps: %w", err)
	}
	return string(data), nil
}

// DecodeSteps restores a step list from its stored form.
func DecodeSteps(raw string) ([]Step, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var steps []Step
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, fmt.Errorf("decode workflow steps: %w", err)
	}
	return steps, nil
}
