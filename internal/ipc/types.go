package ipc

import "storyreel/internal/api"

// Project mirrors the shared project DTO for IPC callers.
type Project = api.Project

// Workflow mirrors the shared workflow DTO for IPC callers.
type Workflow = api.Workflow

// Step mirrors the per-step workflow DTO.
type Step = api.Step

// Job mirrors the shared job DTO for IPC callers.
type Job = api.Job

// JobProgress mirrors the job progress DTO.
type JobProgress = api.JobProgress

// PipelineStatus mirrors the orchestrator diagnostics DTO.
type PipelineStatus = api.PipelineStatus

// HandlerHealth mirrors the per-step readiness DTO.
type HandlerHealth = api.HandlerHealth

// StoreHealth mirrors the database diagnostics DTO.
type StoreHealth = api.StoreHealth

// StartRequest triggers daemon pipeline startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon pipeline processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/pipeline status information.
type StatusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"database_path"`
	LockPath     string         `json:"lock_path"`
	Projects     int            `json:"projects"`
	Workflows    map[string]int `json:"workflows"`
	Jobs         map[string]int `json:"jobs"`
	Pipeline     PipelineStatus `json:"pipeline"`
}

// ProjectAddRequest imports a script file as a new project. Title, type,
// voice, and style are optional; the daemon fills in defaults.
type ProjectAddRequest struct {
	ScriptPath string `json:"script_path"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	VoiceID    string `json:"voice_id"`
	StyleID    string `json:"style_id"`
}

// ProjectAddResponse reports the created (or matched) project.
type ProjectAddResponse struct {
	Project    Project `json:"project"`
	WorkflowID string  `json:"workflow_id"`
	Reused     bool    `json:"reused"`
}

// WorkflowListRequest filters workflow listing by status.
type WorkflowListRequest struct {
	Statuses []string `json:"statuses"`
}

// WorkflowListResponse contains lean workflow entries.
type WorkflowListResponse struct {
	Workflows []Workflow `json:"workflows"`
}

// WorkflowDescribeRequest fetches a single workflow by id.
type WorkflowDescribeRequest struct {
	ID string `json:"id"`
}

// WorkflowDescribeResponse contains a workflow with full step detail.
type WorkflowDescribeResponse struct {
	Workflow Workflow `json:"workflow"`
}

// JobListRequest filters job listing by status.
type JobListRequest struct {
	Statuses []string `json:"statuses"`
}

// JobListResponse contains lean job entries.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobCancelRequest cancels a single job by id.
type JobCancelRequest struct {
	ID string `json:"id"`
}

// JobCancelResponse reports whether the job was cancelled.
type JobCancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// CancelProjectJobsRequest cancels every active job for a project.
type CancelProjectJobsRequest struct {
	ProjectID string `json:"project_id"`
}

// CancelProjectJobsResponse reports the number of cancelled jobs.
type CancelProjectJobsResponse struct {
	Cancelled int `json:"cancelled"`
}

// StoreHealthRequest fetches detailed database diagnostics.
type StoreHealthRequest struct{}

// StoreHealthResponse reports database health information.
type StoreHealthResponse struct {
	Health StoreHealth `json:"health"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
