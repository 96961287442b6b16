package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Project describes a project in a transport-friendly format.
type Project struct {
	ID                   string  `json:"id"`
	Title                string  `json:"title"`
	Type                 string  `json:"type"`
	Status               string  `json:"status"`
	AudioURL             string  `json:"audioUrl,omitempty"`
	AudioDurationSeconds float64 `json:"audioDurationSeconds,omitempty"`
	ThumbnailURL         string  `json:"thumbnailUrl,omitempty"`
	CharacterCount       int     `json:"characterCount,omitempty"`
	CreatedAt            string  `json:"createdAt,omitempty"`
	UpdatedAt            string  `json:"updatedAt,omitempty"`
}

// Step describes one workflow step.
type Step struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// Workflow describes a pipeline run over a project.
type Workflow struct {
	ID               string `json:"id"`
	ProjectID        string `json:"projectId"`
	ProjectTitle     string `json:"projectTitle,omitempty"`
	ProjectType      string `json:"projectType"`
	Status           string `json:"status"`
	CurrentStepIndex int    `json:"currentStepIndex"`
	CurrentStepID    string `json:"currentStepId,omitempty"`
	Steps            []Step `json:"steps,omitempty"`
	LastError        string `json:"lastError,omitempty"`
	CreatedAt        string `json:"createdAt,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
	CompletedAt      string `json:"completedAt,omitempty"`
}

// JobProgress captures a job's completed/total counters.
type JobProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

// JobItem describes one work unit inside a job.
type JobItem struct {
	ID          string          `json:"id"`
	SceneID     string          `json:"sceneId"`
	SceneNumber int             `json:"sceneNumber"`
	Done        bool            `json:"done"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// Job describes a scheduled generation job.
type Job struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"projectId"`
	Kind        string      `json:"kind"`
	Status      string      `json:"status"`
	Progress    JobProgress `json:"progress"`
	Error       string      `json:"error,omitempty"`
	Items       []JobItem   `json:"items,omitempty"`
	CreatedAt   string      `json:"createdAt,omitempty"`
	StartedAt   string      `json:"startedAt,omitempty"`
	CompletedAt string      `json:"completedAt,omitempty"`
}

// HandlerHealth mirrors readiness reporting for step handlers.
type HandlerHealth struct {
	StepID string `json:"stepId"`
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// PipelineStatus summarizes orchestrator state.
type PipelineStatus struct {
	Running       bool            `json:"running"`
	LastError     string          `json:"lastError,omitempty"`
	HandlerHealth []HandlerHealth `json:"handlerHealth"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	Projects     int            `json:"projects"`
	Workflows    map[string]int `json:"workflows"`
	Jobs         map[string]int `json:"jobs"`
	Pipeline     PipelineStatus `json:"pipeline"`
}

// StoreHealth reports database diagnostics.
type StoreHealth struct {
	DBPath           string   `json:"dbPath"`
	DatabaseExists   bool     `json:"databaseExists"`
	DatabaseReadable bool     `json:"databaseReadable"`
	TablesPresent    []string `json:"tablesPresent,omitempty"`
	TablesMissing    []string `json:"tablesMissing,omitempty"`
	Error            string   `json:"error,omitempty"`
}
