package api

import (
	"encoding/json"
	"slices"
	"time"

	"storyreel/internal/jobs"
	"storyreel/internal/project"
	"storyreel/internal/store"
	"storyreel/internal/workflow"
)

// FromProject converts a project record to its API representation.
func FromProject(p *project.Project) Project {
	if p == nil {
		return Project{}
	}
	return Project{
		ID:                   p.ID,
		Title:                p.Title,
		Type:                 string(p.Type),
		Status:               string(p.Status),
		AudioURL:             p.AudioURL,
		AudioDurationSeconds: p.AudioDurationSeconds,
		ThumbnailURL:         p.ThumbnailURL,
		CharacterCount:       len(p.Characters),
		CreatedAt:            FormatTime(p.CreatedAt),
		UpdatedAt:            FormatTime(p.UpdatedAt),
	}
}

// FromProjects converts a slice of project records into API DTOs.
func FromProjects(projects []*project.Project) []Project {
	if len(projects) == 0 {
		return nil
	}
	out := make([]Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, FromProject(p))
	}
	return out
}

// FromWorkflow converts a workflow record to its API representation. Step
// detail is included only when withSteps is set; list views stay lean.
func FromWorkflow(wf *workflow.Workflow, withSteps bool) Workflow {
	if wf == nil {
		return Workflow{}
	}
	dto := Workflow{
		ID:               wf.ID,
		ProjectID:        wf.ProjectID,
		ProjectType:      wf.ProjectType,
		Status:           string(wf.Status),
		CurrentStepIndex: wf.CurrentStepIndex,
		LastError:        wf.LastError,
		CreatedAt:        FormatTime(wf.CreatedAt),
		UpdatedAt:        FormatTime(wf.UpdatedAt),
	}
	if step := wf.CurrentStep(); step != nil {
		dto.CurrentStepID = step.ID
	}
	if wf.CompletedAt != nil {
		dto.CompletedAt = FormatTime(*wf.CompletedAt)
	}
	if withSteps {
		dto.Steps = make([]Step, 0, len(wf.Steps))
		for _, step := range wf.Steps {
			dto.Steps = append(dto.Steps, Step{
				ID:          step.ID,
				DisplayName: step.DisplayName,
				Status:      string(step.Status),
				Progress:    step.Progress,
				Error:       step.Error,
				Result:      append(json.RawMessage(nil), step.Result...),
			})
		}
	}
	return dto
}

// FromWorkflows converts a slice of workflow records into lean API DTOs.
func FromWorkflows(wfs []*workflow.Workflow) []Workflow {
	if len(wfs) == 0 {
		return nil
	}
	out := make([]Workflow, 0, len(wfs))
	for _, wf := range wfs {
		out = append(out, FromWorkflow(wf, false))
	}
	return out
}

// FromJob converts a job record to its API representation. Item detail is
// included only when withItems is set.
func FromJob(job *jobs.Job, withItems bool) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:        job.ID,
		ProjectID: job.ProjectID,
		Kind:      string(job.Kind),
		Status:    string(job.Status),
		Progress: JobProgress{
			Completed: job.Progress.Completed,
			Total:     job.Progress.Total,
			Percent:   job.Progress.Percent(),
		},
		Error:     job.Error,
		CreatedAt: FormatTime(job.CreatedAt),
	}
	if job.StartedAt != nil {
		dto.StartedAt = FormatTime(*job.StartedAt)
	}
	if job.CompletedAt != nil {
		dto.CompletedAt = FormatTime(*job.CompletedAt)
	}
	if withItems {
		dto.Items = make([]JobItem, 0, len(job.Items))
		for _, item := range job.Items {
			dto.Items = append(dto.Items, JobItem{
				ID:          item.ID,
				SceneID:     item.SceneID,
				SceneNumber: item.SceneNumber,
				Done:        item.Done,
				Error:       item.Error,
				Result:      append(json.RawMessage(nil), item.Result...),
			})
		}
	}
	return dto
}

// FromJobs converts a slice of job records into lean API DTOs.
func FromJobs(list []*jobs.Job) []Job {
	if len(list) == 0 {
		return nil
	}
	out := make([]Job, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job, false))
	}
	return out
}

// FromStatusSummary converts orchestrator diagnostics to an API payload.
func FromStatusSummary(summary workflow.StatusSummary) PipelineStatus {
	stepIDs := make([]string, 0, len(summary.StepHealth))
	for id := range summary.StepHealth {
		stepIDs = append(stepIDs, id)
	}
	slices.Sort(stepIDs)

	health := make([]HandlerHealth, 0, len(stepIDs))
	for _, id := range stepIDs {
		h := summary.StepHealth[id]
		health = append(health, HandlerHealth{
			StepID: id,
			Name:   h.Name,
			Ready:  h.Ready,
			Detail: h.Detail,
		})
	}

	return PipelineStatus{
		Running:       summary.Running,
		LastError:     summary.LastError,
		HandlerHealth: health,
	}
}

// FromStoreHealth converts database diagnostics to an API payload.
func FromStoreHealth(health store.DatabaseHealth) StoreHealth {
	return StoreHealth{
		DBPath:           health.DBPath,
		DatabaseExists:   health.DatabaseExists,
		DatabaseReadable: health.DatabaseReadable,
		TablesPresent:    health.TablesPresent,
		TablesMissing:    health.TablesMissing,
		Error:            health.Error,
	}
}

// MergeStats produces string-keyed workflow and job counts for status output.
func MergeStats(stats store.Stats) (workflows, jobCounts map[string]int) {
	workflows = make(map[string]int, len(stats.Workflows))
	for status, count := range stats.Workflows {
		workflows[string(status)] = count
	}
	jobCounts = make(map[string]int, len(stats.Jobs))
	for status, count := range stats.Jobs {
		jobCounts[string(status)] = count
	}
	return workflows, jobCounts
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
