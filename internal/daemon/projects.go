package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"storyreel/internal/jobs"
	"storyreel/internal/logging"
	"storyreel/internal/project"
	"storyreel/internal/services"
	"storyreel/internal/store"
	"storyreel/internal/textutil"
	"storyreel/internal/workflow"
)

var scriptFileExtensions = map[string]struct{}{
	".txt":      {},
	".md":       {},
	".markdown": {},
	".story":    {},
}

// AddProjectRequest describes a manual script submission. Empty optional
// fields fall back to configuration defaults.
type AddProjectRequest struct {
	ScriptPath string
	Title      string
	Type       project.Type
	VoiceID    string
	StyleID    string
}

// AddResult reports the outcome of a script submission. Reused is set when
// the script fingerprint matched an existing project; no new workflow is
// created in that case.
type AddResult struct {
	Project  *project.Project
	Workflow *workflow.Workflow
	Reused   bool
}

// AddProject reads a script file, creates a project for it, and starts a
// workflow. Scripts whose normalized text matches an existing project are
// not imported twice.
func (d *Daemon) AddProject(ctx context.Context, req AddProjectRequest) (*AddResult, error) {
	if d.store == nil {
		return nil, errors.New("project store unavailable")
	}
	trimmed := strings.TrimSpace(req.ScriptPath)
	if trimmed == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add project", "script path is required", nil)
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve script path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat script file: %w", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add project",
			fmt.Sprintf("script path %q is a directory", absPath), nil)
	}
	ext := strings.ToLower(filepath.Ext(info.Name()))
	if _, ok := scriptFileExtensions[ext]; !ok {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add project",
			fmt.Sprintf("unsupported script extension %q", ext), nil)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read script file: %w", err)
	}

	script := strings.TrimSpace(string(data))
	if script == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add project", "script file is empty", nil)
	}

	fingerprint := textutil.Fingerprint(script)
	existing, err := d.store.FindProjectByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "daemon", "add project", "fingerprint lookup", err)
	}
	if existing != nil {
		d.logger.Info("script already imported",
			logging.String(logging.FieldProjectID, existing.ID),
			logging.String("title", existing.Title),
			logging.String(logging.FieldEventType, "project_duplicate"),
		)
		return &AddResult{Project: existing, Reused: true}, nil
	}

	projectType := req.Type
	if projectType == "" {
		projectType = project.TypeStandard
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = inferTitle(absPath, script)
	}
	voiceID := strings.TrimSpace(req.VoiceID)
	if voiceID == "" {
		voiceID = d.cfg.Provider.VoiceID
	}
	styleID := strings.TrimSpace(req.StyleID)
	if styleID == "" {
		styleID = d.cfg.Provider.StyleID
	}

	p := &project.Project{
		Title:             title,
		Type:              projectType,
		Status:            project.StatusDraft,
		Script:            script,
		ScriptFingerprint: fingerprint,
		VoiceID:           voiceID,
		StyleID:           styleID,
	}
	if err := d.store.CreateProject(ctx, p); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "daemon", "add project", "persist project", err)
	}

	wf, err := d.manager.CreateWorkflow(ctx, p.ID, projectType)
	if err != nil {
		return nil, err
	}

	d.logger.Info("project added",
		logging.String(logging.FieldProjectID, p.ID),
		logging.String(logging.FieldWorkflowID, wf.ID),
		logging.String("title", title),
		logging.String("script", absPath),
		logging.String(logging.FieldEventType, "project_added"),
	)
	return &AddResult{Project: p, Workflow: wf}, nil
}

// inferTitle derives a project title from the script contents, preferring a
// leading markdown heading over the filename stem.
func inferTitle(path, script string) string {
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if heading := strings.TrimSpace(strings.TrimLeft(line, "#")); strings.HasPrefix(line, "#") && heading != "" {
			return heading
		}
		break
	}
	base := strings.TrimSpace(filepath.Base(path))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	if cleaned := strings.Join(strings.Fields(base), " "); cleaned != "" {
		return cleaned
	}
	return "Untitled Project"
}

// GetProject fetches a project by id.
func (d *Daemon) GetProject(ctx context.Context, id string) (*project.Project, error) {
	if d.store == nil {
		return nil, errors.New("project store unavailable")
	}
	return d.store.GetProject(ctx, id)
}

// ListWorkflows returns workflows filtered by optional statuses.
func (d *Daemon) ListWorkflows(ctx context.Context, statuses []workflow.Status) ([]*workflow.Workflow, error) {
	return d.manager.ListWorkflows(ctx, statuses...)
}

// GetWorkflow returns a single workflow with full step detail.
func (d *Daemon) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	return d.manager.GetWorkflow(ctx, id)
}

// ListJobs returns jobs filtered by optional statuses.
func (d *Daemon) ListJobs(ctx context.Context, statuses []jobs.Status) ([]*jobs.Job, error) {
	return d.scheduler.ListJobs(ctx, statuses...)
}

// CancelJob cancels one job. Returns false when the job is already terminal.
func (d *Daemon) CancelJob(ctx context.Context, jobID string) (bool, error) {
	return d.scheduler.Cancel(ctx, jobID)
}

// CancelProjectJobs cancels every non-terminal job belonging to a project.
func (d *Daemon) CancelProjectJobs(ctx context.Context, projectID string) (int, error) {
	return d.scheduler.CancelProjectJobs(ctx, projectID)
}

// StoreHealth returns detailed database diagnostics.
func (d *Daemon) StoreHealth(ctx context.Context) (store.DatabaseHealth, error) {
	if d.store == nil {
		return store.DatabaseHealth{}, errors.New("project store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
