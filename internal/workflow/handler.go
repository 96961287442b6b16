package workflow

import "context"

// StepHandler describes the contract the manager needs from each pipeline
// step.
type StepHandler interface {
	Execute(context.Context, *Run) error
	HealthCheck(context.Context) Health
}

// Health summarizes the readiness of a workflow step handler.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Run is the execution context handed to a step handler. Handlers mutate
// Step (progress, result) and may checkpoint intermediate state so a daemon
// restart resumes mid-step work such as job polling.
type Run struct {
	Workflow *Workflow
	Step     *Step

	save     func(context.Context) error
	progress func(context.Context, int)
}

// NewRun builds a bare run context for invoking a handler directly, outside
// the manager. Save and ReportProgress are no-ops until hooks are attached.
func NewRun(wf *Workflow, step *Step) *Run {
	return &Run{Workflow: wf, Step: step}
}

// Save persists the workflow's current state, including any step result the
// handler has written so far.
func (r *Run) Save(ctx context.Context) error {
	if r.save == nil {
		return nil
	}
	return r.save(ctx)
}

// ReportProgress records step progress and publishes a workflow update.
// Values are clamped to 0-100 and never move backwards.
func (r *Run) ReportProgress(ctx context.Context, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent <= r.Step.Progress {
		return
	}
	r.Step.Progress = percent
	if r.progress != nil {
		r.progress(ctx, percent)
	}
}

// StepSet bundles the concrete step handlers the manager orchestrates. Nil
// fields leave their step unhandled; executing an unhandled step fails the
// workflow with a configuration error.
type StepSet struct {
	GenerateAudio       StepHandler
	ProcessAudio        StepHandler
	GenerateScenes      StepHandler
	ExtractCharacters   StepHandler
	GenerateImages      StepHandler
	GenerateThumbnail   StepHandler
	GenerateSoraPrompts StepHandler
	GenerateVideos      StepHandler
}

// ConfigureSteps registers the concrete step handlers the workflows will
// run. The create and complete steps are built into the manager.
func (m *Manager) ConfigureSteps(set StepSet) {
	handlers := make(map[string]StepHandler)
	register := func(stepID string, handler StepHandler) {
		if handler != nil {
			handlers[stepID] = handler
		}
	}
	register(StepGenerateAudio, set.GenerateAudio)
	register(StepProcessAudio, set.ProcessAudio)
	register(StepGenerateScenes, set.GenerateScenes)
	register(StepExtractCharacters, set.ExtractCharacters)
	register(StepGenerateImages, set.GenerateImages)
	register(StepGenerateThumbnail, set.GenerateThumbnail)
	register(StepGenerateSoraPrompts, set.GenerateSoraPrompts)
	register(StepGenerateVideos, set.GenerateVideos)

	m.mu.Lock()
	m.handlers = handlers
	m.mu.Unlock()
}
