package notifications

import (
	"context"
	"time"

	"log/slog"

	"storyreel/internal/config"
	"storyreel/internal/events"
	"storyreel/internal/logging"
	"storyreel/internal/store"
)

const lookupTimeout = 5 * time.Second

// Forwarder translates bus events into notifications, honoring the per-event
// toggles in the notifications config section. It resolves project titles
// best-effort; a project that cannot be loaded is reported by id.
type Forwarder struct {
	cfg     *config.Config
	store   *store.Store
	service Service
	logger  *slog.Logger

	unsubscribe func()
	done        chan struct{}
}

// NewForwarder builds a forwarder. Start must be called to begin delivery.
func NewForwarder(cfg *config.Config, st *store.Store, svc Service, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		cfg:     cfg,
		store:   st,
		service: svc,
		logger:  logging.NewComponentLogger(logger, "notifications"),
	}
}

// Start subscribes to the bus and delivers notifications until Stop.
func (f *Forwarder) Start(bus events.Bus) {
	if f == nil || bus == nil {
		return
	}
	ch, unsubscribe := bus.Subscribe(64)
	f.unsubscribe = unsubscribe
	f.done = make(chan struct{})
	go func() {
		defer close(f.done)
		for e := range ch {
			f.handle(e)
		}
	}()
}

// Stop unsubscribes and waits for in-flight deliveries to finish.
func (f *Forwarder) Stop() {
	if f == nil || f.unsubscribe == nil {
		return
	}
	f.unsubscribe()
	<-f.done
}

func (f *Forwarder) handle(e events.Event) {
	switch e.Type {
	case events.TypeWorkflowCompleted:
		if !f.cfg.Notifications.WorkflowCompleted {
			return
		}
		data, ok := e.Data.(events.WorkflowEvent)
		if !ok {
			return
		}
		f.deliver(e.Type, func(ctx context.Context) error {
			return f.service.NotifyWorkflowCompleted(ctx, f.projectTitle(ctx, data.ProjectID))
		})
	case events.TypeWorkflowFailed:
		if !f.cfg.Notifications.WorkflowFailed {
			return
		}
		data, ok := e.Data.(events.WorkflowEvent)
		if !ok {
			return
		}
		f.deliver(e.Type, func(ctx context.Context) error {
			return f.service.NotifyWorkflowFailed(ctx, f.projectTitle(ctx, data.ProjectID), data.StepID, data.Error)
		})
	case events.TypeJobFailed:
		if !f.cfg.Notifications.JobFailed {
			return
		}
		data, ok := e.Data.(events.JobEvent)
		if !ok {
			return
		}
		f.deliver(e.Type, func(ctx context.Context) error {
			return f.service.NotifyJobFailed(ctx, data.Kind, f.projectTitle(ctx, data.ProjectID), data.Error)
		})
	}
}

func (f *Forwarder) deliver(eventType events.Type, send func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	if err := send(ctx); err != nil {
		f.logger.Warn("notification delivery failed",
			logging.String(logging.FieldEventType, string(eventType)),
			logging.Error(err),
		)
	}
}

func (f *Forwarder) projectTitle(ctx context.Context, projectID string) string {
	if f.store == nil || projectID == "" {
		return projectID
	}
	proj, err := f.store.GetProject(ctx, projectID)
	if err != nil || proj == nil {
		return projectID
	}
	return proj.Title
}
