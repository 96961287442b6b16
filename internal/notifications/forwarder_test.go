package notifications_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"storyreel/internal/events"
	"storyreel/internal/logging"
	"storyreel/internal/notifications"
	"storyreel/internal/testsupport"
)

func TestForwarderDeliversEnabledEvents(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL))
	st := testsupport.MustOpenStore(t, cfg)
	proj := testsupport.NewProject(t, st, "Harbor Lights", "One. Two.")

	svc := notifications.NewService(cfg)
	forwarder := notifications.NewForwarder(cfg, st, svc, logging.NewNop())

	bus := events.New()
	forwarder.Start(bus)
	bus.Publish(events.Event{
		Type: events.TypeWorkflowCompleted,
		Data: events.WorkflowEvent{ProjectID: proj.ID, Status: "completed"},
	})
	bus.Publish(events.Event{
		Type: events.TypeJobFailed,
		Data: events.JobEvent{ProjectID: proj.ID, Kind: "video-generation", Error: "backend down"},
	})
	forwarder.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 {
		t.Fatalf("expected 2 notifications, got %d: %v", len(bodies), bodies)
	}
	if !strings.Contains(bodies[0], "Harbor Lights") {
		t.Fatalf("expected the project title in %q", bodies[0])
	}
	if !strings.Contains(bodies[1], "backend down") {
		t.Fatalf("expected the job error in %q", bodies[1])
	}
}

func TestForwarderHonorsToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected notification: %s", r.URL)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL))
	cfg.Notifications.WorkflowCompleted = false
	cfg.Notifications.WorkflowFailed = false
	cfg.Notifications.JobFailed = false
	st := testsupport.MustOpenStore(t, cfg)

	svc := notifications.NewService(cfg)
	forwarder := notifications.NewForwarder(cfg, st, svc, logging.NewNop())

	bus := events.New()
	forwarder.Start(bus)
	bus.Publish(events.Event{Type: events.TypeWorkflowCompleted, Data: events.WorkflowEvent{ProjectID: "p1"}})
	bus.Publish(events.Event{Type: events.TypeWorkflowFailed, Data: events.WorkflowEvent{ProjectID: "p1"}})
	bus.Publish(events.Event{Type: events.TypeJobFailed, Data: events.JobEvent{ProjectID: "p1"}})
	forwarder.Stop()
}

func TestForwarderIgnoresUnrelatedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected notification: %s", r.URL)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithNtfyTopic(server.URL))
	st := testsupport.MustOpenStore(t, cfg)

	svc := notifications.NewService(cfg)
	forwarder := notifications.NewForwarder(cfg, st, svc, logging.NewNop())

	bus := events.New()
	forwarder.Start(bus)
	bus.Publish(events.Event{Type: events.TypeJobProgress, Data: events.JobProgressEvent{JobID: "j1"}})
	bus.Publish(events.Event{Type: events.TypeWorkflowUpdated, Data: events.WorkflowEvent{ProjectID: "p1"}})
	forwarder.Stop()
}
