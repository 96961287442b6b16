package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"storyreel/internal/ipc"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Storyreel", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Storyreel:", "[ERROR] Not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Storyreel", statusOK, "Running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestHandlerHealthLines(t *testing.T) {
	health := []ipc.HandlerHealth{
		{StepID: "generate_audio", Name: "Generate narration audio", Ready: true},
		{StepID: "generate_images", Name: "Generate scene images", Ready: false, Detail: "scheduler unavailable"},
	}
	lines := handlerHealthLines(health, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[OK] Ready") {
		t.Fatalf("expected ready line, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "[WARN] scheduler unavailable") {
		t.Fatalf("expected warn detail, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "Degraded handlers") {
		t.Fatalf("expected degraded summary, got %q", lines[2])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
