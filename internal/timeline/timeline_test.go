package timeline

import (
	"strings"
	"testing"
)

func TestValidateAcceptsContiguousPartition(t *testing.T) {
	intervals := []Interval{
		{SceneNumber: 1, StartSeconds: 0, EndSeconds: 10},
		{SceneNumber: 2, StartSeconds: 10, EndSeconds: 25},
		{SceneNumber: 3, StartSeconds: 25, EndSeconds: 60},
	}
	if err := Validate(intervals, 60); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestValidateToleratesMillisecondDrift(t *testing.T) {
	intervals := []Interval{
		{SceneNumber: 1, StartSeconds: 0.001, EndSeconds: 10},
		{SceneNumber: 2, StartSeconds: 10.002, EndSeconds: 59.998},
	}
	if err := Validate(intervals, 60); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name      string
		intervals []Interval
		total     float64
		wantIn    string
	}{
		{
			name:      "empty",
			intervals: nil,
			total:     60,
			wantIn:    "empty",
		},
		{
			name: "unsorted scene numbers",
			intervals: []Interval{
				{SceneNumber: 2, StartSeconds: 0, EndSeconds: 30},
				{SceneNumber: 1, StartSeconds: 30, EndSeconds: 60},
			},
			total:  60,
			wantIn: "not sorted",
		},
		{
			name: "late first start",
			intervals: []Interval{
				{SceneNumber: 1, StartSeconds: 2, EndSeconds: 60},
			},
			total:  60,
			wantIn: "starts at",
		},
		{
			name: "short last end",
			intervals: []Interval{
				{SceneNumber: 1, StartSeconds: 0, EndSeconds: 55},
			},
			total:  60,
			wantIn: "ends at",
		},
		{
			name: "gap between scenes",
			intervals: []Interval{
				{SceneNumber: 1, StartSeconds: 0, EndSeconds: 25},
				{SceneNumber: 2, StartSeconds: 30, EndSeconds: 60},
			},
			total:  60,
			wantIn: "misaligned",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.intervals, tt.total)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantIn)
			}
		})
	}
}

func TestIntervalDuration(t *testing.T) {
	interval := Interval{SceneNumber: 1, StartSeconds: 4.5, EndSeconds: 12}
	if got := interval.Duration(); got != 7.5 {
		t.Errorf("Duration() = %v, want 7.5", got)
	}
}
