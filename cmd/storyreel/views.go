package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"storyreel/internal/ipc"
	"storyreel/internal/textutil"
)

const titleColumnWidth = 28

func buildCountRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func buildWorkflowRows(workflows []ipc.Workflow) [][]string {
	if len(workflows) == 0 {
		return nil
	}
	sorted := make([]ipc.Workflow, len(workflows))
	copy(sorted, workflows)

	sort.Slice(sorted, func(i, j int) bool {
		ti := parseListTime(sorted[i].UpdatedAt)
		tj := parseListTime(sorted[j].UpdatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})

	rows := make([][]string, 0, len(sorted))
	for _, wf := range sorted {
		title := strings.TrimSpace(wf.ProjectTitle)
		if title == "" {
			title = wf.ProjectID
		}
		step := wf.CurrentStepID
		if step == "" {
			step = "-"
		}
		rows = append(rows, []string{
			wf.ID,
			textutil.Truncate(title, titleColumnWidth),
			wf.ProjectType,
			formatStatusLabel(wf.Status),
			step,
			formatDisplayTime(wf.UpdatedAt),
		})
	}
	return rows
}

func buildJobRows(jobs []ipc.Job) [][]string {
	if len(jobs) == 0 {
		return nil
	}
	sorted := make([]ipc.Job, len(jobs))
	copy(sorted, jobs)

	sort.Slice(sorted, func(i, j int) bool {
		ti := parseListTime(sorted[i].CreatedAt)
		tj := parseListTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})

	rows := make([][]string, 0, len(sorted))
	for _, job := range sorted {
		rows = append(rows, []string{
			job.ID,
			formatKindLabel(job.Kind),
			formatStatusLabel(job.Status),
			formatJobProgress(job.Progress),
			formatDisplayTime(job.CreatedAt),
		})
	}
	return rows
}

func buildStepRows(steps []ipc.Step) [][]string {
	rows := make([][]string, 0, len(steps))
	for i, step := range steps {
		detail := strings.TrimSpace(step.Error)
		progress := ""
		if step.Progress > 0 {
			progress = fmt.Sprintf("%d%%", step.Progress)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			step.DisplayName,
			formatStatusLabel(step.Status),
			progress,
			textutil.Truncate(detail, 48),
		})
	}
	return rows
}

func formatJobProgress(progress ipc.JobProgress) string {
	if progress.Total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d (%d%%)", progress.Completed, progress.Total, progress.Percent)
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatKindLabel(kind string) string {
	return formatStatusLabel(strings.ReplaceAll(strings.TrimSpace(kind), "-", "_"))
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func parseListTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
