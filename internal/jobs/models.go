package jobs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the work a job performs. The set is closed; persisted rows
// with an unrecognized kind are rejected at decode time rather than guessed
// at.
type Kind string

const (
	KindImageGeneration          Kind = "image-generation"
	KindCharacterImageGeneration Kind = "character-aware-image-generation"
	KindVideoGeneration          Kind = "video-generation"
)

// ParseKind validates a raw kind string from the store or the IPC surface.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.TrimSpace(raw)) {
	case KindImageGeneration:
		return KindImageGeneration, nil
	case KindCharacterImageGeneration:
		return KindCharacterImageGeneration, nil
	case KindVideoGeneration:
		return KindVideoGeneration, nil
	default:
		return "", fmt.Errorf("unknown job kind %q", raw)
	}
}

func (k Kind) String() string { return string(k) }

// Sequential reports whether items of this kind must run one at a time in
// scene order instead of in concurrent batches.
func (k Kind) Sequential() bool { return k == KindCharacterImageGeneration }

// Status tracks a job through its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) String() string { return string(s) }

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus normalizes a raw status value.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return normalized, true
	}
	return "", false
}

// CancelledMessage is the error recorded on jobs cancelled by an operator.
const CancelledMessage = "Cancelled by user"

// Item is one unit of work inside a job. Identity fields are fixed at
// enqueue time; outcome fields are written exactly once when the item is
// processed and survive restarts so a resumed job skips finished work.
type Item struct {
	ID          string          `json:"id"`
	SceneID     string          `json:"scene_id"`
	SceneNumber int             `json:"scene_number"`
	Done        bool            `json:"done,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Progress is a monotone completed/total counter. Completed counts processed
// items whether they succeeded or failed and freezes once the job is
// terminal.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Percent maps progress onto 0-100 for display and step translation.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	pct := p.Completed * 100 / p.Total
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Job is a unit of scheduled generation work owned by a single project.
type Job struct {
	ID          string
	ProjectID   string
	Kind        Kind
	Payload     Payload
	Items       []Item
	Status      Status
	Progress    Progress
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewJob builds a pending job. Items are ordered by scene number so batched
// and sequential processing both walk scenes front to back.
func NewJob(projectID string, payload Payload, items []Item) *Job {
	ordered := make([]Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SceneNumber < ordered[j].SceneNumber
	})
	for i := range ordered {
		if ordered[i].ID == "" {
			ordered[i].ID = uuid.NewString()
		}
	}
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Kind:      payload.Kind(),
		Payload:   payload,
		Items:     ordered,
		Status:    StatusPending,
		Progress:  Progress{Completed: 0, Total: len(ordered)},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Terminal reports whether the job has finished, successfully or not.
func (j *Job) Terminal() bool { return j.Status.Terminal() }

// PendingItems returns the items that still need processing, preserving
// scene order.
func (j *Job) PendingItems() []Item {
	var pending []Item
	for _, item := range j.Items {
		if !item.Done {
			pending = append(pending, item)
		}
	}
	return pending
}

// FailedItems returns the items whose outcome was an error.
func (j *Job) FailedItems() []Item {
	var failed []Item
	for _, item := range j.Items {
		if item.Done && item.Error != "" {
			failed = append(failed, item)
		}
	}
	return failed
}

// Clone returns a deep copy safe to hand to other goroutines.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	dup := *j
	dup.Items = make([]Item, len(j.Items))
	copy(dup.Items, j.Items)
	for i := range dup.Items {
		if len(j.Items[i].Result) > 0 {
			dup.Items[i].Result = append(json.RawMessage(nil), j.Items[i].Result...)
		}
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		dup.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		dup.CompletedAt = &t
	}
	return &dup
}

// EncodeItems serializes items for storage.
func EncodeItems(items []Item) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode job items: %w", err)
	}
	return string(data), nil
}

// DecodeItems restores items from their stored form.
func DecodeItems(raw string) ([]Item, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode job items: %w", err)
	}
	return items, nil
}
