package jobs

import (
	"encoding/json"
	"fmt"

	"storyreel/internal/project"
)

// Payload carries the kind-specific parameters of a job. Implementations are
// the only valid kinds; decoding dispatches on the stored kind string and
// fails closed on anything else.
type Payload interface {
	Kind() Kind
}

// ImagePayload parameterizes plain per-scene image generation.
type ImagePayload struct {
	StyleID string `json:"style_id,omitempty"`
	Force   bool   `json:"force,omitempty"`
}

func (ImagePayload) Kind() Kind { return KindImageGeneration }

// CharacterImagePayload parameterizes character-aware image generation. The
// character roster is snapshotted at enqueue time so a later edit to the
// project cannot change a running job's inputs.
type CharacterImagePayload struct {
	StyleID    string              `json:"style_id,omitempty"`
	Characters []project.Character `json:"characters,omitempty"`
	Force      bool                `json:"force,omitempty"`
}

func (CharacterImagePayload) Kind() Kind { return KindCharacterImageGeneration }

// VideoPayload parameterizes per-scene video generation.
type VideoPayload struct {
	StyleID string `json:"style_id,omitempty"`
	Force   bool   `json:"force,omitempty"`
}

func (VideoPayload) Kind() Kind { return KindVideoGeneration }

// EncodePayload serializes a payload for storage. The kind is stored in its
// own column, so only the parameter body is encoded here.
func EncodePayload(payload Payload) (string, error) {
	if payload == nil {
		return "", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", payload.Kind(), err)
	}
	return string(data), nil
}

// DecodePayload restores a payload from its stored form, dispatching on the
// persisted kind.
func DecodePayload(kind Kind, raw string) (Payload, error) {
	body := []byte(raw)
	if len(body) == 0 {
		body = []byte("{}")
	}
	switch kind {
	case KindImageGeneration:
		var payload ImagePayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return payload, nil
	case KindCharacterImageGeneration:
		var payload CharacterImagePayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return payload, nil
	case KindVideoGeneration:
		var payload VideoPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("unknown job kind %q", kind)
	}
}
