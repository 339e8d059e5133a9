package reorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"reorder-go/internal/model"
)

const (
	// PayloadSchemaVersion is written into every sync file.
	PayloadSchemaVersion = 1
	// PayloadStrategy names the conflict policy recorded in the sync file.
	PayloadStrategy = "last-write-wins-full"
)

// filePayload is the on-disk shape of the linked sync file. Revision is
// device-local and intentionally not part of the payload.
type filePayload struct {
	SchemaVersion int          `json:"schemaVersion"`
	Strategy      string       `json:"strategy"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	State         payloadState `json:"state"`
}

type payloadState struct {
	Items     []model.Item       `json:"items"`
	Settings  model.Settings     `json:"settings"`
	Shopping  model.ShoppingPlan `json:"shopping"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// BuildPayload serializes a snapshot into the sync file format.
func BuildPayload(snap model.Snapshot) (string, error) {
	data, err := json.MarshalIndent(filePayload{
		SchemaVersion: PayloadSchemaVersion,
		Strategy:      PayloadStrategy,
		UpdatedAt:     snap.UpdatedAt,
		State: payloadState{
			Items:     snap.Items,
			Settings:  snap.Settings,
			Shopping:  snap.Shopping,
			UpdatedAt: snap.UpdatedAt,
		},
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding sync payload: %w", err)
	}
	return string(data), nil
}

// PayloadKind tags the outcome of ParsePayload.
type PayloadKind int

const (
	PayloadEmpty PayloadKind = iota
	PayloadOK
	PayloadMalformed
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadEmpty:
		return "empty"
	case PayloadOK:
		return "ok"
	case PayloadMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// PayloadResult is the tagged outcome of reading a sync file.
type PayloadResult struct {
	Kind     PayloadKind
	Snapshot model.Snapshot
	Err      error
}

// ParsePayload decodes sync file text. A wrapped {state: {items: [...]}}
// payload and a legacy bare {items: [...]} snapshot are both accepted.
func (n *Normalizer) ParsePayload(text string) PayloadResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return PayloadResult{Kind: PayloadEmpty}
	}

	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return PayloadResult{Kind: PayloadMalformed, Err: errors.New("sync file is not valid JSON")}
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return PayloadResult{Kind: PayloadMalformed, Err: errors.New("sync file must contain a valid inventory snapshot")}
	}

	if state, ok := fields["state"].(map[string]any); ok {
		if _, ok := state["items"].([]any); ok {
			return PayloadResult{Kind: PayloadOK, Snapshot: n.Normalize(state)}
		}
	}
	if _, ok := fields["items"].([]any); ok {
		return PayloadResult{Kind: PayloadOK, Snapshot: n.Normalize(fields)}
	}
	return PayloadResult{Kind: PayloadMalformed, Err: errors.New("sync file must contain a valid inventory snapshot")}
}
