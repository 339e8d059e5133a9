package reorder_test

import (
	"encoding/json"
	"testing"
	"time"

	"reorder-go/internal/reorder"
)

func TestBuildPayload_Envelope(t *testing.T) {
	n, _ := newNormalizer()
	snap := n.Starter()
	snap.Revision = 42

	text, err := reorder.BuildPayload(snap)
	if err != nil {
		t.Fatalf("BuildPayload() error = %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if doc["schemaVersion"] != float64(reorder.PayloadSchemaVersion) {
		t.Errorf("schemaVersion = %v", doc["schemaVersion"])
	}
	if doc["strategy"] != reorder.PayloadStrategy {
		t.Errorf("strategy = %v", doc["strategy"])
	}
	state, ok := doc["state"].(map[string]any)
	if !ok {
		t.Fatal("payload has no state object")
	}
	if _, ok := state["revision"]; ok {
		t.Error("payload state carries the device-local revision")
	}
}

func TestParsePayload(t *testing.T) {
	n, _ := newNormalizer()

	tests := []struct {
		name  string
		text  string
		want  reorder.PayloadKind
		items int
	}{
		{"empty", "", reorder.PayloadEmpty, 0},
		{"whitespace", "  \n\t", reorder.PayloadEmpty, 0},
		{"not json", "inventory", reorder.PayloadMalformed, 0},
		{"array", `[{"name":"Soap"}]`, reorder.PayloadMalformed, 0},
		{"state without items", `{"state":{"settings":{}}}`, reorder.PayloadMalformed, 0},
		{"wrapped", `{"schemaVersion":1,"state":{"items":[{"id":"a","name":"Soap"}]}}`, reorder.PayloadOK, 1},
		{"legacy bare snapshot", `{"items":[{"id":"a","name":"Soap"},{"id":"b","name":"Towels"}]}`, reorder.PayloadOK, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := n.ParsePayload(tt.text)
			if res.Kind != tt.want {
				t.Fatalf("Kind = %v, want %v (err %v)", res.Kind, tt.want, res.Err)
			}
			if tt.want == reorder.PayloadMalformed && res.Err == nil {
				t.Error("malformed result without an error")
			}
			if len(res.Snapshot.Items) != tt.items {
				t.Errorf("len(Items) = %d, want %d", len(res.Snapshot.Items), tt.items)
			}
		})
	}
}

func TestPayload_RoundTripPreservesHash(t *testing.T) {
	n, _ := newNormalizer()
	snap := n.Starter()
	snap.Shopping.BuyQuantityByItemID["dish-soap"] = 2

	text, err := reorder.BuildPayload(snap)
	if err != nil {
		t.Fatalf("BuildPayload() error = %v", err)
	}
	res := n.ParsePayload(text)
	if res.Kind != reorder.PayloadOK {
		t.Fatalf("ParsePayload() kind = %v, err = %v", res.Kind, res.Err)
	}
	if mustHash(t, res.Snapshot) != mustHash(t, snap) {
		t.Error("structural hash changed across payload round trip")
	}
	if !res.Snapshot.UpdatedAt.Equal(snap.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", res.Snapshot.UpdatedAt, snap.UpdatedAt)
	}
}

func TestStructuralHash(t *testing.T) {
	n, _ := newNormalizer()
	base := n.Starter()
	baseHash := mustHash(t, base)

	t.Run("ignores updatedAt and revision", func(t *testing.T) {
		other := base.Clone()
		other.UpdatedAt = other.UpdatedAt.Add(time.Hour)
		other.Revision = 99
		if mustHash(t, other) != baseHash {
			t.Error("hash changed for metadata-only difference")
		}
	})

	t.Run("sees quantity changes", func(t *testing.T) {
		other := base.Clone()
		other.Items[0].Quantity++
		if mustHash(t, other) == baseHash {
			t.Error("hash unchanged after quantity change")
		}
	})

	t.Run("sees settings changes", func(t *testing.T) {
		other := base.Clone()
		other.Settings.ThemeMode = "dark"
		if mustHash(t, other) == baseHash {
			t.Error("hash unchanged after theme change")
		}
	})
}
