package reorder_test

import (
	"testing"

	"reorder-go/internal/linkfile"
	"reorder-go/internal/model"
	"reorder-go/internal/reorder"
	"reorder-go/internal/testutil"
)

func newNormalizer() (*reorder.Normalizer, *testutil.StubClock) {
	clock := testutil.FixedClock()
	return reorder.NewNormalizer(clock, testutil.NewStubIDGenerator()), clock
}

func mustItem(t *testing.T, snap model.Snapshot, id string) model.Item {
	t.Helper()
	item, ok := snap.ItemByID(id)
	if !ok {
		t.Fatalf("item %q not found", id)
	}
	return item
}

func writePayload(t *testing.T, f *linkfile.MemoryFile, snap model.Snapshot) {
	t.Helper()
	text, err := reorder.BuildPayload(snap)
	if err != nil {
		t.Fatalf("BuildPayload() error = %v", err)
	}
	f.SetContents(text)
}

func readPayload(t *testing.T, n *reorder.Normalizer, f *linkfile.MemoryFile) model.Snapshot {
	t.Helper()
	res := n.ParsePayload(f.Contents())
	if res.Kind != reorder.PayloadOK {
		t.Fatalf("ParsePayload() kind = %v, err = %v", res.Kind, res.Err)
	}
	return res.Snapshot
}

func mustHash(t *testing.T, snap model.Snapshot) string {
	t.Helper()
	h, err := reorder.StructuralHash(snap)
	if err != nil {
		t.Fatalf("StructuralHash() error = %v", err)
	}
	return h
}
