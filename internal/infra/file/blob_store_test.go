package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"lms-test-service/internal/app"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	store := NewBlobStore(dir)
	ctx := context.Background()

	if data, err := store.Load(ctx, "k"); err != nil || data != nil {
		t.Fatalf("expected empty load, got %q, %v", data, err)
	}
	if err := store.Save(ctx, "k", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := store.Load(ctx, "k")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(data) != `{"x":1}` {
		t.Fatalf("unexpected data %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "k.json" {
		t.Fatalf("expected only k.json, got %v", entries)
	}
}

func TestBlobStoreRejectsPathKeys(t *testing.T) {
	store := NewBlobStore(t.TempDir())
	for _, key := range []string{"", "..", "a/b", `a\b`} {
		if err := store.Save(context.Background(), key, nil); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestBlobStoreSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	app.NewTestStateStore(NewBlobStore(dir), "", nil).Complete(ctx, "t1", 3, 5)

	state := app.NewTestStateStore(NewBlobStore(dir), "", nil).Get(ctx, "t1")
	if !state.Completed() || state.Score != 3 || state.Total != 5 {
		t.Fatalf("unexpected state after reload: %+v", state)
	}
}
