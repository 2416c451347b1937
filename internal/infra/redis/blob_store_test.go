package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"lms-test-service/internal/app"
)

func TestBlobStoreBacksTestStates(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	blobs := NewBlobStore(newClient(mr), "lms:")

	if data, err := blobs.Load(ctx, "missing"); err != nil || data != nil {
		t.Fatalf("expected empty load, got %q, %v", data, err)
	}

	states := app.NewTestStateStore(blobs, "", nil)
	states.Complete(ctx, "t1", 3, 5)

	raw, err := mr.Get("lms:" + app.DefaultStateKey)
	if err != nil {
		t.Fatalf("expected key written: %v", err)
	}
	if raw == "" {
		t.Fatalf("expected serialized states")
	}

	// A fresh store over the same key sees the result, as after a reload.
	if !app.NewTestStateStore(NewBlobStore(newClient(mr), "lms:"), "", nil).IsCompleted(ctx, "t1") {
		t.Fatalf("expected completed state to survive reload")
	}
}

func TestBlobStoreUnavailableFailsOpen(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := newClient(mr)
	mr.Close()

	blobs := NewBlobStore(client, "")
	if _, err := blobs.Load(context.Background(), "k"); err == nil {
		t.Fatalf("expected error from closed redis")
	}

	states := app.NewTestStateStore(blobs, "", nil)
	states.Complete(context.Background(), "t1", 1, 1)
	if states.IsCompleted(context.Background(), "t1") {
		t.Fatalf("expected nothing persisted when redis is down")
	}
}
