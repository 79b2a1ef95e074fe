package store

import (
	"context"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestKVGetSet(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("missing key returns empty string", func(t *testing.T) {
		got, err := db.Get(ctx, "activity_session_id")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != "" {
			t.Errorf("Get() = %q, want empty", got)
		}
	})

	t.Run("set then overwrite", func(t *testing.T) {
		if err := db.Set(ctx, "activity_tracking_active", "true"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := db.Set(ctx, "activity_tracking_active", "false"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := db.Get(ctx, "activity_tracking_active")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != "false" {
			t.Errorf("Get() = %q, want %q", got, "false")
		}
	})

	t.Run("remove", func(t *testing.T) {
		if err := db.Remove(ctx, "activity_tracking_active"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		got, _ := db.Get(ctx, "activity_tracking_active")
		if got != "" {
			t.Errorf("Get() after Remove = %q, want empty", got)
		}
		// removing again is fine
		if err := db.Remove(ctx, "activity_tracking_active"); err != nil {
			t.Errorf("Remove() of missing key error = %v", err)
		}
	})
}

func TestKVMulti(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	pairs := map[string]string{
		"activity_start_time":  "1705312800000",
		"activity_is_paused":   "true",
		"activity_pause_start": "1705312860000",
	}
	if err := db.MultiSet(ctx, pairs); err != nil {
		t.Fatalf("MultiSet() error = %v", err)
	}

	got, err := db.MultiGet(ctx, "activity_start_time", "activity_is_paused", "activity_pause_start", "missing")
	if err != nil {
		t.Fatalf("MultiGet() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(MultiGet()) = %d, want 3", len(got))
	}
	for k, want := range pairs {
		if got[k] != want {
			t.Errorf("MultiGet()[%s] = %q, want %q", k, got[k], want)
		}
	}
	if _, ok := got["missing"]; ok {
		t.Error("MultiGet() returned a value for a missing key")
	}

	if err := db.MultiRemove(ctx, "activity_is_paused", "activity_pause_start"); err != nil {
		t.Fatalf("MultiRemove() error = %v", err)
	}
	got, _ = db.MultiGet(ctx, "activity_start_time", "activity_is_paused", "activity_pause_start")
	if len(got) != 1 || got["activity_start_time"] != "1705312800000" {
		t.Errorf("MultiGet() after MultiRemove = %v", got)
	}

	// empty batches are no-ops
	if err := db.MultiSet(ctx, nil); err != nil {
		t.Errorf("MultiSet(nil) error = %v", err)
	}
	if err := db.MultiRemove(ctx); err != nil {
		t.Errorf("MultiRemove() error = %v", err)
	}
	if got, err := db.MultiGet(ctx); err != nil || len(got) != 0 {
		t.Errorf("MultiGet() = %v, %v", got, err)
	}
}
