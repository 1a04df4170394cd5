package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestOpen_CreatesSchemaAndDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")

	store, err := Open(Config{Path: path, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if store.Path() != path {
		t.Errorf("Path() = %q, want %q", store.Path(), path)
	}

	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, "bai", "Status01", "ebusd/bai/Status01", "45.5;40.0"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := store.Record(ctx, "bai", "Status01", "ebusd/bai/Status01", "46.0;40.5"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := store.Record(ctx, "hmu", "Status", "ebusd/hmu/Status", "off"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := store.Recent(ctx, "bai", "Status01", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Recent() returned %d entries, want 2", len(entries))
	}

	// Newest first
	if entries[0].Payload != "46.0;40.5" {
		t.Errorf("entries[0].Payload = %q, want %q", entries[0].Payload, "46.0;40.5")
	}
	if entries[1].Payload != "45.5;40.0" {
		t.Errorf("entries[1].Payload = %q, want %q", entries[1].Payload, "45.5;40.0")
	}

	if entries[0].Circuit != "bai" || entries[0].Name != "Status01" {
		t.Errorf("entry identity = %s/%s, want bai/Status01", entries[0].Circuit, entries[0].Name)
	}
	if entries[0].Topic != "ebusd/bai/Status01" {
		t.Errorf("entry topic = %q, want %q", entries[0].Topic, "ebusd/bai/Status01")
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("entry CreatedAt should not be zero")
	}
}

func TestRecord_RequiresIdentity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, "", "Status01", "t", "p"); err == nil {
		t.Error("Record() with empty circuit should fail")
	}
	if err := store.Record(ctx, "bai", "", "t", "p"); err == nil {
		t.Error("Record() with empty name should fail")
	}
}

func TestRecent_LimitBounds(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		if err := store.Record(ctx, "bai", "Status01", "ebusd/bai/Status01", "v"); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	// Zero limit falls back to the default
	entries, err := store.Recent(ctx, "bai", "Status01", 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != defaultRecentLimit {
		t.Errorf("Recent(limit=0) returned %d entries, want %d", len(entries), defaultRecentLimit)
	}

	entries, err = store.Recent(ctx, "bai", "Status01", 5)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("Recent(limit=5) returned %d entries, want 5", len(entries))
	}
}

func TestRecent_UnknownMessage(t *testing.T) {
	store := openTestStore(t)

	entries, err := store.Recent(context.Background(), "none", "Nothing", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Recent() returned %d entries, want 0", len(entries))
	}
}

func TestPrune(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, "bai", "Status01", "t", "old"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// Backdate the entry so the prune window catches it.
	old := time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339)
	if _, err := store.db.Exec("UPDATE publications SET created_at = ?", old); err != nil {
		t.Fatalf("backdating entry: %v", err)
	}

	if err := store.Record(ctx, "bai", "Status01", "t", "new"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	deleted, err := store.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("Prune() deleted %d rows, want 1", deleted)
	}

	entries, err := store.Recent(ctx, "bai", "Status01", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Payload != "new" {
		t.Errorf("after prune: %d entries, want only the new one", len(entries))
	}
}

func TestPrune_InvalidDuration(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Prune(context.Background(), 0); err == nil {
		t.Error("Prune(0) should fail")
	}
}
