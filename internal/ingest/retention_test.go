package ingest

import (
	"context"
	"testing"
	"time"
)

func TestRunRetention(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemStore()
	store.logs = []UploadLog{
		{ID: "old", CreatedAt: now.Add(-100 * 24 * time.Hour)},
		{ID: "edge", CreatedAt: now.Add(-90 * 24 * time.Hour)},
		{ID: "new", CreatedAt: now.Add(-time.Hour)},
	}

	svc, err := NewService(Deps{Applications: store, Audit: store}, Options{Now: func() time.Time { return now }})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := svc.RunRetention(ctx, RetentionConfig{MaxAge: 90 * 24 * time.Hour}); err != nil {
		t.Fatalf("RunRetention: %v", err)
	}

	var ids []string
	for _, l := range store.logs {
		ids = append(ids, l.ID)
	}
	if len(ids) != 2 || ids[0] != "edge" || ids[1] != "new" {
		t.Errorf("remaining logs = %v, want [edge new]", ids)
	}
}

func TestRunRetentionDisabled(t *testing.T) {
	store := newMemStore()
	store.logs = []UploadLog{{ID: "old"}}

	svc, err := NewService(Deps{Applications: store, Audit: store}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.RunRetention(t.Context(), RetentionConfig{}); err != nil {
		t.Fatalf("RunRetention: %v", err)
	}
	if len(store.logs) != 1 {
		t.Errorf("logs = %d, want 1", len(store.logs))
	}
}
