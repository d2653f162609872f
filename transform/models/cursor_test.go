package models

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestCursorLoadAbsent(t *testing.T) {
	wh := newTestWarehouse(t)
	store := NewCursorStore(wh.DB, wh.MartsRef("transform_cursor"))

	_, ok, err := store.Load(context.Background(), TaskFactPriceSnapshots)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a task with no cursor")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	wh := newTestWarehouse(t)
	store := NewCursorStore(wh.DB, wh.MartsRef("transform_cursor"))
	ctx := context.Background()

	pos := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)

	tx, err := wh.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := store.SaveTx(ctx, tx, TaskFactPriceSnapshots, pos); err != nil {
		t.Fatalf("SaveTx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, ok, err := store.Load(ctx, TaskFactPriceSnapshots)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true after save")
	}
	if !got.Equal(pos) {
		t.Errorf("cursor position: got %v, want %v", got, pos)
	}
}

func TestCursorSaveReplacesExisting(t *testing.T) {
	wh := newTestWarehouse(t)
	store := NewCursorStore(wh.DB, wh.MartsRef("transform_cursor"))
	ctx := context.Background()

	save := func(pos time.Time) {
		tx, err := wh.DB.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx: %v", err)
		}
		if err := store.SaveTx(ctx, tx, TaskFactSentiment, pos); err != nil {
			t.Fatalf("SaveTx: %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	save(first)
	save(second)

	got, ok, err := store.Load(ctx, TaskFactSentiment)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if !got.Equal(second) {
		t.Errorf("cursor position: got %v, want %v", got, second)
	}

	if n := countRows(t, wh.DB, wh.MartsRef("transform_cursor")); n != 1 {
		t.Errorf("expected 1 cursor row, got %d", n)
	}
}

func TestCursorRejectsKeyVersionMismatch(t *testing.T) {
	wh := newTestWarehouse(t)
	store := NewCursorStore(wh.DB, wh.MartsRef("transform_cursor"))
	ctx := context.Background()

	_, err := wh.DB.Exec(
		"INSERT INTO marts.transform_cursor (task_name, position, key_version, updated_at) VALUES (?, ?, ?, ?)",
		TaskFactPriceSnapshots, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 999, time.Now().UTC())
	if err != nil {
		t.Fatalf("failed to seed stale cursor: %v", err)
	}

	_, _, err = store.Load(ctx, TaskFactPriceSnapshots)
	if err == nil {
		t.Fatal("expected key version mismatch error, got nil")
	}
	if !strings.Contains(err.Error(), "key version") {
		t.Errorf("unexpected error: %v", err)
	}
}
