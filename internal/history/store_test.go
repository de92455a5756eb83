package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/narrata-labs/narrata-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(t *testing.T, cfg config.HistoryConfig) *Store {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "history.db")
	}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveUpsertsByID(t *testing.T) {
	s := openStore(t, config.HistoryConfig{})
	ctx := context.Background()

	item := Item{
		ID:        "item-1",
		Text:      "first take",
		Voice:     "alloy",
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Duration:  1200 * time.Millisecond,
		Audio:     []byte{1, 2, 3},
	}
	if err := s.Save(ctx, item); err != nil {
		t.Fatalf("save: %v", err)
	}

	item.Text = "second take"
	item.Duration = 2400 * time.Millisecond
	item.Audio = []byte{4, 5, 6}
	if err := s.Save(ctx, item); err != nil {
		t.Fatalf("save again: %v", err)
	}

	items, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item after upsert, got %d", len(items))
	}
	got := items[0]
	if got.Text != "second take" {
		t.Fatalf("text not updated: %q", got.Text)
	}
	if got.Duration != 2400*time.Millisecond {
		t.Fatalf("duration not updated: %v", got.Duration)
	}
	if string(got.Audio) != string([]byte{4, 5, 6}) {
		t.Fatal("audio not updated")
	}
	if !got.CreatedAt.Equal(item.CreatedAt) {
		t.Fatalf("created_at mismatch: %v", got.CreatedAt)
	}
}

func TestGetReportsPresence(t *testing.T) {
	s := openStore(t, config.HistoryConfig{})
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected absent without error, ok=%v err=%v", ok, err)
	}
	if err := s.Save(ctx, Item{ID: "a", Text: "t", Voice: "nova", Audio: []byte{9}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.Get(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("expected present, ok=%v err=%v", ok, err)
	}
	if got.Voice != "nova" {
		t.Fatalf("unexpected voice %q", got.Voice)
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s := openStore(t, config.HistoryConfig{})
	if err := s.Delete(context.Background(), "does-not-exist"); err != nil {
		t.Fatalf("delete of unknown id should be a no-op, got %v", err)
	}
}

func TestClear(t *testing.T) {
	s := openStore(t, config.HistoryConfig{})
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Save(ctx, Item{ID: id, Text: id, Voice: "echo", Audio: []byte{1}}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	items, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty store, got %d items", len(items))
	}
}

func TestPruneByAgeAndCount(t *testing.T) {
	s := openStore(t, config.HistoryConfig{RetentionDays: 1, MaxItems: 2})
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	s.clock = func() time.Time { return now }

	stale := Item{ID: "stale", Text: "old", Voice: "onyx", CreatedAt: now.Add(-72 * time.Hour), Audio: []byte{1}}
	for i, id := range []string{"stale", "k1", "k2", "k3"} {
		item := stale
		item.ID = id
		if id != "stale" {
			item.CreatedAt = now.Add(time.Duration(i) * time.Minute)
		}
		if err := s.Save(ctx, item); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	if err := s.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}
	items, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items after prune, got %d", len(items))
	}
	for _, item := range items {
		if item.ID == "stale" || item.ID == "k1" {
			t.Fatalf("expected %s to be pruned", item.ID)
		}
	}
}
