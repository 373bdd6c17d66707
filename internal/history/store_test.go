package history_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"twitchrec/internal/history"
	"twitchrec/internal/testsupport"
)

func TestRecordAndList(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	base := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	first := history.Session{ID: "a", Streamer: "foo", Title: "one", Path: "/rec/a.mp4", SessionStart: base, StartedAt: base}
	second := history.Session{ID: "b", Streamer: "foo", Title: "two", Path: "/rec/b.mp4", Simulate: true, SessionStart: base, StartedAt: base.Add(time.Hour)}
	for _, s := range []history.Session{first, second} {
		if err := store.RecordStart(ctx, s); err != nil {
			t.Fatalf("RecordStart(%s): %v", s.ID, err)
		}
	}
	if err := store.RecordEnd(ctx, "a", base.Add(30*time.Minute), 0, "completed"); err != nil {
		t.Fatalf("RecordEnd: %v", err)
	}

	sessions, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "b" || sessions[1].ID != "a" {
		t.Fatalf("expected newest first, got %s, %s", sessions[0].ID, sessions[1].ID)
	}
	if !sessions[0].Simulate || sessions[0].ExitCode != nil || !sessions[0].EndedAt.IsZero() {
		t.Fatalf("unexpected open session %+v", sessions[0])
	}
	done := sessions[1]
	if done.ExitCode == nil || *done.ExitCode != 0 || done.Outcome != "completed" {
		t.Fatalf("unexpected finished session %+v", done)
	}
	if !done.EndedAt.Equal(base.Add(30 * time.Minute)) {
		t.Fatalf("unexpected end time %s", done.EndedAt)
	}

	limited, err := store.List(ctx, 1)
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 session, got %d", len(limited))
	}
}

func TestRecordEndUnknownSession(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.RecordEnd(context.Background(), "missing", time.Now(), 1, "failed"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", cfg.History.Path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := history.Open(cfg); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
