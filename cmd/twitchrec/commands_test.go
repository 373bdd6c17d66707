package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"twitchrec/internal/history"
	"twitchrec/internal/testsupport"
)

func TestWorkerArgsForwardOnlyChangedFlags(t *testing.T) {
	root, ctx := buildRootCommand()
	if err := root.PersistentFlags().Parse([]string{"--config=/etc/twitchrec.toml", "--streamer=foo", "--debug"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"--config=/etc/twitchrec.toml", "--streamer=foo", "--debug"}
	if diff := cmp.Diff(want, ctx.workerArgs()); diff != "" {
		t.Fatalf("worker args mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "History is disabled")
}

func TestHistoryListsSessions(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithHistory())

	store, err := history.Open(env.cfg)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	started := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	ctx := context.Background()
	if err := store.RecordStart(ctx, history.Session{
		ID:           "abc",
		Streamer:     "cli_user",
		Title:        "Speedrun night",
		Path:         filepath.Join(env.baseDir, "recordings", "cli_user -- Speedrun night.mp4"),
		SessionStart: started,
		StartedAt:    started,
	}); err != nil {
		t.Fatalf("record start: %v", err)
	}
	if err := store.RecordEnd(ctx, "abc", started.Add(90*time.Minute), 0, "completed"); err != nil {
		t.Fatalf("record end: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, _, err := runCLI(t, []string{"history", "--limit", "5"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Speedrun night")
	requireContains(t, out, "completed")
	requireContains(t, out, "1h30m0s")
}

func TestCheckReportsStubbedFFmpeg(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "cli_user")
}

func TestCheckFailsWhenFFmpegMissing(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Recorder.FFmpegBinary = filepath.Join(env.baseDir, "missing", "ffmpeg")
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err == nil {
		t.Fatal("expected check to fail")
	}
	requireContains(t, out, "missing")
}

func TestNotifyTestWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"notify", "test"}, env.configPath)
	if err != nil {
		t.Fatalf("notify test: %v", err)
	}
	requireContains(t, out, "not configured")
}

func TestNotifyTestPostsToTopic(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	env := setupCLITestEnv(t)
	env.cfg.Notifications.NtfyTopic = srv.URL + "/recordings"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"notify", "test"}, env.configPath)
	if err != nil {
		t.Fatalf("notify test: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 1 {
		t.Fatalf("expected one notification, got %d", len(bodies))
	}
	requireContains(t, bodies[0], "Notification system test")
}
