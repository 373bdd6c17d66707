package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"twitchrec/internal/capture"
	"twitchrec/internal/config"
	"twitchrec/internal/history"
	"twitchrec/internal/testsupport"
	"twitchrec/internal/twitch"
	"twitchrec/internal/twitch/pubsub"
)

const testMaster = `#EXTM3U
#EXT-X-MEDIA:TYPE=VIDEO,GROUP-ID="chunked",NAME="1080p60 (source)",AUTOSELECT=YES,DEFAULT=YES
#EXT-X-STREAM-INF:BANDWIDTH=6000000,RESOLUTION=1920x1080,VIDEO="chunked"
https://video-weaver.example/v1/playlist/chunked.m3u8
`

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub ffmpeg uses sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
}

type fakeChannel struct {
	mu          sync.Mutex
	live        bool
	title       string
	usherStatus int
}

func (f *fakeChannel) serve(t *testing.T, cfg *config.Config) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/gql", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode gql request: %v", err)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		var data any
		switch {
		case strings.Contains(req.Query, "stream {"):
			var stream any
			if f.live {
				stream = map[string]any{"id": "1"}
			}
			data = map[string]any{"user": map[string]any{"stream": stream}}
		case strings.Contains(req.Query, "broadcastSettings"):
			data = map[string]any{"user": map[string]any{"broadcastSettings": map[string]any{"title": f.title}}}
		case strings.Contains(req.Query, "streamPlaybackAccessToken"):
			data = map[string]any{"streamPlaybackAccessToken": map[string]any{"value": "tok", "signature": "sig"}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	})
	mux.HandleFunc("/hls/", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		status := f.usherStatus
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		_, _ = io.WriteString(w, testMaster)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	cfg.Twitch.GQLURL = server.URL + "/gql"
	cfg.Twitch.UsherURL = server.URL + "/hls"
}

// fakeFeed stands in for the push feed transport.
type fakeFeed struct {
	frames chan string
	dials  chan struct{}
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{frames: make(chan string, 8), dials: make(chan struct{}, 8)}
}

func (f *fakeFeed) dial(context.Context, string) (pubsub.Conn, error) {
	select {
	case f.dials <- struct{}{}:
	default:
	}
	return &feedConn{frames: f.frames, closed: make(chan struct{})}, nil
}

func (f *fakeFeed) publish(t *testing.T, topic, kind string, at time.Time) {
	t.Helper()
	message, err := json.Marshal(map[string]any{
		"type":        kind,
		"server_time": float64(at.UnixMilli()) / 1000,
	})
	if err != nil {
		t.Fatal(err)
	}
	frame, err := json.Marshal(map[string]any{
		"type": "MESSAGE",
		"data": map[string]any{"topic": topic, "message": string(message)},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.frames <- string(frame)
}

type feedConn struct {
	frames chan string
	closed chan struct{}
	once   sync.Once
}

func (c *feedConn) Send(any) error { return nil }

func (c *feedConn) Receive() (string, error) {
	select {
	case msg := <-c.frames:
		return msg, nil
	case <-c.closed:
		return "", io.EOF
	}
}

func (c *feedConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type endCall struct {
	exitCode int
	outcome  string
}

type fakeRecorder struct {
	mu     sync.Mutex
	starts []history.Session
	ends   map[string]endCall
}

func (r *fakeRecorder) RecordStart(_ context.Context, s history.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, s)
	return nil
}

func (r *fakeRecorder) RecordEnd(_ context.Context, id string, _ time.Time, exitCode int, outcome string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ends == nil {
		r.ends = map[string]endCall{}
	}
	r.ends[id] = endCall{exitCode: exitCode, outcome: outcome}
	return nil
}

func (r *fakeRecorder) snapshot() ([]history.Session, map[string]endCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ends := make(map[string]endCall, len(r.ends))
	for k, v := range r.ends {
		ends[k] = v
	}
	return append([]history.Session(nil), r.starts...), ends
}

type harness struct {
	worker   *Worker
	recorder *fakeRecorder
	feed     *fakeFeed
	signals  chan os.Signal
	cancel   context.CancelFunc
	done     chan error
}

func startWorker(t *testing.T, cfg *config.Config, channel *fakeChannel) *harness {
	t.Helper()
	channel.serve(t, cfg)
	h := &harness{
		recorder: &fakeRecorder{},
		feed:     newFakeFeed(),
		signals:  make(chan os.Signal, 1),
		done:     make(chan error, 1),
	}
	w, err := New(cfg, nil,
		WithSignals(h.signals),
		WithHistory(h.recorder),
		WithPubSubOptions(pubsub.WithDialer(h.feed.dial)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	h.worker = w

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(10 * time.Second):
			t.Error("worker did not stop")
		}
	})
	return h
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		h.done <- err
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not return")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Fatal("expected 0 for nil error")
	}
	if ExitCode(errors.New("boom")) != 1 {
		t.Fatal("expected 1 for error")
	}
}

func TestWorkerRecordsLiveChannel(t *testing.T) {
	requireShell(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithStreamer("Foo"),
		testsupport.WithFFmpegScript(testsupport.FFmpegExitImmediately),
	)
	h := startWorker(t, cfg, &fakeChannel{live: true, title: "Bar/Baz"})

	want := filepath.Join(testsupport.BaseDir(cfg), "recordings", "Foo -- Bar-Baz.mp4")
	waitFor(t, "completed session", func() bool {
		_, ends := h.recorder.snapshot()
		return len(ends) == 1
	})

	starts, ends := h.recorder.snapshot()
	if len(starts) != 1 {
		t.Fatalf("expected one session, got %d", len(starts))
	}
	if starts[0].Path != want {
		t.Fatalf("unexpected path %q, want %q", starts[0].Path, want)
	}
	if starts[0].Title != "Bar/Baz" {
		t.Fatalf("unexpected title %q", starts[0].Title)
	}
	if got := ends[starts[0].ID]; got.outcome != string(capture.OutcomeCompleted) || got.exitCode != 0 {
		t.Fatalf("unexpected end %+v", got)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected recording at %s: %v", want, err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(want), "Foo -- Bar-Baz (part 1).mp4")); !os.IsNotExist(err) {
		t.Fatalf("expected no part file, stat err=%v", err)
	}

	snap := h.worker.Tracker().Snapshot()
	if !snap.Live || snap.Recording {
		t.Fatalf("unexpected tracker state %+v", snap)
	}

	h.cancel()
	if err := h.wait(t); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}

func TestWorkerReservesNextPart(t *testing.T) {
	requireShell(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithStreamer("Foo"),
		testsupport.WithFFmpegScript(testsupport.FFmpegExitImmediately),
	)
	dir := filepath.Join(testsupport.BaseDir(cfg), "recordings")
	existing := filepath.Join(dir, "Foo -- Bar.mp4")
	testsupport.WriteFile(t, existing, 16)

	h := startWorker(t, cfg, &fakeChannel{live: true, title: "Bar"})
	waitFor(t, "completed session", func() bool {
		_, ends := h.recorder.snapshot()
		return len(ends) == 1
	})

	starts, _ := h.recorder.snapshot()
	if want := filepath.Join(dir, "Foo -- Bar (part 2).mp4"); starts[0].Path != want {
		t.Fatalf("unexpected path %q, want %q", starts[0].Path, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "Foo -- Bar (part 1).mp4")); err != nil {
		t.Fatalf("expected earlier recording renamed to part 1: %v", err)
	}
	if _, err := os.Stat(existing); !os.IsNotExist(err) {
		t.Fatalf("expected unnumbered file to be gone, stat err=%v", err)
	}
}

func TestWorkerSignalStopsCapture(t *testing.T) {
	requireShell(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithStreamer("Foo"),
		testsupport.WithFFmpegScript(testsupport.FFmpegUntilQuit),
	)
	h := startWorker(t, cfg, &fakeChannel{live: true, title: "Long one"})

	waitFor(t, "recording", func() bool {
		return h.worker.Status().Capture != nil
	})
	status := h.worker.Status()
	if !status.Live || !status.Recording || status.Capture.State != "running" {
		t.Fatalf("unexpected status %+v", status)
	}

	started := time.Now()
	h.signals <- syscall.SIGINT
	if err := h.wait(t); err != nil {
		t.Fatalf("expected user stop to return nil, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > cfg.GracePeriod()+time.Second {
		t.Fatalf("shutdown took %s", elapsed)
	}

	starts, ends := h.recorder.snapshot()
	if len(starts) != 1 {
		t.Fatalf("expected one session, got %d", len(starts))
	}
	if got := ends[starts[0].ID].outcome; got != string(capture.OutcomeAborted) {
		t.Fatalf("expected aborted outcome, got %q", got)
	}
}

func TestWorkerSpawnFailureIsFatal(t *testing.T) {
	requireShell(t)
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegScript("#!/nonexistent/interpreter\n"))
	h := startWorker(t, cfg, &fakeChannel{live: true, title: "x"})

	err := h.wait(t)
	if !errors.Is(err, capture.ErrSpawn) {
		t.Fatalf("expected spawn error, got %v", err)
	}
	if ExitCode(err) == 0 {
		t.Fatal("expected non-zero exit code")
	}
}

func TestWorkerResolutionErrorIsFatal(t *testing.T) {
	requireShell(t)
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegScript(testsupport.FFmpegExitImmediately))
	h := startWorker(t, cfg, &fakeChannel{live: true, title: "x", usherStatus: http.StatusNotFound})

	err := h.wait(t)
	if !errors.Is(err, twitch.ErrOffline) {
		t.Fatalf("expected offline resolution error, got %v", err)
	}
	starts, _ := h.recorder.snapshot()
	if len(starts) != 0 {
		t.Fatalf("expected no session, got %d", len(starts))
	}
}

func TestWorkerPushStreamUpStartsOneSession(t *testing.T) {
	requireShell(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithStreamer("Foo"),
		testsupport.WithFFmpegScript(testsupport.FFmpegUntilQuit),
	)
	h := startWorker(t, cfg, &fakeChannel{live: false, title: "Late"})

	select {
	case <-h.feed.dials:
	case <-time.After(5 * time.Second):
		t.Fatal("push feed never dialed")
	}
	waitFor(t, "offline poll", func() bool {
		return !h.worker.Tracker().Snapshot().Live
	})

	at := time.Date(2024, 5, 1, 19, 30, 0, 0, time.UTC)
	h.feed.publish(t, "video-playback.foo", "stream-up", at)
	waitFor(t, "session start", func() bool {
		starts, _ := h.recorder.snapshot()
		return len(starts) == 1
	})
	h.feed.publish(t, "video-playback.foo", "stream-up", at.Add(time.Minute))
	time.Sleep(200 * time.Millisecond)

	starts, _ := h.recorder.snapshot()
	if len(starts) != 1 {
		t.Fatalf("expected a single session, got %d", len(starts))
	}
	if !starts[0].SessionStart.Equal(at) {
		t.Fatalf("expected session start %s, got %s", at, starts[0].SessionStart)
	}

	h.signals <- syscall.SIGTERM
	if err := h.wait(t); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}

func TestWorkerSimulateDoesNotCreateFiles(t *testing.T) {
	requireShell(t)
	cfg := testsupport.NewConfig(t, testsupport.WithFFmpegScript(testsupport.FFmpegExitImmediately))
	cfg.Developer.Simulate = true
	h := startWorker(t, cfg, &fakeChannel{live: true, title: "sim"})

	waitFor(t, "completed session", func() bool {
		_, ends := h.recorder.snapshot()
		return len(ends) == 1
	})
	starts, _ := h.recorder.snapshot()
	if !starts[0].Simulate {
		t.Fatal("expected simulate flag on session")
	}
	if _, err := os.Stat(filepath.Join(testsupport.BaseDir(cfg), "recordings")); !os.IsNotExist(err) {
		t.Fatalf("expected no recordings directory, stat err=%v", err)
	}
}
