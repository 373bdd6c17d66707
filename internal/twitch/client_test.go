package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeTwitch struct {
	live       bool
	title      string
	missing    bool
	usherCode  int
	gqlQueries []string
}

func (f *fakeTwitch) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/gql", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Client-ID"); got != "client-123" {
			t.Errorf("unexpected client id %q", got)
		}
		var req gqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode gql request: %v", err)
			return
		}
		if login, _ := req.Variables["login"].(string); login != "someone" {
			t.Errorf("expected lowercased login, got %q", login)
		}
		f.gqlQueries = append(f.gqlQueries, req.Query)

		var data any
		switch {
		case f.missing:
			data = map[string]any{"user": nil}
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
	mux.HandleFunc("/hls/someone.m3u8", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" || r.URL.Query().Get("sig") != "sig" {
			t.Errorf("missing token parameters: %s", r.URL.RawQuery)
		}
		if f.usherCode != 0 {
			w.WriteHeader(f.usherCode)
			return
		}
		_, _ = w.Write([]byte(sampleMaster))
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeTwitch) *Client {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)
	return New("SomeOne", "client-123", nil,
		WithHTTPClient(server.Client()),
		WithEndpoints(server.URL+"/gql", server.URL+"/hls"),
	)
}

func TestIsLive(t *testing.T) {
	fake := &fakeTwitch{live: true}
	client := newTestClient(t, fake)

	live, err := client.IsLive(context.Background())
	if err != nil {
		t.Fatalf("IsLive: %v", err)
	}
	if !live {
		t.Fatal("expected live")
	}

	fake.live = false
	live, err = client.IsLive(context.Background())
	if err != nil {
		t.Fatalf("IsLive: %v", err)
	}
	if live {
		t.Fatal("expected offline")
	}
}

func TestIsLiveUnknownChannel(t *testing.T) {
	client := newTestClient(t, &fakeTwitch{missing: true})
	if _, err := client.IsLive(context.Background()); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("expected ErrChannelNotFound, got %v", err)
	}
}

func TestTitle(t *testing.T) {
	client := newTestClient(t, &fakeTwitch{title: "Bar: the stream"})
	title, err := client.Title(context.Background(), "SOMEONE")
	if err != nil {
		t.Fatalf("Title: %v", err)
	}
	if title != "Bar: the stream" {
		t.Fatalf("unexpected title %q", title)
	}
}

func TestPlayableURL(t *testing.T) {
	client := newTestClient(t, &fakeTwitch{live: true})
	got, err := client.PlayableURL(context.Background(), []string{"720p60", "source"})
	if err != nil {
		t.Fatalf("PlayableURL: %v", err)
	}
	if got != "https://video-weaver.example/v1/playlist/720p60.m3u8" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestPlayableURLOffline(t *testing.T) {
	client := newTestClient(t, &fakeTwitch{usherCode: http.StatusNotFound})
	if _, err := client.PlayableURL(context.Background(), []string{"source"}); !errors.Is(err, ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
}

func TestNormalizeLogin(t *testing.T) {
	if got := NormalizeLogin("  Foo_Bar "); got != "foo_bar" {
		t.Fatalf("unexpected login %q", got)
	}
}
