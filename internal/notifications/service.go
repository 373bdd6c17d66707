package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"twitchrec/internal/config"
)

const userAgent = "twitchrec/1.0"

// Service defines the notification surface exposed to the worker and supervisor.
type Service interface {
	NotifyLive(ctx context.Context, streamer, title string) error
	NotifyRecordingStarted(ctx context.Context, streamer, path string) error
	NotifyRecordingFinished(ctx context.Context, streamer, path, outcome string, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	NotifyRestart(ctx context.Context, streamer string, attempt int) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyLive(ctx context.Context, streamer, title string) error {
	message := fmt.Sprintf("🔴 %s is live", strings.TrimSpace(streamer))
	if title = strings.TrimSpace(title); title != "" {
		message = fmt.Sprintf("%s: %s", message, title)
	}
	return n.send(ctx, payload{
		title:   "twitchrec - Live",
		message: message,
		tags:    []string{"twitchrec", "live"},
	})
}

func (n *ntfyService) NotifyRecordingStarted(ctx context.Context, streamer, path string) error {
	return n.send(ctx, payload{
		title:   "twitchrec - Recording",
		message: fmt.Sprintf("⏺️ Recording %s\nFile: %s", strings.TrimSpace(streamer), strings.TrimSpace(path)),
		tags:    []string{"twitchrec", "recording", "started"},
	})
}

func (n *ntfyService) NotifyRecordingFinished(ctx context.Context, streamer, path, outcome string, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	data := payload{
		tags: []string{"twitchrec", "recording", outcome},
	}
	switch outcome {
	case "completed":
		data.title = "twitchrec - Recording Complete"
		data.message = fmt.Sprintf("✅ Recording of %s completed in %s\nFile: %s", streamer, duration, path)
	case "failed":
		data.title = "twitchrec - Recording Error"
		data.message = fmt.Sprintf("❌ Recording of %s failed after %s; a partial file may have been saved\nFile: %s", streamer, duration, path)
		data.priority = "high"
	default:
		data.title = "twitchrec - Recording Stopped"
		data.message = fmt.Sprintf("⏹️ Recording of %s stopped after %s (%s)\nFile: %s", streamer, duration, outcome, path)
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "twitchrec - Error",
		message:  builder.String(),
		tags:     []string{"twitchrec", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyRestart(ctx context.Context, streamer string, attempt int) error {
	return n.send(ctx, payload{
		title:   "twitchrec - Worker Restarted",
		message: fmt.Sprintf("🔁 Worker for %s restarted after %d failed attempt(s)", streamer, attempt),
		tags:    []string{"twitchrec", "restart"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "twitchrec - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"twitchrec", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyLive(context.Context, string, string) error             { return nil }
func (noopService) NotifyRecordingStarted(context.Context, string, string) error { return nil }
func (noopService) NotifyRecordingFinished(context.Context, string, string, string, time.Duration) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error  { return nil }
func (noopService) NotifyRestart(context.Context, string, int) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }
