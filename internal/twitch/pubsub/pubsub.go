// Package pubsub listens to the Twitch push feed for a channel's video-playback
// topic and turns it into stream-up and stream-down events.
//
// The client reconnects on its own after transport errors and RECONNECT
// notices, paced by a token-bucket limiter, and keeps the socket alive with a
// PING every few minutes. Every received frame is also surfaced as a raw
// event for verbose logging.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"

	"twitchrec/internal/logging"
)

// EventType names the events a Client emits.
type EventType string

const (
	EventConnect    EventType = "connect"
	EventClose      EventType = "close"
	EventRaw        EventType = "raw"
	EventStreamUp   EventType = "stream-up"
	EventStreamDown EventType = "stream-down"
)

// Event is one notification from the push feed.
type Event struct {
	Type EventType
	// ServerTime is set for stream-up and stream-down.
	ServerTime time.Time
	// Raw carries the frame for EventRaw and the close reason for EventClose.
	Raw string
}

// Handler receives events. It is called from the reader goroutine and must
// not block for long.
type Handler func(Event)

const (
	DefaultPingInterval = 4 * time.Minute
	origin              = "https://www.twitch.tv"
)

// Conn is the framed transport a Client reads and writes.
type Conn interface {
	Send(v any) error
	Receive() (string, error)
	Close() error
}

// Dialer opens a Conn.
type Dialer func(ctx context.Context, url string) (Conn, error)

// Client subscribes to one channel's playback topic.
type Client struct {
	url          string
	topic        string
	logger       *slog.Logger
	limiter      *rate.Limiter
	pingInterval time.Duration
	dial         Dialer
}

// Option configures a Client.
type Option func(*Client)

// WithReconnectLimiter overrides the default reconnect pacing.
func WithReconnectLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithPingInterval overrides DefaultPingInterval.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

// WithDialer injects a transport (primarily for tests).
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dial = d
		}
	}
}

// New constructs a Client for login against the feed at url.
func New(url, login string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		url:          url,
		topic:        "video-playback." + login,
		logger:       logging.NewComponentLogger(logger, "pubsub"),
		limiter:      rate.NewLimiter(rate.Every(5*time.Second), 2),
		pingInterval: DefaultPingInterval,
		dial:         dialWebsocket,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Topic returns the subscribed topic name.
func (c *Client) Topic() string { return c.topic }

// Run connects, listens, and reconnects until ctx is cancelled. It returns
// nil on cancellation.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}
		reason := c.session(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Debug("push feed disconnected", logging.String("reason", reason))
	}
}

// session runs one connection and returns why it ended.
func (c *Client) session(ctx context.Context, handle Handler) string {
	conn, err := c.dial(ctx, c.url)
	if err != nil {
		logging.WarnWithContext(c.logger, "push feed connection failed", "pubsub_dial_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "stream-up events delayed until reconnect"),
			logging.String(logging.FieldErrorHint, "check network connectivity"),
		)
		return "dial failed"
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(done)
		_ = conn.Close()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if err := conn.Send(frame{Type: "LISTEN", Nonce: uuid.NewString(), Data: &listenData{Topics: []string{c.topic}}}); err != nil {
		handle(Event{Type: EventClose, Raw: err.Error()})
		return "listen failed"
	}
	handle(Event{Type: EventConnect})

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.ping(conn, done)
	}()

	for {
		msg, err := conn.Receive()
		if err != nil {
			reason := err.Error()
			if ctx.Err() != nil {
				reason = "shutdown"
			}
			handle(Event{Type: EventClose, Raw: reason})
			return reason
		}
		handle(Event{Type: EventRaw, Raw: msg})
		if stop := c.dispatch(msg, handle); stop != "" {
			handle(Event{Type: EventClose, Raw: stop})
			return stop
		}
	}
}

func (c *Client) ping(conn Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.Send(frame{Type: "PING"}); err != nil {
				c.logger.Debug("ping failed", logging.Error(err))
				_ = conn.Close()
				return
			}
		}
	}
}

// dispatch handles one frame and returns a non-empty reason when the
// connection must be dropped.
func (c *Client) dispatch(msg string, handle Handler) string {
	var f frame
	if err := json.Unmarshal([]byte(msg), &f); err != nil {
		c.logger.Debug("ignoring malformed frame", logging.Error(err))
		return ""
	}
	switch f.Type {
	case "RECONNECT":
		return "server requested reconnect"
	case "RESPONSE":
		if f.Error != "" {
			logging.WarnWithContext(c.logger, "push feed rejected subscription", "pubsub_listen_rejected",
				logging.String("topic", c.topic),
				logging.String("reason", f.Error),
				logging.String(logging.FieldImpact, "only the startup poll detects live streams"),
			)
		}
	case "MESSAGE":
		if f.Data == nil || f.Data.Topic != c.topic {
			return ""
		}
		ev, ok := parsePlayback(f.Data.Message)
		if ok {
			handle(ev)
		}
	}
	return ""
}

func parsePlayback(message string) (Event, bool) {
	var payload struct {
		Type       string      `json:"type"`
		ServerTime json.Number `json:"server_time"`
	}
	if err := json.Unmarshal([]byte(message), &payload); err != nil {
		return Event{}, false
	}
	var typ EventType
	switch payload.Type {
	case "stream-up":
		typ = EventStreamUp
	case "stream-down":
		typ = EventStreamDown
	default:
		return Event{}, false
	}
	return Event{Type: typ, ServerTime: serverTime(payload.ServerTime), Raw: message}, true
}

func serverTime(n json.Number) time.Time {
	if n == "" {
		return time.Time{}
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil || f <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

type frame struct {
	Type  string      `json:"type"`
	Nonce string      `json:"nonce,omitempty"`
	Error string      `json:"error,omitempty"`
	Data  *listenData `json:"data,omitempty"`
}

type listenData struct {
	Topics  []string `json:"topics,omitempty"`
	Topic   string   `json:"topic,omitempty"`
	Message string   `json:"message,omitempty"`
}

type wsConn struct {
	ws *websocket.Conn
}

func (c wsConn) Send(v any) error { return websocket.JSON.Send(c.ws, v) }

func (c wsConn) Receive() (string, error) {
	var msg string
	err := websocket.Message.Receive(c.ws, &msg)
	return msg, err
}

func (c wsConn) Close() error { return c.ws.Close() }

func dialWebsocket(ctx context.Context, url string) (Conn, error) {
	cfg, err := websocket.NewConfig(url, origin)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return wsConn{ws: ws}, nil
}
