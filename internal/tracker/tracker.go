// Package tracker owns the channel's live/recording state.
//
// Two independent producers feed it: a one-shot poll at startup and the push
// feed's stream-up/stream-down events. Both go through Apply, which runs the
// pure Transition function under a single mutex. The "start only when not
// already live" guard inside Transition is what keeps one live period from
// producing two capture sessions, so no producer may touch State directly.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"twitchrec/internal/logging"
)

// State is the tracked channel state. A zero SessionStart means no live
// period is open.
type State struct {
	Live         bool      `json:"live"`
	Recording    bool      `json:"recording"`
	SessionStart time.Time `json:"session_start,omitzero"`
}

// Event is one input to Transition.
type Event interface {
	eventName() string
}

// PollLive is the startup poll reporting the channel live.
type PollLive struct{ At time.Time }

// PollOffline is the startup poll reporting the channel offline.
type PollOffline struct{}

// StreamUp is a push-feed stream-up event. At is the server timestamp.
type StreamUp struct{ At time.Time }

// StreamDown is a push-feed stream-down event.
type StreamDown struct{}

func (PollLive) eventName() string    { return "poll_live" }
func (PollOffline) eventName() string { return "poll_offline" }
func (StreamUp) eventName() string    { return "stream_up" }
func (StreamDown) eventName() string  { return "stream_down" }

// Transition applies ev to s. The boolean is true when a capture session must
// be started for the new live period.
func Transition(s State, ev Event) (State, bool) {
	switch e := ev.(type) {
	case PollLive:
		return goLive(s, e.At)
	case StreamUp:
		return goLive(s, e.At)
	case StreamDown:
		if !s.Live {
			return s, false
		}
		s.Live = false
		s.SessionStart = time.Time{}
		return s, false
	default:
		return s, false
	}
}

func goLive(s State, at time.Time) (State, bool) {
	if s.Live {
		return s, false
	}
	s.Live = true
	s.SessionStart = at
	return s, true
}

// StartFunc begins a capture session for a live period starting at start.
type StartFunc func(ctx context.Context, start time.Time)

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides time.Now for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithObserver registers a callback invoked with every changed state, outside
// the lock.
func WithObserver(fn func(State)) Option {
	return func(t *Tracker) { t.observer = fn }
}

// Tracker serializes state transitions for one channel.
type Tracker struct {
	streamer string
	logger   *slog.Logger
	onStart  StartFunc
	observer func(State)
	now      func() time.Time

	mu    sync.Mutex
	state State

	wg sync.WaitGroup
}

// New constructs a Tracker in the initial offline, not-recording state.
func New(streamer string, logger *slog.Logger, onStart StartFunc, opts ...Option) *Tracker {
	t := &Tracker{
		streamer: streamer,
		logger:   logging.NewComponentLogger(logger, "tracker"),
		onStart:  onStart,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Apply runs ev through Transition. When a session must start, the start
// handler is launched in its own goroutine after the lock is released, and
// Apply returns true.
func (t *Tracker) Apply(ctx context.Context, ev Event) bool {
	ev = t.stamp(ev)

	t.mu.Lock()
	prev := t.state
	next, start := Transition(prev, ev)
	t.state = next
	t.mu.Unlock()

	t.logTransition(ev, prev, next)
	if next != prev && t.observer != nil {
		t.observer(next)
	}
	if start && t.onStart != nil {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.onStart(ctx, next.SessionStart)
		}()
	}
	return start
}

// SetRecording records whether ffmpeg is running. It never changes Live.
func (t *Tracker) SetRecording(recording bool) {
	t.mu.Lock()
	prev := t.state
	t.state.Recording = recording
	next := t.state
	t.mu.Unlock()

	if next != prev && t.observer != nil {
		t.observer(next)
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Wait blocks until every start handler launched by Apply has returned.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) stamp(ev Event) Event {
	switch e := ev.(type) {
	case PollLive:
		if e.At.IsZero() {
			e.At = t.now()
		}
		return e
	case StreamUp:
		if e.At.IsZero() {
			e.At = t.now()
		}
		return e
	default:
		return ev
	}
}

func (t *Tracker) logTransition(ev Event, prev, next State) {
	attrs := []logging.Attr{
		logging.String(logging.FieldStreamer, t.streamer),
		logging.String(logging.FieldEventType, ev.eventName()),
	}
	switch {
	case !prev.Live && next.Live:
		t.logger.Info("channel is live", logging.Args(append(attrs, logging.Time("session_start", next.SessionStart))...)...)
	case prev.Live && !next.Live:
		t.logger.Info("channel is offline", logging.Args(attrs...)...)
	case !next.Live:
		if _, ok := ev.(PollOffline); ok {
			t.logger.Info("channel is offline", logging.Args(attrs...)...)
			return
		}
		t.logger.Debug("event ignored while offline", logging.Args(attrs...)...)
	default:
		t.logger.Debug("event ignored while live", logging.Args(attrs...)...)
	}
}
