package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"twitchrec/internal/api"
	"twitchrec/internal/capture"
	"twitchrec/internal/config"
	"twitchrec/internal/deps"
	"twitchrec/internal/history"
	"twitchrec/internal/logging"
	"twitchrec/internal/notifications"
	"twitchrec/internal/reserve"
	"twitchrec/internal/tracker"
	"twitchrec/internal/twitch"
	"twitchrec/internal/twitch/pubsub"
)

// exitMargin is how long shutdown waits past the grace deadline for the
// killed process group to be reaped.
const exitMargin = 500 * time.Millisecond

// ExitCode maps Run's result to the worker process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// Option configures a Worker.
type Option func(*Worker)

// WithSignals replaces the OS signal subscription. Every value received is
// treated as a user stop.
func WithSignals(ch <-chan os.Signal) Option {
	return func(w *Worker) { w.signals = ch }
}

// WithNotifier overrides the ntfy service built from config.
func WithNotifier(n notifications.Service) Option {
	return func(w *Worker) {
		if n != nil {
			w.notifier = n
		}
	}
}

// WithHistory overrides the ledger opened from config.
func WithHistory(r history.Recorder) Option {
	return func(w *Worker) {
		w.history = r
		w.historySet = true
	}
}

// WithFS overrides the filesystem used for path reservation.
func WithFS(fsys reserve.FS) Option {
	return func(w *Worker) {
		if fsys != nil {
			w.fs = fsys
		}
	}
}

// WithTwitchOptions passes options to the channel API client.
func WithTwitchOptions(opts ...twitch.Option) Option {
	return func(w *Worker) { w.twitchOpts = append(w.twitchOpts, opts...) }
}

// WithPubSubOptions passes options to the push feed client.
func WithPubSubOptions(opts ...pubsub.Option) Option {
	return func(w *Worker) { w.pubsubOpts = append(w.pubsubOpts, opts...) }
}

// Worker watches one channel and records its live periods.
type Worker struct {
	cfg    *config.Config
	logger *slog.Logger

	client   *twitch.Client
	feed     *pubsub.Client
	tracker  *tracker.Tracker
	seq      *reserve.Sequencer
	capture  *capture.Manager
	notifier notifications.Service
	history  history.Recorder
	metrics  *api.Metrics
	server   *api.Server

	fs         reserve.FS
	signals    <-chan os.Signal
	twitchOpts []twitch.Option
	pubsubOpts []pubsub.Option
	closers    []func() error
	historySet bool

	fail func(error)

	mu         sync.Mutex
	active     *capture.Session
	stopping   bool
	stopReason capture.StopReason
}

// New wires a Worker from configuration. The ffmpeg binary must resolve.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Worker, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Worker{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "worker").With(logging.String(logging.FieldStreamer, cfg.Streamer)),
		notifier: notifications.NewService(cfg),
		metrics:  api.NewMetrics(cfg.Streamer),
		fs:       reserve.OSFS{},
		fail:     func(error) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	ffmpeg, err := deps.ResolveFFmpeg(cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve ffmpeg: %w", err)
	}
	w.capture, err = capture.NewManager(ffmpeg, logger,
		capture.WithGrace(cfg.GracePeriod()),
		capture.WithOnSpawn(w.onSpawn),
		capture.WithOnExit(w.onExit),
	)
	if err != nil {
		return nil, err
	}

	if !w.historySet && cfg.History.Enabled {
		store, err := history.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		w.history = store
		w.closers = append(w.closers, store.Close)
	}

	w.client = twitch.NewFromConfig(cfg, logger, w.twitchOpts...)
	w.feed = pubsub.New(cfg.Twitch.PubSubURL, w.client.Login(), logger, w.pubsubOpts...)
	w.seq = reserve.NewSequencer(w.fs, logger)
	w.tracker = tracker.New(cfg.Streamer, logger, w.startSession, tracker.WithObserver(w.observe))
	w.server = api.NewServer(cfg, api.StatusFunc(w.Status), w.metrics, logger)
	return w, nil
}

// Close releases resources opened by New.
func (w *Worker) Close() error {
	var errs []error
	for _, closer := range w.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	w.closers = nil
	return errors.Join(errs...)
}

// Tracker exposes the live-state tracker.
func (w *Worker) Tracker() *tracker.Tracker { return w.tracker }

// Run watches the channel until a stop signal or a fault. It returns nil for
// a user stop and the causing error otherwise.
func (w *Worker) Run(parent context.Context) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)
	w.fail = func(err error) { cancel(err) }

	signals := w.signals
	if signals == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
		defer signal.Stop(ch)
		signals = ch
	}

	w.logStartup()

	g, gctx := errgroup.WithContext(ctx)
	if err := w.server.Start(gctx); err != nil {
		logging.WarnWithContext(w.logger, "status api unavailable", "api_start_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "status and metrics endpoints disabled"),
			logging.String(logging.FieldErrorHint, "check api.bind"),
		)
	}
	g.Go(func() error { return w.poll(gctx) })
	g.Go(func() error {
		return w.feed.Run(gctx, func(ev pubsub.Event) { w.handlePush(gctx, ev) })
	})

	var (
		reason capture.StopReason
		runErr error
	)
	select {
	case sig := <-signals:
		w.logger.Info("received signal, stopping", logging.String("signal", sig.String()))
		reason = capture.StopUser
	case <-gctx.Done():
		if parent.Err() != nil {
			w.logger.Info("shutdown requested, stopping")
			reason = capture.StopUser
		} else {
			runErr = context.Cause(gctx)
			reason = capture.StopFault
		}
	}

	w.awaitSession(w.beginShutdown(reason))
	cancel(nil)
	if err := g.Wait(); err != nil && runErr == nil && reason == capture.StopFault {
		runErr = err
	}
	w.tracker.Wait()
	w.awaitSession(w.current())

	if reason == capture.StopFault {
		if runErr == nil {
			runErr = errors.New("worker stopped after an internal fault")
		}
		logging.ErrorWithContext(w.logger, "worker stopping after fault", "worker_fault",
			logging.Error(runErr),
			logging.String(logging.FieldImpact, "supervisor will restart the worker"),
		)
		return runErr
	}
	w.logger.Info("worker stopped")
	return nil
}

func (w *Worker) logStartup() {
	if w.cfg.Developer.Debug {
		w.logger.Info("debug mode enabled", logging.String("debug_log", w.cfg.Developer.Log))
	}
	if w.cfg.Developer.Simulate {
		w.logger.Info("downloading disabled, captures are discarded")
	}
	w.logger.Info("watching channel",
		logging.String("topic", w.feed.Topic()),
		logging.Any("stream_format", w.cfg.Recorder.StreamFormat),
	)
}

// poll performs the one-shot startup liveness check.
func (w *Worker) poll(ctx context.Context) (err error) {
	defer w.guard("poll", &err)
	live, err := w.client.IsLive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("poll channel: %w", err)
	}
	if live {
		w.tracker.Apply(ctx, tracker.PollLive{})
	} else {
		w.tracker.Apply(ctx, tracker.PollOffline{})
	}
	return nil
}

func (w *Worker) handlePush(ctx context.Context, ev pubsub.Event) {
	defer w.guard("push event", nil)
	w.metrics.IncPushEvent(string(ev.Type))
	switch ev.Type {
	case pubsub.EventConnect:
		w.logger.Info("connected to push feed", logging.String("topic", w.feed.Topic()))
	case pubsub.EventClose:
		w.logger.Info("push feed closed", logging.String("reason", ev.Raw))
	case pubsub.EventRaw:
		if w.cfg.Developer.Verbose {
			w.logger.Debug("push feed message", logging.String("raw", ev.Raw))
		}
	case pubsub.EventStreamUp:
		w.tracker.Apply(ctx, tracker.StreamUp{At: ev.ServerTime})
	case pubsub.EventStreamDown:
		w.tracker.Apply(ctx, tracker.StreamDown{})
	}
}

// guard converts a panic into a worker fault. When errp is non-nil the panic
// is also reported through it.
func (w *Worker) guard(where string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	err := fmt.Errorf("panic in %s: %v", where, r)
	if errp != nil {
		*errp = err
	}
	w.fail(err)
}

func (w *Worker) observe(state tracker.State) {
	w.metrics.SetLive(state.Live)
	w.metrics.SetRecording(state.Recording)
}

func (w *Worker) beginShutdown(reason capture.StopReason) *capture.Session {
	w.mu.Lock()
	w.stopping = true
	w.stopReason = reason
	sess := w.active
	w.mu.Unlock()
	if sess != nil {
		sess.RequestStop(reason)
	}
	return sess
}

func (w *Worker) current() *capture.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// awaitSession blocks until sess exits or its grace deadline passes.
func (w *Worker) awaitSession(sess *capture.Session) {
	if sess == nil {
		return
	}
	deadline := sess.Deadline()
	if deadline.IsZero() {
		deadline = time.Now().Add(w.capture.Grace())
	}
	timer := time.NewTimer(time.Until(deadline) + exitMargin)
	defer timer.Stop()
	select {
	case <-sess.Done():
	case <-timer.C:
		logging.WarnWithContext(w.logger, "capture still running at grace deadline", "capture_exit_timeout",
			logging.String(logging.FieldSessionID, sess.ID),
			logging.String(logging.FieldImpact, "worker exits without waiting for ffmpeg"),
		)
	}
}
