package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"twitchrec/internal/config"
	"twitchrec/internal/logging"
	"twitchrec/internal/notifications"
)

// ErrAlreadyRunning reports that another supervisor holds the streamer lock.
var ErrAlreadyRunning = errors.New("another twitchrec supervisor is already running for this streamer")

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLauncher overrides the exec launcher.
func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) { s.launcher = l }
}

// WithProber overrides the DNS prober.
func WithProber(p Prober) Option {
	return func(s *Supervisor) { s.prober = p }
}

// WithNotifier overrides the ntfy service built from config.
func WithNotifier(n notifications.Service) Option {
	return func(s *Supervisor) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithRestartDelay overrides the configured delay between restart attempts.
func WithRestartDelay(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithSignals replaces the OS signal subscription.
func WithSignals(ch <-chan os.Signal) Option {
	return func(s *Supervisor) { s.signals = ch }
}

// Supervisor restarts a worker after abnormal exits.
type Supervisor struct {
	streamer string
	logger   *slog.Logger
	launcher Launcher
	prober   Prober
	notifier notifications.Service
	delay    time.Duration
	lockPath string
	signals  <-chan os.Signal

	attempts atomic.Int64
}

// New builds a Supervisor. A Launcher must be supplied with WithLauncher.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Supervisor, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Supervisor{
		streamer: cfg.Streamer,
		logger:   logging.NewComponentLogger(logger, "supervisor").With(logging.String(logging.FieldStreamer, cfg.Streamer)),
		prober:   DNSProber{Host: cfg.Supervisor.ProbeHost},
		notifier: notifications.NewService(cfg),
		delay:    cfg.RestartDelay(),
		lockPath: cfg.LockPath(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.launcher == nil {
		return nil, errors.New("worker launcher is required")
	}
	if s.delay <= 0 {
		s.delay = time.Second
	}
	return s, nil
}

// Attempts returns the number of consecutive failed reachability probes.
func (s *Supervisor) Attempts() int {
	return int(s.attempts.Load())
}

// Run supervises workers until one exits cleanly or a stop is requested.
func (s *Supervisor) Run(ctx context.Context) error {
	lock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release supervisor lock", logging.Error(err))
		}
	}()

	signals := s.signals
	if signals == nil {
		ch := make(chan os.Signal, 2)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
		defer signal.Stop(ch)
		signals = ch
	}

	for {
		code, stopped := s.runOnce(ctx, signals)
		if stopped {
			s.logger.Info("supervisor stopped")
			return nil
		}
		if code == 0 {
			s.logger.Info("worker exited cleanly")
			return nil
		}
		logging.WarnWithContext(s.logger, "worker exited abnormally", "worker_crashed",
			logging.Int(logging.FieldExitCode, code),
			logging.String(logging.FieldImpact, "recording paused until the worker restarts"),
			logging.String(logging.FieldErrorHint, "see the worker log lines above"),
		)
		if !s.awaitReachable(ctx, signals) {
			s.logger.Info("supervisor stopped")
			return nil
		}
	}
}

// runOnce launches one worker and waits for it. stopped reports a user stop.
func (s *Supervisor) runOnce(ctx context.Context, signals <-chan os.Signal) (int, bool) {
	w, err := s.launcher.Launch(ctx)
	if err != nil {
		logging.ErrorWithContext(s.logger, "worker launch failed", "worker_launch_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no recording until a launch succeeds"),
		)
		return -1, ctx.Err() != nil
	}
	if prev := s.attempts.Swap(0); prev > 0 {
		s.logger.Info("worker restarted", logging.Int(logging.FieldAttempt, int(prev)))
	}
	s.logger.Debug("worker started", logging.Int("pid", w.Pid()))

	type exit struct {
		code int
		err  error
	}
	exited := make(chan exit, 1)
	go func() {
		code, err := w.Wait()
		exited <- exit{code: code, err: err}
	}()

	stopping := false
	done := ctx.Done()
	for {
		select {
		case res := <-exited:
			if res.err != nil {
				s.logger.Warn("worker wait failed", logging.Error(res.err))
			}
			return res.code, stopping
		case sig := <-signals:
			s.logger.Info("forwarding signal to worker", logging.String("signal", sig.String()))
			stopping = true
			if err := w.Signal(sig); err != nil {
				s.logger.Debug("signal not delivered", logging.Error(err))
			}
		case <-done:
			done = nil
			if !stopping {
				stopping = true
				if err := w.Signal(syscall.SIGTERM); err != nil {
					s.logger.Debug("signal not delivered", logging.Error(err))
				}
			}
		}
	}
}

// awaitReachable waits and probes until the network is reachable. It returns
// false when a stop is requested first.
func (s *Supervisor) awaitReachable(ctx context.Context, signals <-chan os.Signal) bool {
	for {
		if !s.sleep(ctx, signals) {
			return false
		}
		err := s.prober.Probe(ctx)
		if err == nil {
			attempt := s.Attempts()
			s.logger.Info("network reachable, restarting worker", logging.Int(logging.FieldAttempt, attempt))
			go func() {
				notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := s.notifier.NotifyRestart(notifyCtx, s.streamer, attempt); err != nil {
					s.logger.Debug("restart notification failed", logging.Error(err))
				}
			}()
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		attempt := s.attempts.Add(1)
		logging.WarnWithContext(s.logger, "network unreachable, retrying", "restart_probe_failed",
			logging.Int(logging.FieldAttempt, int(attempt)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "worker restart postponed"),
			logging.String(logging.FieldErrorHint, "check network connectivity and DNS"),
		)
	}
}

func (s *Supervisor) sleep(ctx context.Context, signals <-chan os.Signal) bool {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case sig := <-signals:
		s.logger.Info("restart cancelled", logging.String("signal", sig.String()))
		return false
	}
}

func (s *Supervisor) lockDir() string { return filepath.Dir(s.lockPath) }

func (s *Supervisor) acquireLock() (*flock.Flock, error) {
	if err := os.MkdirAll(s.lockDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(s.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, s.lockPath)
	}
	return lock, nil
}
