package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"twitchrec/internal/logging"
)

// ErrSpawn reports that ffmpeg could not be started at all.
var ErrSpawn = errors.New("capture process could not be started")

// DefaultGrace is the wait between a stop request and the forced kill.
const DefaultGrace = 2 * time.Second

// Spec describes one capture session.
type Spec struct {
	ID           string
	Streamer     string
	SessionStart time.Time
	URL          string
	Output       string
	Simulate     bool

	// Title is informational; it is carried to the spawn and exit callbacks.
	Title string
}

// Result is what a finished session reports.
type Result struct {
	ExitCode int
	// Exiting is true when a stop was requested before ffmpeg exited.
	Exiting bool
	Reason  StopReason
	// Killed is true when the grace timer fired and the group was killed.
	Killed   bool
	Duration time.Duration
	Err      error
}

// Option configures a Manager.
type Option func(*Manager)

// WithGrace overrides DefaultGrace.
func WithGrace(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.grace = d
		}
	}
}

// WithOnSpawn registers a callback invoked once ffmpeg has a process id.
func WithOnSpawn(fn func(*Session)) Option {
	return func(m *Manager) { m.onSpawn = fn }
}

// WithOnExit registers a callback invoked after ffmpeg exits and before
// Session.Done is closed.
func WithOnExit(fn func(*Session, Result)) Option {
	return func(m *Manager) { m.onExit = fn }
}

// Manager starts capture sessions.
type Manager struct {
	binary  string
	grace   time.Duration
	logger  *slog.Logger
	onSpawn func(*Session)
	onExit  func(*Session, Result)
}

// NewManager constructs a Manager for the given ffmpeg binary.
func NewManager(binary string, logger *slog.Logger, opts ...Option) (*Manager, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	m := &Manager{
		binary: binary,
		grace:  DefaultGrace,
		logger: logging.NewComponentLogger(logger, "capture"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Grace returns the configured stop grace period.
func (m *Manager) Grace() time.Duration { return m.grace }

// Start spawns ffmpeg for spec. Errors wrap ErrSpawn. The session is not tied
// to ctx; it ends when ffmpeg exits or after RequestStop.
func (m *Manager) Start(ctx context.Context, spec Spec) (*Session, error) {
	logger := logging.WithContext(logging.WithSessionID(ctx, spec.ID), m.logger)

	cmd := exec.Command(m.binary, Args(spec.URL, spec.Output, spec.Simulate)...) //nolint:gosec
	setProcessGroup(cmd)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %w", ErrSpawn, err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, m.binary, err)
	}

	s := &Session{
		Spec:    spec,
		cmd:     cmd,
		stdin:   stdin,
		grace:   m.grace,
		logger:  logger,
		started: time.Now(),
		done:    make(chan struct{}),
		onExit:  m.onExit,
	}
	logger.Debug("ffmpeg started",
		logging.Int("pid", cmd.Process.Pid),
		logging.String(logging.FieldPath, spec.Output),
		logging.Bool("simulate", spec.Simulate),
	)
	if m.onSpawn != nil {
		m.onSpawn(s)
	}
	go s.wait()
	return s, nil
}

// Session is one running ffmpeg process.
type Session struct {
	Spec

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	grace   time.Duration
	logger  *slog.Logger
	started time.Time
	onExit  func(*Session, Result)

	mu       sync.Mutex
	state    ShutdownState
	reason   StopReason
	killed   bool
	timer    *time.Timer
	deadline time.Time

	done   chan struct{}
	result Result
}

// Pid returns ffmpeg's process id.
func (s *Session) Pid() int {
	return s.cmd.Process.Pid
}

// StartedAt returns when ffmpeg was spawned.
func (s *Session) StartedAt() time.Time {
	return s.started
}

// State returns the current shutdown state.
func (s *Session) State() ShutdownState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Deadline returns when the forced kill fires, or the zero time when no stop
// has been requested.
func (s *Session) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

// Done is closed once ffmpeg has exited and the exit callback has returned.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until ffmpeg exits and returns its Result.
func (s *Session) Wait() Result {
	<-s.done
	return s.result
}

// RequestStop asks ffmpeg to quit and arms the forced kill. Only the first
// call has any effect; it returns false for every later call and after exit.
func (s *Session) RequestStop(reason StopReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return false
	}
	s.state = StopRequested
	s.reason = reason

	if _, err := io.WriteString(s.stdin, "q\n"); err != nil {
		s.logger.Debug("quit command not delivered", logging.Error(err))
	}

	s.deadline = time.Now().Add(s.grace)
	s.timer = time.AfterFunc(s.grace, s.forceKill)
	s.state = ForceKillScheduled
	s.logger.Debug("stop requested",
		logging.String("reason", reason.String()),
		logging.Duration("grace", s.grace),
	)
	return true
}

func (s *Session) forceKill() {
	s.mu.Lock()
	if s.state == Exited {
		s.mu.Unlock()
		return
	}
	s.killed = true
	s.mu.Unlock()

	logging.WarnWithContext(s.logger, "ffmpeg did not stop within grace period", "capture_force_kill",
		logging.Duration("grace", s.grace),
		logging.String(logging.FieldImpact, "recording tail may be truncated"),
		logging.String(logging.FieldErrorHint, "ffmpeg ignored the quit command"),
	)
	if err := killProcessGroup(s.cmd.Process.Pid); err != nil {
		s.logger.Debug("kill process group failed", logging.Error(err))
	}
}

func (s *Session) wait() {
	waitErr := s.cmd.Wait()

	s.mu.Lock()
	exiting := s.state != Running
	s.state = Exited
	if s.timer != nil {
		s.timer.Stop()
	}
	res := Result{
		ExitCode: exitCode(s.cmd, waitErr),
		Exiting:  exiting,
		Reason:   s.reason,
		Killed:   s.killed,
		Duration: time.Since(s.started),
	}
	s.mu.Unlock()

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		res.Err = waitErr
	}
	s.logger.Debug("ffmpeg exited",
		logging.Int(logging.FieldExitCode, res.ExitCode),
		logging.Bool("exiting", res.Exiting),
		logging.Duration("duration", res.Duration),
	)

	s.result = res
	if s.onExit != nil {
		s.onExit(s, res)
	}
	close(s.done)
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
