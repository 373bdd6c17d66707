package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Worker is a launched worker process.
type Worker interface {
	// Wait blocks until the worker exits and returns its exit code.
	Wait() (int, error)
	Signal(sig os.Signal) error
	Pid() int
}

// Launcher starts workers.
type Launcher interface {
	Launch(ctx context.Context) (Worker, error)
}

// ExecLauncher re-executes a binary as a worker subprocess.
type ExecLauncher struct {
	Path   string
	Args   []string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecLauncher returns a launcher that runs the current executable with
// the hidden worker subcommand followed by args.
func NewExecLauncher(args ...string) (*ExecLauncher, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return &ExecLauncher{
		Path:   exe,
		Args:   append([]string{"worker"}, args...),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}, nil
}

// Launch starts the worker in its own process group so terminal signals
// reach it only through the supervisor.
func (l *ExecLauncher) Launch(context.Context) (Worker, error) {
	if l == nil || l.Path == "" {
		return nil, errors.New("worker executable not configured")
	}
	cmd := exec.Command(l.Path, l.Args...) //nolint:gosec
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch worker: %w", err)
	}
	return &execWorker{cmd: cmd}, nil
}

type execWorker struct {
	cmd *exec.Cmd
}

func (w *execWorker) Wait() (int, error) {
	err := w.cmd.Wait()
	code := -1
	if w.cmd.ProcessState != nil {
		code = w.cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return code, err
	}
	return code, nil
}

func (w *execWorker) Signal(sig os.Signal) error {
	if err := w.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (w *execWorker) Pid() int { return w.cmd.Process.Pid }
