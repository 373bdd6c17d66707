// Package reserve picks collision-free recording paths.
//
// A base path P.ext is returned unchanged while nothing occupies it. Once P.ext
// exists it is renamed to "P (part 1).ext" and the new recording becomes
// "P (part 2).ext"; after that, parts are probed upward until a free one is
// found. Every candidate costs exactly one existence check.
package reserve

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"twitchrec/internal/logging"
)

// FS is the filesystem surface the sequencer needs.
type FS interface {
	Exists(path string) (bool, error)
	Rename(oldPath, newPath string) error
}

// OSFS implements FS against the real filesystem.
type OSFS struct{}

func (OSFS) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (OSFS) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// Request is one candidate under consideration.
type Request struct {
	BasePath string
	// Part is 0 while the unnumbered base is being considered.
	Part int
}

// Candidate returns the path this request probes.
func (r Request) Candidate() string {
	if r.Part == 0 {
		return r.BasePath
	}
	return PartPath(r.BasePath, r.Part)
}

// Step is the result of evaluating one Request: either a final path or the
// next request to evaluate.
type Step struct {
	Path string
	Next *Request
}

// Final reports whether the step carries the chosen path.
func (s Step) Final() bool { return s.Next == nil }

func final(path string) Step { return Step{Path: path} }

func next(req Request) Step { return Step{Next: &req} }

// PartPath returns "<dir>/<stem> (part N)<ext>" for base.
func PartPath(base string, part int) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s (part %d)%s", stem, part, ext)
}

// Sequencer hands out recording paths. Paths returned by one Sequencer are
// remembered and treated as occupied, so two reservations in a row never
// yield the same path even if the first has not been written yet.
type Sequencer struct {
	fs     FS
	logger *slog.Logger

	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewSequencer constructs a Sequencer. A nil fs uses OSFS.
func NewSequencer(fsys FS, logger *slog.Logger) *Sequencer {
	if fsys == nil {
		fsys = OSFS{}
	}
	return &Sequencer{
		fs:      fsys,
		logger:  logging.NewComponentLogger(logger, "reserve"),
		claimed: make(map[string]struct{}),
	}
}

// Reserve returns a path for base that was unused at the moment it was
// checked. Rename failures are logged and do not stop the reservation.
func (s *Sequencer) Reserve(ctx context.Context, base string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.run(ctx, base)
	if err != nil {
		return "", err
	}
	s.claimed[path] = struct{}{}
	return path, nil
}

// Reserve is a one-shot reservation without claim tracking.
func Reserve(ctx context.Context, fsys FS, base string, logger *slog.Logger) (string, error) {
	s := NewSequencer(fsys, logger)
	return s.Reserve(ctx, base)
}

func (s *Sequencer) run(ctx context.Context, base string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", errors.New("reserve: empty base path")
	}

	firstPart, err := s.exists(PartPath(base, 1))
	if err != nil {
		return "", err
	}
	var req Request
	if firstPart {
		req = Request{BasePath: base, Part: 2}
	} else {
		req = Request{BasePath: base, Part: 0}
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		step, err := s.evaluate(req)
		if err != nil {
			return "", err
		}
		if step.Final() {
			return step.Path, nil
		}
		req = *step.Next
	}
}

func (s *Sequencer) evaluate(req Request) (Step, error) {
	candidate := req.Candidate()
	onDisk, err := s.onDisk(candidate)
	if err != nil {
		return Step{}, err
	}
	_, claimed := s.claimed[candidate]
	if !onDisk && !claimed {
		return final(candidate), nil
	}
	if req.Part == 0 {
		partOne := PartPath(req.BasePath, 1)
		if !onDisk {
			// Handed out earlier but never written; there is nothing to rename.
			s.logger.Debug("unnumbered path claimed without a file, skipping part 1 rename",
				logging.String(logging.FieldPath, candidate),
			)
			return next(Request{BasePath: req.BasePath, Part: 2}), nil
		}
		// The unnumbered recording becomes part 1 retroactively.
		if err := s.fs.Rename(candidate, partOne); err != nil {
			logging.WarnWithContext(s.logger, "could not rename existing recording to part 1", "reserve_rename_failed",
				logging.String(logging.FieldPath, candidate),
				logging.String("target", partOne),
				logging.Error(err),
				logging.String(logging.FieldImpact, "existing recording keeps its unnumbered name"),
				logging.String(logging.FieldErrorHint, "check permissions on the recordings directory"),
			)
		} else {
			s.logger.Debug("renamed existing recording",
				logging.String(logging.FieldPath, candidate),
				logging.String("target", partOne),
			)
		}
		return next(Request{BasePath: req.BasePath, Part: 2}), nil
	}
	return next(Request{BasePath: req.BasePath, Part: req.Part + 1}), nil
}

func (s *Sequencer) exists(path string) (bool, error) {
	if _, ok := s.claimed[path]; ok {
		return true, nil
	}
	return s.onDisk(path)
}

func (s *Sequencer) onDisk(path string) (bool, error) {
	ok, err := s.fs.Exists(path)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", path, err)
	}
	return ok, nil
}
