package reserve_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"twitchrec/internal/reserve"
	"twitchrec/internal/testsupport"
)

func touch(t *testing.T, path string) {
	t.Helper()
	testsupport.WriteFile(t, path, 1)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestReserveReturnsBaseWhenFree(t *testing.T) {
	base := filepath.Join(t.TempDir(), "X.mp4")
	got, err := reserve.Reserve(context.Background(), reserve.OSFS{}, base, nil)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if got != base {
		t.Fatalf("expected base path, got %q", got)
	}
}

func TestReserveRenamesExistingBaseToPartOne(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "X.mp4")
	touch(t, base)

	got, err := reserve.Reserve(context.Background(), reserve.OSFS{}, base, nil)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if want := filepath.Join(dir, "X (part 2).mp4"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if exists(base) {
		t.Fatal("expected base to be renamed away")
	}
	if !exists(filepath.Join(dir, "X (part 1).mp4")) {
		t.Fatal("expected part 1 to exist after rename")
	}
}

func TestReserveProbesPastExistingParts(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "X.mp4")
	touch(t, filepath.Join(dir, "X (part 1).mp4"))
	touch(t, filepath.Join(dir, "X (part 2).mp4"))

	got, err := reserve.Reserve(context.Background(), reserve.OSFS{}, base, nil)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if want := filepath.Join(dir, "X (part 3).mp4"); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSequencerNeverRepeatsAPath(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "X.mp4")
	seq := reserve.NewSequencer(reserve.OSFS{}, nil)

	seen := map[string]bool{}
	var previous string
	for i := 0; i < 4; i++ {
		got, err := seq.Reserve(context.Background(), base)
		if err != nil {
			t.Fatalf("Reserve #%d: %v", i, err)
		}
		if got == previous {
			t.Fatalf("reservation #%d repeated %q", i, got)
		}
		if seen[got] {
			t.Fatalf("reservation #%d returned already used %q", i, got)
		}
		seen[got] = true
		previous = got
		touch(t, got)
	}
}

type fakeFS struct {
	files     map[string]bool
	renameErr error
	checks    []string
	renames   []string
}

func (f *fakeFS) Exists(path string) (bool, error) {
	f.checks = append(f.checks, path)
	return f.files[path], nil
}

func (f *fakeFS) Rename(oldPath, newPath string) error {
	f.renames = append(f.renames, oldPath+" -> "+newPath)
	if f.renameErr != nil {
		return f.renameErr
	}
	delete(f.files, oldPath)
	f.files[newPath] = true
	return nil
}

func TestReserveSwallowsRenameErrors(t *testing.T) {
	fsys := &fakeFS{files: map[string]bool{"X.mp4": true}, renameErr: errors.New("permission denied")}

	got, err := reserve.Reserve(context.Background(), fsys, "X.mp4", nil)
	if err != nil {
		t.Fatalf("expected rename failure to be swallowed, got %v", err)
	}
	if got != "X (part 2).mp4" {
		t.Fatalf("expected part 2, got %q", got)
	}
}

func TestReserveChecksEachCandidateOnce(t *testing.T) {
	fsys := &fakeFS{files: map[string]bool{
		"X (part 1).mp4": true,
		"X (part 2).mp4": true,
		"X (part 3).mp4": true,
	}}
	got, err := reserve.Reserve(context.Background(), fsys, "X.mp4", nil)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if got != "X (part 4).mp4" {
		t.Fatalf("expected part 4, got %q", got)
	}
	want := []string{"X (part 1).mp4", "X (part 2).mp4", "X (part 3).mp4", "X (part 4).mp4"}
	if len(fsys.checks) != len(want) {
		t.Fatalf("expected checks %v, got %v", want, fsys.checks)
	}
	for i := range want {
		if fsys.checks[i] != want[i] {
			t.Fatalf("expected checks %v, got %v", want, fsys.checks)
		}
	}
}

func TestReserveHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := reserve.Reserve(ctx, &fakeFS{files: map[string]bool{}}, "X.mp4", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPartPath(t *testing.T) {
	if got := reserve.PartPath("/rec/a.b/X.mp4", 3); got != "/rec/a.b/X (part 3).mp4" {
		t.Fatalf("unexpected part path %q", got)
	}
	if got := reserve.PartPath("noext", 1); got != "noext (part 1)" {
		t.Fatalf("unexpected part path %q", got)
	}
}

func TestSequencerSkipsRenameForClaimedPathNeverWritten(t *testing.T) {
	fsys := &fakeFS{files: map[string]bool{}}
	seq := reserve.NewSequencer(fsys, nil)

	first, err := seq.Reserve(context.Background(), "X.mp4")
	if err != nil {
		t.Fatalf("first Reserve: %v", err)
	}
	second, err := seq.Reserve(context.Background(), "X.mp4")
	if err != nil {
		t.Fatalf("second Reserve: %v", err)
	}
	if first != "X.mp4" || second != "X (part 2).mp4" {
		t.Fatalf("unexpected reservations %q, %q", first, second)
	}
	if len(fsys.renames) != 0 {
		t.Fatalf("expected no rename for a path that was never written, got %v", fsys.renames)
	}
}

func TestSequencerRenamesClaimedPathOnceWritten(t *testing.T) {
	fsys := &fakeFS{files: map[string]bool{}}
	seq := reserve.NewSequencer(fsys, nil)

	first, err := seq.Reserve(context.Background(), "X.mp4")
	if err != nil {
		t.Fatalf("first Reserve: %v", err)
	}
	fsys.files[first] = true

	second, err := seq.Reserve(context.Background(), "X.mp4")
	if err != nil {
		t.Fatalf("second Reserve: %v", err)
	}
	if second != "X (part 2).mp4" {
		t.Fatalf("expected part 2, got %q", second)
	}
	if !fsys.files["X (part 1).mp4"] || fsys.files["X.mp4"] {
		t.Fatalf("expected X.mp4 renamed to part 1, files=%v", fsys.files)
	}
}
