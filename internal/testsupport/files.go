package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Stub ffmpeg behaviours. Each script treats its last argument as the output
// path and leaves the null sink ("-") alone.
const (
	// FFmpegExitImmediately writes the output and exits 0.
	FFmpegExitImmediately = "#!/bin/sh\nfor last; do :; done\n[ \"$last\" = - ] || echo data > \"$last\"\nexit 0\n"
	// FFmpegUntilQuit writes the output and runs until a q line arrives on stdin.
	FFmpegUntilQuit = "#!/bin/sh\nfor last; do :; done\n[ \"$last\" = - ] || echo data > \"$last\"\nwhile read -r line; do\n  [ \"$line\" = q ] && exit 0\ndone\nexit 0\n"
	// FFmpegIgnoreQuit never reacts to stdin and has to be killed.
	FFmpegIgnoreQuit = "#!/bin/sh\nexec sleep 30\n"
	// FFmpegFail exits non-zero straight away.
	FFmpegFail = "#!/bin/sh\nexit 1\n"
)

// WriteScript writes an executable shell script named name into dir and
// returns its absolute path.
func WriteScript(t testing.TB, dir, name, script string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}
