// Package deps reports on the external binaries twitchrec relies on.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Requirement defines an external dependency twitchrec relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
// Available entries carry the resolved absolute path in Command.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := lookup(cmd)
		if err != nil {
			status.Detail = err.Error()
			results = append(results, status)
			continue
		}
		status.Command = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

// lookup resolves bare names through PATH and checks explicit paths directly.
func lookup(cmd string) (string, error) {
	if !strings.ContainsRune(cmd, filepath.Separator) && !strings.ContainsRune(cmd, '/') {
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			return "", fmt.Errorf("binary %q not found", cmd)
		}
		return resolved, nil
	}
	info, err := os.Stat(cmd)
	if err != nil {
		return "", fmt.Errorf("binary %q not found", cmd)
	}
	if !isExecutable(info) {
		return "", fmt.Errorf("binary %q is not executable", cmd)
	}
	abs, err := filepath.Abs(cmd)
	if err != nil {
		return cmd, nil
	}
	return abs, nil
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
