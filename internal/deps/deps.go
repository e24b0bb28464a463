package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// versionTimeout bounds each version probe; a hung tool must not stall
// `vsub check`.
const versionTimeout = 5 * time.Second

// Requirement defines an external binary vsub shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArgs, when set, are passed to the binary to read its version
	// from the first line of output.
	VersionArgs []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Version     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Summary is the one-line description shown by preflight checks.
func (s Status) Summary() string {
	switch {
	case !s.Available:
		return s.Detail
	case s.Version != "":
		return fmt.Sprintf("%s (%s)", s.Path, s.Version)
	default:
		return s.Path
	}
}

// CheckBinaries resolves each requirement on PATH and, for those found,
// probes the version. A failed probe leaves Version empty but does not make
// the binary unavailable.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch resolved, err := lookPath(status.Command); {
		case status.Command == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		default:
			status.Path = resolved
			status.Available = true
			if len(req.VersionArgs) > 0 {
				status.Version = probeVersion(ctx, resolved, req.VersionArgs)
			}
		}
		results = append(results, status)
	}
	return results
}

func lookPath(cmd string) (string, error) {
	if cmd == "" {
		return "", exec.ErrNotFound
	}
	return exec.LookPath(cmd)
}

func probeVersion(ctx context.Context, path string, args []string) string {
	probeCtx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, path, args...).Output()
	if err != nil {
		return ""
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line
		}
	}
	return ""
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
