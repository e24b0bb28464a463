package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInput marks a missing or corrupt source file.
	ErrInput = errors.New("input error")
	// ErrFormat marks an intermediate artifact that exists but cannot be parsed.
	ErrFormat = errors.New("format error")
	// ErrEngine marks a failed speech-to-text call.
	ErrEngine = errors.New("engine error")
	// ErrEncoding marks subtitle text the output encoding cannot represent.
	ErrEncoding = errors.New("encoding error")
	// ErrNotFound marks an expected artifact that does not exist yet.
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
	ErrExternalTool  = errors.New("external tool error")
	// ErrBusy is returned when another process holds the workspace lock.
	ErrBusy = errors.New("workspace busy")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Marker returns the sentinel an error was tagged with, or nil when the error
// carries none of the known markers.
func Marker(err error) error {
	if err == nil {
		return nil
	}
	for _, marker := range []error{ErrInput, ErrFormat, ErrEngine, ErrEncoding, ErrNotFound, ErrConfiguration, ErrBusy, ErrExternalTool} {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return nil
}

// ExitCode maps a pipeline error to the process exit status reported by the CLI.
func ExitCode(err error) int {
	switch Marker(err) {
	case nil:
		if err == nil {
			return 0
		}
		return 1
	case ErrInput:
		return 2
	case ErrFormat:
		return 3
	case ErrEngine:
		return 4
	case ErrEncoding:
		return 5
	case ErrBusy:
		return 6
	default:
		return 1
	}
}

// Hint returns a short operator-facing remedy for a classified error.
func Hint(err error) string {
	switch Marker(err) {
	case ErrInput:
		return "check that the source path exists and contains an audio stream"
	case ErrFormat:
		return "delete the stale artifact or rerun with --fresh to recompute it"
	case ErrEngine:
		return "rerun to resume after the last transcribed segment"
	case ErrEncoding:
		return "choose an output encoding that covers the transcript, such as utf-8"
	case ErrBusy:
		return "another vsub process is working on this input"
	case ErrConfiguration:
		return "run vsub config init and review the config file"
	case ErrExternalTool:
		return "run vsub check to verify ffmpeg, ffprobe and uvx"
	default:
		return ""
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
