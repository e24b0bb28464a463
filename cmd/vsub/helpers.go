package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vsub/internal/config"
	"vsub/internal/services"
)

// resolveSource expands and checks a video path argument.
func resolveSource(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", services.Wrap(services.ErrInput, "cli", "resolve source", "video path is required", nil)
	}
	path, err := config.ExpandPath(arg)
	if err != nil {
		return "", err
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrInput, "cli", "resolve source", path, err)
		}
		return "", fmt.Errorf("inspect path %q: %w", path, err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrInput, "cli", "resolve source", path+" is a directory", nil)
	}
	return path, nil
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
