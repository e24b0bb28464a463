package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"vsub/internal/config"
	"vsub/internal/logs"
)

// Options describes logger construction parameters.
type Options struct {
	Level            string
	Format           string
	OutputPaths      []string
	ErrorOutputPaths []string
	Development      bool
	// NoColor disables ANSI level colours even when a sink is a terminal.
	NoColor bool
}

// sink is one destination with its own handler so a terminal can be coloured
// while a log file beside it stays plain.
type sink struct {
	writer   io.Writer
	terminal bool
}

// New constructs a slog logger using the provided options. Every output path
// receives the same records; "stdout" and "stderr" name the process streams.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	sinks, err := openSinks(append(
		defaultSlice(opts.OutputPaths, []string{"stderr"}),
		opts.ErrorOutputPaths...,
	))
	if err != nil {
		return nil, err
	}

	handlers := make([]slog.Handler, 0, len(sinks))
	for _, s := range sinks {
		if format == "json" {
			handlers = append(handlers, newJSONHandler(s.writer, levelVar, addSource))
			continue
		}
		handlers = append(handlers, newPrettyHandler(s.writer, levelVar, prettyOptions{
			addSource: addSource,
			color:     s.terminal && !opts.NoColor,
		}))
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0]), nil
	}
	return slog.New(fanoutHandler(handlers)), nil
}

// NewFromConfig creates a logger using application config defaults. Console
// output goes to stderr so stdout stays free for command results; when a log
// directory is configured every line is also appended to vsub.log there.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}

	outputPaths := []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		outputPaths = append(outputPaths, filepath.Join(cfg.Paths.LogDir, logs.FileName))
	}

	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputPaths,
		NoColor:     os.Getenv("NO_COLOR") != "",
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultSlice(value []string, fallback []string) []string {
	src := value
	if len(src) == 0 {
		src = fallback
	}
	cp := make([]string, len(src))
	copy(cp, src)
	return cp
}

func openSinks(paths []string) ([]sink, error) {
	seen := map[string]struct{}{}
	var sinks []sink
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			sinks = append(sinks, sink{writer: os.Stdout, terminal: isTerminal(os.Stdout)})
		case "stderr":
			sinks = append(sinks, sink{writer: os.Stderr, terminal: isTerminal(os.Stderr)})
		default:
			if dir := filepath.Dir(trimmed); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("ensure log directory: %w", err)
				}
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			sinks = append(sinks, sink{writer: file})
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, sink{writer: os.Stderr, terminal: isTerminal(os.Stderr)})
	}
	return sinks, nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
