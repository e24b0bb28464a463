package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the locations vsub writes to.
type Paths struct {
	WorkDir    string `toml:"work_dir"`
	LogDir     string `toml:"log_dir"`
	LedgerPath string `toml:"ledger_path"`
}

// Splitter controls silence detection and segment bounds.
type Splitter struct {
	// SilenceThresholdDBFS is the RMS level below which a frame counts as silent.
	SilenceThresholdDBFS float64 `toml:"silence_threshold_dbfs"`
	MinSilenceMS         int     `toml:"min_silence_ms"`
	MinSegmentMS         int     `toml:"min_segment_ms"`
	MaxSegmentMS         int     `toml:"max_segment_ms"`
}

// Merge controls how transcribed chunks are combined into subtitle entries.
type Merge struct {
	ContinuationGapMS int `toml:"continuation_gap_ms"`
	MaxChars          int `toml:"max_chars"`
	MaxDurationMS     int `toml:"max_duration_ms"`
}

// WhisperX contains settings for the local WhisperX engine.
type WhisperX struct {
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
}

// OpenAI contains settings for an OpenAI-compatible transcription endpoint.
type OpenAI struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Transcription selects and configures the speech-to-text engine.
type Transcription struct {
	Engine   string   `toml:"engine"`
	Language string   `toml:"language"`
	Workers  int      `toml:"workers"`
	WhisperX WhisperX `toml:"whisperx"`
	OpenAI   OpenAI   `toml:"openai"`
}

// Subtitles controls the rendered subtitle file.
type Subtitles struct {
	Encoding  string `toml:"encoding"`
	LineWidth int    `toml:"line_width"`
}

// Cache controls how artifact workspaces are keyed.
type Cache struct {
	// Key is "content" (name plus content fingerprint) or "name" (file name only).
	Key string `toml:"key"`
}

// Tools names the external binaries vsub shells out to.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
	UVX     string `toml:"uvx"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vsub.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Splitter      Splitter      `toml:"splitter"`
	Merge         Merge         `toml:"merge"`
	Transcription Transcription `toml:"transcription"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Cache         Cache         `toml:"cache"`
	Tools         Tools         `toml:"tools"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vsub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the work and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.LogDir}
	if c.Paths.LedgerPath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.LedgerPath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for audio extraction.
func (c *Config) FFmpegBinary() string {
	if c.Tools.FFmpeg != "" {
		return c.Tools.FFmpeg
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for input validation.
func (c *Config) FFprobeBinary() string {
	if c.Tools.FFprobe != "" {
		return c.Tools.FFprobe
	}
	return "ffprobe"
}

// UVXBinary returns the uvx launcher used to run WhisperX.
func (c *Config) UVXBinary() string {
	if c.Tools.UVX != "" {
		return c.Tools.UVX
	}
	return "uvx"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
