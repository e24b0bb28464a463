package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeSubtitles()
	c.Cache.Key = strings.ToLower(strings.TrimSpace(c.Cache.Key))
	if c.Cache.Key == "" {
		c.Cache.Key = defaultCacheKey
	}
	c.Tools.FFmpeg = strings.TrimSpace(c.Tools.FFmpeg)
	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	c.Tools.UVX = strings.TrimSpace(c.Tools.UVX)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Engine = strings.ToLower(strings.TrimSpace(t.Engine))
	if t.Engine == "" {
		t.Engine = defaultEngine
	}
	t.Language = strings.ToLower(strings.TrimSpace(t.Language))
	if t.Workers <= 0 {
		t.Workers = defaultWorkers
	}

	t.WhisperX.Model = strings.TrimSpace(t.WhisperX.Model)
	if t.WhisperX.Model == "" {
		t.WhisperX.Model = defaultWhisperXModel
	}
	t.WhisperX.VADMethod = strings.ToLower(strings.TrimSpace(t.WhisperX.VADMethod))
	if t.WhisperX.VADMethod == "" {
		t.WhisperX.VADMethod = defaultWhisperXVAD
	}
	t.WhisperX.HFToken = strings.TrimSpace(t.WhisperX.HFToken)
	if t.WhisperX.HFToken == "" {
		t.WhisperX.HFToken = firstEnv("HUGGING_FACE_HUB_TOKEN", "HF_TOKEN")
	}

	t.OpenAI.BaseURL = strings.TrimRight(strings.TrimSpace(t.OpenAI.BaseURL), "/")
	if t.OpenAI.BaseURL == "" {
		t.OpenAI.BaseURL = defaultOpenAIBaseURL
	}
	t.OpenAI.Model = strings.TrimSpace(t.OpenAI.Model)
	if t.OpenAI.Model == "" {
		t.OpenAI.Model = defaultOpenAIModel
	}
	t.OpenAI.APIKey = strings.TrimSpace(t.OpenAI.APIKey)
	if t.OpenAI.APIKey == "" {
		t.OpenAI.APIKey = firstEnv("VSUB_OPENAI_API_KEY", "OPENAI_API_KEY")
	}
	if t.OpenAI.TimeoutSeconds <= 0 {
		t.OpenAI.TimeoutSeconds = defaultOpenAITimeoutSec
	}
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.Encoding = strings.ToLower(strings.TrimSpace(c.Subtitles.Encoding))
	if c.Subtitles.Encoding == "" || c.Subtitles.Encoding == "utf8" {
		c.Subtitles.Encoding = defaultEncoding
	}
	if c.Subtitles.LineWidth < 0 {
		c.Subtitles.LineWidth = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// firstEnv returns the first non-empty value among the named variables.
func firstEnv(names ...string) string {
	for _, name := range names {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value
		}
	}
	return ""
}
