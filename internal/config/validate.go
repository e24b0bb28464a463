package config

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding/htmlindex"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSplitter(); err != nil {
		return err
	}
	if err := c.validateMerge(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSplitter() error {
	s := c.Splitter
	if s.SilenceThresholdDBFS >= 0 {
		return errors.New("splitter.silence_threshold_dbfs must be negative")
	}
	if s.MinSilenceMS <= 0 {
		return errors.New("splitter.min_silence_ms must be positive")
	}
	if s.MinSegmentMS < 0 {
		return errors.New("splitter.min_segment_ms must not be negative")
	}
	if s.MaxSegmentMS < 0 {
		return errors.New("splitter.max_segment_ms must not be negative (0 disables the ceiling)")
	}
	if s.MaxSegmentMS > 0 && s.MaxSegmentMS < 2*s.MinSegmentMS {
		return fmt.Errorf("splitter.max_segment_ms (%d) must be at least twice splitter.min_segment_ms (%d)", s.MaxSegmentMS, s.MinSegmentMS)
	}
	return nil
}

func (c *Config) validateMerge() error {
	m := c.Merge
	if m.ContinuationGapMS < 0 {
		return errors.New("merge.continuation_gap_ms must not be negative")
	}
	if m.MaxChars <= 0 {
		return errors.New("merge.max_chars must be positive")
	}
	if m.MaxDurationMS <= 0 {
		return errors.New("merge.max_duration_ms must be positive")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	switch t.Engine {
	case EngineWhisperX:
		switch t.WhisperX.VADMethod {
		case "silero", "pyannote":
		default:
			return fmt.Errorf("transcription.whisperx.vad_method: unsupported value %q", t.WhisperX.VADMethod)
		}
	case EngineOpenAI:
		if t.OpenAI.APIKey == "" {
			return errors.New("transcription.openai.api_key is required when transcription.engine is openai (or set OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("transcription.engine: unsupported value %q", t.Engine)
	}
	if t.Workers > 16 {
		return errors.New("transcription.workers must be between 1 and 16")
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	if c.Subtitles.Encoding != defaultEncoding {
		if _, err := htmlindex.Get(c.Subtitles.Encoding); err != nil {
			return fmt.Errorf("subtitles.encoding: unsupported value %q", c.Subtitles.Encoding)
		}
	}
	if c.Subtitles.LineWidth > 0 && c.Subtitles.LineWidth < 10 {
		return errors.New("subtitles.line_width must be 0 (no wrapping) or at least 10")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Key {
	case CacheKeyContent, CacheKeyName:
		return nil
	default:
		return fmt.Errorf("cache.key: unsupported value %q", c.Cache.Key)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
