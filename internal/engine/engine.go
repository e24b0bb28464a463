package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"vsub/internal/audio"
	"vsub/internal/config"
	"vsub/internal/engine/openai"
	"vsub/internal/engine/whisperx"
	"vsub/internal/services"
	"vsub/internal/transcript"
)

// Engine transcribes a single audio segment.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, segment audio.Segment) ([]transcript.Chunk, error)
}

// Func adapts a function to the Engine interface.
type Func func(ctx context.Context, segment audio.Segment) ([]transcript.Chunk, error)

// Name implements Engine.
func (Func) Name() string { return "func" }

// Transcribe implements Engine.
func (f Func) Transcribe(ctx context.Context, segment audio.Segment) ([]transcript.Chunk, error) {
	return f(ctx, segment)
}

// New builds the configured backend. language is the resolved ISO 639-1 hint;
// empty lets the engine detect it.
func New(cfg *config.Config, language string) (Engine, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "select engine", "config is nil", nil)
	}
	t := cfg.Transcription
	switch strings.ToLower(strings.TrimSpace(t.Engine)) {
	case "", config.EngineWhisperX:
		return whisperx.New(whisperx.Config{
			Model:       t.WhisperX.Model,
			CUDAEnabled: t.WhisperX.CUDAEnabled,
			VADMethod:   t.WhisperX.VADMethod,
			HFToken:     t.WhisperX.HFToken,
			Language:    language,
			UVXBinary:   cfg.UVXBinary(),
		}), nil
	case config.EngineOpenAI:
		return openai.New(openai.Config{
			BaseURL:        t.OpenAI.BaseURL,
			APIKey:         t.OpenAI.APIKey,
			Model:          t.OpenAI.Model,
			Language:       language,
			TimeoutSeconds: t.OpenAI.TimeoutSeconds,
		}), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transcribe", "select engine", fmt.Sprintf("unknown engine %q", t.Engine), nil)
	}
}

// Normalize clamps segment-relative chunks into [0, durationMS], repairs
// inverted spans, drops chunks with neither text nor duration, and orders the
// result by start time. Engines occasionally report times a few milliseconds
// past the end of the audio they were given.
func Normalize(chunks []transcript.Chunk, durationMS int64) []transcript.Chunk {
	out := make([]transcript.Chunk, 0, len(chunks))
	for _, c := range chunks {
		c.Text = strings.TrimSpace(c.Text)
		c.StartMS = max(c.StartMS, 0)
		if durationMS > 0 {
			c.StartMS = min(c.StartMS, durationMS)
			c.EndMS = min(c.EndMS, durationMS)
		}
		if c.EndMS < c.StartMS {
			c.EndMS = c.StartMS
		}
		if c.Text == "" && c.EndMS == c.StartMS {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartMS < out[j].StartMS })
	return out
}
