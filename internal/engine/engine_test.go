package engine

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"vsub/internal/audio"
	"vsub/internal/config"
	"vsub/internal/services"
	"vsub/internal/testsupport"
	"vsub/internal/transcript"
)

func TestNewSelectsBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	eng, err := New(cfg, "en")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if eng.Name() != config.EngineWhisperX {
		t.Fatalf("default engine = %q", eng.Name())
	}

	cfg.Transcription.Engine = config.EngineOpenAI
	cfg.Transcription.OpenAI.APIKey = "key"
	eng, err = New(cfg, "")
	if err != nil {
		t.Fatalf("New openai: %v", err)
	}
	if eng.Name() != config.EngineOpenAI {
		t.Fatalf("engine = %q", eng.Name())
	}

	cfg.Transcription.Engine = "vosk"
	if _, err := New(cfg, ""); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestFuncAdapter(t *testing.T) {
	var eng Engine = Func(func(_ context.Context, seg audio.Segment) ([]transcript.Chunk, error) {
		return []transcript.Chunk{{Text: "x", StartMS: 0, EndMS: seg.DurationMS()}}, nil
	})
	chunks, err := eng.Transcribe(context.Background(), audio.Segment{StartMS: 100, EndMS: 600})
	if err != nil || len(chunks) != 1 || chunks[0].EndMS != 500 {
		t.Fatalf("unexpected result %+v, %v", chunks, err)
	}
}

func TestNormalize(t *testing.T) {
	in := []transcript.Chunk{
		{Text: " later ", StartMS: 3000, EndMS: 4200},
		{Text: "first", StartMS: -20, EndMS: 900},
		{Text: "", StartMS: 1000, EndMS: 1000},
		{Text: "inverted", StartMS: 2000, EndMS: 1500},
		{Text: "overrun", StartMS: 4500, EndMS: 5200},
	}
	got := Normalize(in, 5000)
	want := []transcript.Chunk{
		{Text: "first", StartMS: 0, EndMS: 900},
		{Text: "inverted", StartMS: 2000, EndMS: 2000},
		{Text: "later", StartMS: 3000, EndMS: 4200},
		{Text: "overrun", StartMS: 4500, EndMS: 5000},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize = %+v, want %+v", got, want)
	}
}
