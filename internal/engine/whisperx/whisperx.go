package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"vsub/internal/audio"
	"vsub/internal/fileutil"
	"vsub/internal/services"
	"vsub/internal/transcript"
)

// CommandRunner executes an external tool.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Engine transcribes segments with WhisperX.
type Engine struct {
	cfg Config
	run CommandRunner
}

// New creates a WhisperX engine with the given configuration.
func New(cfg Config) *Engine {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.VADMethod == "" {
		cfg.VADMethod = VADMethodSilero
	}
	if cfg.UVXBinary == "" {
		cfg.UVXBinary = UVXCommand
	}
	return &Engine{cfg: cfg, run: defaultRunner}
}

// WithCommandRunner sets a custom command runner (for testing).
func (e *Engine) WithCommandRunner(runner CommandRunner) {
	e.run = runner
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return "whisperx" }

// Model returns the configured model name for logging.
func (e *Engine) Model() string { return e.cfg.Model }

// Transcribe runs WhisperX on the segment file and returns segment-relative
// chunks. Output goes to a scratch directory next to the segment that is
// removed afterwards; its temp suffix lets workspace preparation sweep it up
// if the process dies first.
func (e *Engine) Transcribe(ctx context.Context, segment audio.Segment) ([]transcript.Chunk, error) {
	if segment.Path == "" {
		return nil, services.Wrap(services.ErrEngine, "transcribe", "whisperx", "segment path required", nil)
	}
	outputDir, err := os.MkdirTemp(filepath.Dir(segment.Path), fmt.Sprintf(".whisperx-%04d-*%s", segment.Index, fileutil.TempSuffix))
	if err != nil {
		return nil, fmt.Errorf("whisperx: create output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	args := e.buildArgs(segment.Path, outputDir)
	if err := e.run(ctx, e.cfg.UVXBinary, args...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrEngine, "transcribe", "whisperx", fmt.Sprintf("segment %d", segment.Index), err)
	}

	base := strings.TrimSuffix(filepath.Base(segment.Path), filepath.Ext(segment.Path))
	segments, err := LoadSegments(filepath.Join(outputDir, base+".json"))
	if err != nil {
		return nil, services.Wrap(services.ErrEngine, "transcribe", "read whisperx output", fmt.Sprintf("segment %d", segment.Index), err)
	}
	return ToChunks(segments), nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (e *Engine) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 40)

	if e.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", e.cfg.Model,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
		"--vad_method", e.cfg.VADMethod,
	)
	if e.cfg.VADMethod == VADMethodPyannote && e.cfg.HFToken != "" {
		args = append(args, "--hf_token", e.cfg.HFToken)
	}
	if e.cfg.Language != "" {
		args = append(args, "--language", e.cfg.Language)
	}
	if e.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

func defaultRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(strings.TrimSpace(string(output)), 600))
	}
	return nil
}

// tail keeps the end of long tool output, where Python tracebacks put the cause.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string   `json:"text"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

type payload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("whisperx produced no %s", filepath.Base(jsonPath))
		}
		return nil, err
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return p.Segments, nil
}

// ToChunks converts WhisperX segments (float seconds) into millisecond chunks.
// A segment without an end inherits the next segment's start, or its own start
// when it is last.
func ToChunks(segments []Segment) []transcript.Chunk {
	chunks := make([]transcript.Chunk, 0, len(segments))
	for i, seg := range segments {
		if seg.Start == nil {
			continue
		}
		start := secondsToMS(*seg.Start)
		end := start
		switch {
		case seg.End != nil:
			end = secondsToMS(*seg.End)
		case i+1 < len(segments) && segments[i+1].Start != nil:
			end = secondsToMS(*segments[i+1].Start)
		}
		chunks = append(chunks, transcript.Chunk{
			Text:    strings.TrimSpace(seg.Text),
			StartMS: start,
			EndMS:   max(end, start),
		})
	}
	return chunks
}

func secondsToMS(s float64) int64 {
	return int64(math.Round(s * 1000))
}
